package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyhall/focus-server/internal/audit"
	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/httputil"
	"github.com/studyhall/focus-server/internal/middleware"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/service"
)

type bookingService interface {
	Create(ctx context.Context, hostID string, input service.CreateSessionInput) (*service.SessionView, error)
	List(ctx context.Context, userID string, input service.ListSessionsInput) (*service.ListSessionsResult, error)
	Get(ctx context.Context, sessionID, userID string) (*service.SessionView, error)
	Cancel(ctx context.Context, sessionID, userID string) (*service.SessionView, error)
}

type reservationService interface {
	Reserve(ctx context.Context, sessionID, userID string) (*model.ClaimResult, error)
	CancelReservation(ctx context.Context, sessionID, userID string) (*service.ReleaseResult, error)
}

type joinService interface {
	Join(ctx context.Context, sessionID, userID string) (*service.JoinResult, error)
}

type SessionHandler struct {
	booking      bookingService
	reservations reservationService
	joins        joinService
	events       http.Handler
}

func NewSessionHandler(booking bookingService, reservations reservationService, joins joinService) *SessionHandler {
	return &SessionHandler{
		booking:      booking,
		reservations: reservations,
		joins:        joins,
	}
}

// WithEvents mounts the live event stream at /{sessionID}/events.
func (h *SessionHandler) WithEvents(events http.Handler) *SessionHandler {
	h.events = events
	return h
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/", h.UpdateStatus)
		r.Patch("/", h.UpdateStatus)
		r.Delete("/", h.Cancel)
		r.Post("/cancel", h.Cancel)

		r.Post("/reserve", h.Reserve)
		r.Delete("/reserve", h.CancelReservation)
		r.Post("/join", h.Join)

		if h.events != nil {
			r.Get("/events", h.events.ServeHTTP)
		}
	})

	return r
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateSessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	view, err := h.booking.Create(r.Context(), userID, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCreate,
		UserID:    userID,
		SessionID: view.ID,
		Details: map[string]interface{}{
			"kind":            string(view.Kind),
			"durationMinutes": view.DurationMinutes,
		},
	})

	writeJSON(w, http.StatusCreated, view)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	input, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.booking.List(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.booking.Get(r.Context(), chi.URLParam(r, "sessionID"), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateStatusRequest struct {
	Status model.SessionStatus `json:"status"`
}

// UpdateStatus accepts {"status":"cancelled"}; no other transition is
// client-driven.
func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Status != model.SessionStatusCancelled {
		httputil.WriteError(w, apperrors.InvalidInput("status", "only \"cancelled\" is supported"))
		return
	}
	h.Cancel(w, r)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.booking.Cancel(r.Context(), sessionID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCancel,
		UserID:    userID,
		SessionID: sessionID,
	})

	writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.reservations.Reserve(r.Context(), sessionID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSeatReserve,
		UserID:    userID,
		SessionID: sessionID,
		Details: map[string]interface{}{
			"outcome":          string(result.Outcome),
			"participantCount": result.ParticipantCount,
		},
	})

	writeClaim(w, result)
}

func (h *SessionHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.reservations.CancelReservation(r.Context(), sessionID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSeatRelease,
		UserID:    userID,
		SessionID: sessionID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"participantCount": result.ParticipantCount,
		"maxParticipants":  result.MaxParticipants,
	})
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.joins.Join(r.Context(), sessionID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventRoomJoin,
		UserID:    userID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"role": string(result.Role)},
	})

	writeJSON(w, http.StatusOK, result)
}
