package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/events"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/repository"
	"github.com/studyhall/focus-server/internal/room"
	"github.com/studyhall/focus-server/internal/util"
	"github.com/studyhall/focus-server/internal/window"
)

const (
	MinStartLead        = time.Minute
	MaxTextLength       = 140
	FocusCapacity       = 3
	MinRoomCapacity     = 2
	MaxRoomCapacity     = 200
	MaxRoomDuration     = 24 * time.Hour
	DefaultListSpan     = 14 * 24 * time.Hour
	defaultListPageSize = 50
)

var (
	FocusDurations = []int{30, 60, 120}
	FocusTasks     = []string{"deep-work", "study", "reading", "writing", "coding", "exam-prep", "planning"}
)

type CreateSessionInput struct {
	Kind            model.SessionKind `json:"kind"`
	Title           string            `json:"title"`
	Task            string            `json:"task"`
	StartAt         time.Time         `json:"startAt"`
	DurationMinutes int               `json:"durationMinutes"`
	MaxParticipants int               `json:"maxParticipants"`
}

type ListSessionsInput struct {
	From             *time.Time
	To               *time.Time
	IncludeCancelled bool
	Limit            int
	Offset           int
}

// SessionView is a session as seen by one caller.
type SessionView struct {
	model.SessionSummary
	EffectiveStatus   model.SessionStatus `json:"effectiveStatus"`
	MyRole            model.Role          `json:"myRole,omitempty"`
	ReservationCutoff time.Time           `json:"reservationCutoff"`
	JoinOpensAt       time.Time           `json:"joinOpensAt"`
	JoinClosesAt      time.Time           `json:"joinClosesAt"`
}

type ListSessionsResult struct {
	Sessions []SessionView `json:"sessions"`
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

type BookingService struct {
	sessionRepo     repository.FocusSessionRepository
	participantRepo repository.ParticipantRepository
	seats           *SeatClaimService
	rooms           room.Provisioner
	publisher       events.Publisher
	policy          window.Policy
	maxListSpan     time.Duration
	now             func() time.Time
}

func NewBookingService(
	sessionRepo repository.FocusSessionRepository,
	participantRepo repository.ParticipantRepository,
	seats *SeatClaimService,
	rooms room.Provisioner,
	publisher events.Publisher,
	policy window.Policy,
	maxListSpan time.Duration,
) *BookingService {
	if publisher == nil {
		publisher = events.Nop
	}
	if maxListSpan <= 0 {
		maxListSpan = DefaultListSpan
	}
	return &BookingService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		seats:           seats,
		rooms:           rooms,
		publisher:       publisher,
		policy:          policy,
		maxListSpan:     maxListSpan,
		now:             time.Now,
	}
}

// Create validates the request, provisions a room, persists the session and
// seats the host. A session whose host seat cannot be created is deleted.
func (s *BookingService) Create(ctx context.Context, hostID string, input CreateSessionInput) (*SessionView, error) {
	if hostID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	now := s.now()

	params, err := s.validateCreate(input, now)
	if err != nil {
		return nil, err
	}
	params.HostID = hostID

	busy, err := s.hostBusy(ctx, hostID, params.StartAt, params.EndAt, now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if busy {
		return nil, apperrors.OverlapConflict()
	}

	rm, err := s.rooms.CreateRoom(ctx, "focus-"+uuid.NewString(), params.MaxParticipants)
	if err != nil {
		return nil, apperrors.External("room provider", err)
	}
	params.RoomID = &rm.ID
	params.RoomName = &rm.Name

	session, err := s.sessionRepo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create session: %w", err))
	}

	claim, err := s.seats.ClaimSeat(ctx, session.ID, hostID, model.RoleHost)
	if err != nil || !claim.Outcome.Success() {
		s.compensate(ctx, session.ID, rm.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		return nil, ClaimError(claim)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("hostId", hostID).
		Str("kind", string(session.Kind)).
		Time("startAt", session.StartAt).
		Int("durationMinutes", session.DurationMinutes).
		Msg("focus session created")

	s.publish(ctx, events.Event{
		Type:             events.TypeSessionCreated,
		SessionID:        session.ID,
		UserID:           hostID,
		ParticipantCount: claim.ParticipantCount,
		MaxParticipants:  session.MaxParticipants,
		StartAt:          session.StartAt,
	})

	return s.view(model.SessionSummary{
		FocusSession:     *session,
		ParticipantCount: claim.ParticipantCount,
	}, model.RoleHost, now), nil
}

func (s *BookingService) compensate(ctx context.Context, sessionID, roomID string) {
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Msg("failed to delete session without host seat")
		return
	}
	log.Warn().
		Str("sessionId", sessionID).
		Str("roomId", roomID).
		Msg("host seat rejected, session rolled back")
}

func (s *BookingService) validateCreate(input CreateSessionInput, now time.Time) (model.CreateFocusSessionParams, error) {
	var params model.CreateFocusSessionParams

	kind := input.Kind
	if kind == "" {
		kind = model.SessionKindFocus
	}
	title := strings.TrimSpace(input.Title)
	task := strings.TrimSpace(input.Task)

	if input.StartAt.IsZero() {
		return params, apperrors.MissingRequired("startAt")
	}
	if input.StartAt.Before(now.Add(MinStartLead)) {
		return params, apperrors.InvalidInput("startAt", "must be at least 1 minute in the future")
	}
	if utf8.RuneCountInString(title) > MaxTextLength {
		return params, apperrors.InvalidInput("title", fmt.Sprintf("must be at most %d characters", MaxTextLength))
	}
	if utf8.RuneCountInString(task) > MaxTextLength {
		return params, apperrors.InvalidInput("task", fmt.Sprintf("must be at most %d characters", MaxTextLength))
	}

	capacity := input.MaxParticipants
	switch kind {
	case model.SessionKindFocus:
		if !containsInt(FocusDurations, input.DurationMinutes) {
			return params, apperrors.InvalidInput("durationMinutes", "must be one of 30, 60 or 120")
		}
		if capacity != 0 && capacity != FocusCapacity {
			return params, apperrors.InvalidInput("maxParticipants", "focus sessions seat exactly 3")
		}
		capacity = FocusCapacity
		if task == "" {
			task = FocusTasks[0]
		}
		if !util.IsValidEnum(task, FocusTasks) {
			return params, apperrors.InvalidInput("task", "must be one of "+strings.Join(FocusTasks, ", "))
		}
	case model.SessionKindRoom:
		if input.DurationMinutes <= 0 {
			return params, apperrors.InvalidInput("durationMinutes", "must be positive")
		}
		if input.DurationMinutes > int(MaxRoomDuration/time.Minute) {
			return params, apperrors.InvalidInput("durationMinutes",
				fmt.Sprintf("must be at most %d", int(MaxRoomDuration/time.Minute)))
		}
		if capacity == 0 {
			capacity = FocusCapacity
		}
		if capacity < MinRoomCapacity || capacity > MaxRoomCapacity {
			return params, apperrors.InvalidInput("maxParticipants",
				fmt.Sprintf("must be between %d and %d", MinRoomCapacity, MaxRoomCapacity))
		}
		if title == "" {
			return params, apperrors.MissingRequired("title")
		}
	default:
		return params, apperrors.InvalidInput("kind", "must be focus or room")
	}

	start := input.StartAt.UTC()
	params = model.CreateFocusSessionParams{
		Title:           title,
		Task:            task,
		Kind:            kind,
		StartAt:         start,
		EndAt:           start.Add(time.Duration(input.DurationMinutes) * time.Minute),
		DurationMinutes: input.DurationMinutes,
		MaxParticipants: capacity,
	}
	return params, nil
}

// hostBusy is a cheap pre-check; the seat claim repeats it under lock.
func (s *BookingService) hostBusy(ctx context.Context, hostID string, start, end, now time.Time) (bool, error) {
	hosting, err := s.sessionRepo.HostsOverlapping(ctx, hostID, "", start, end, now)
	if err != nil || hosting {
		return hosting, err
	}
	return s.participantRepo.SeatsOverlapping(ctx, hostID, "", start, end, now)
}

func (s *BookingService) List(ctx context.Context, userID string, input ListSessionsInput) (*ListSessionsResult, error) {
	now := s.now()

	from := now
	if input.From != nil {
		from = input.From.UTC()
	}
	to := from.Add(s.maxListSpan)
	if input.To != nil {
		to = input.To.UTC()
	}
	if to.Before(from) {
		return nil, apperrors.InvalidInput("to", "must not be before from")
	}
	if to.Sub(from) > s.maxListSpan {
		to = from.Add(s.maxListSpan)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListPageSize
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	summaries, err := s.sessionRepo.List(ctx, model.ListSessionsParams{
		From:             from,
		To:               to,
		Now:              now,
		IncludeCancelled: input.IncludeCancelled,
		UserID:           userID,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list sessions: %w", err))
	}

	views := make([]SessionView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, *s.view(summary, summary.CallerRole, now))
	}

	return &ListSessionsResult{
		Sessions: views,
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

func (s *BookingService) Get(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	if !util.IsValidUUID(sessionID) {
		return nil, apperrors.NotFound("Session")
	}
	summary, err := s.sessionRepo.FindSummary(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find session: %w", err))
	}
	if summary == nil {
		return nil, apperrors.NotFound("Session")
	}

	var role model.Role
	if userID != "" {
		seat, err := s.participantRepo.Find(ctx, sessionID, userID)
		if err != nil {
			return nil, apperrors.Database(fmt.Errorf("find seat: %w", err))
		}
		if seat != nil {
			role = seat.Role
		}
	}

	return s.view(*summary, role, s.now()), nil
}

// Cancel marks a scheduled session cancelled. Only the host may cancel, and
// only before the session starts; cancelling twice returns the same session.
func (s *BookingService) Cancel(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	if !util.IsValidUUID(sessionID) {
		return nil, apperrors.NotFound("Session")
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find session: %w", err))
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.HostID != userID {
		return nil, apperrors.Forbidden("Only the host can cancel this session")
	}

	now := s.now()
	if session.Status == model.SessionStatusCancelled {
		return s.summaryView(ctx, session, now)
	}
	if !now.Before(session.StartAt) || session.Status != model.SessionStatusScheduled {
		return nil, apperrors.SessionStarted()
	}

	cancelled, err := s.sessionRepo.Cancel(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("cancel session: %w", err))
	}
	if cancelled == nil {
		// Lost a race with another writer; report whatever won.
		current, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			return nil, apperrors.Database(fmt.Errorf("find session: %w", err))
		}
		if current == nil {
			return nil, apperrors.NotFound("Session")
		}
		if current.Status != model.SessionStatusCancelled {
			return nil, apperrors.SessionStarted()
		}
		return s.summaryView(ctx, current, now)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("hostId", userID).
		Msg("focus session cancelled")

	view, err := s.summaryView(ctx, cancelled, now)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:             events.TypeSessionCancelled,
		SessionID:        sessionID,
		UserID:           userID,
		ParticipantCount: view.ParticipantCount,
		MaxParticipants:  view.MaxParticipants,
		StartAt:          view.StartAt,
	})
	return view, nil
}

func (s *BookingService) summaryView(ctx context.Context, session *model.FocusSession, now time.Time) (*SessionView, error) {
	count, err := s.participantRepo.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("count seats: %w", err))
	}
	return s.view(model.SessionSummary{FocusSession: *session, ParticipantCount: count}, model.RoleHost, now), nil
}

func (s *BookingService) view(summary model.SessionSummary, role model.Role, now time.Time) *SessionView {
	return &SessionView{
		SessionSummary:    summary,
		EffectiveStatus:   summary.EffectiveStatus(now),
		MyRole:            role,
		ReservationCutoff: window.ReservationCutoff(summary.StartAt),
		JoinOpensAt:       window.JoinOpensAt(summary.StartAt),
		JoinClosesAt:      s.policy.ClosesAt(summary.EndAt),
	}
}

func (s *BookingService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("eventType", string(event.Type)).
			Str("sessionId", event.SessionID).
			Msg("failed to publish session event")
	}
}

func containsInt(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
