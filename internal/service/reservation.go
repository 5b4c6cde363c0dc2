package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/repository"
	"github.com/studyhall/focus-server/internal/util"
	"github.com/studyhall/focus-server/internal/window"
)

// ReservationService is the participant-facing path into the seat claim
// engine. It adds the reservation cutoff on top of the engine's rules.
type ReservationService struct {
	sessionRepo repository.FocusSessionRepository
	seats       *SeatClaimService
	now         func() time.Time
}

func NewReservationService(sessionRepo repository.FocusSessionRepository, seats *SeatClaimService) *ReservationService {
	return &ReservationService{
		sessionRepo: sessionRepo,
		seats:       seats,
		now:         time.Now,
	}
}

// Reserve claims a participant seat. Rejections other than the cutoff are
// reported through the claim outcome.
func (s *ReservationService) Reserve(ctx context.Context, sessionID, userID string) (*model.ClaimResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &model.ClaimResult{Outcome: model.OutcomeNotFound}, nil
	}
	if !window.CanReserve(session.StartAt, s.now()) {
		return nil, apperrors.ReservationClosed()
	}

	return s.seats.ClaimSeat(ctx, sessionID, userID, model.RoleParticipant)
}

func (s *ReservationService) CancelReservation(ctx context.Context, sessionID, userID string) (*ReleaseResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !window.CanReserve(session.StartAt, s.now()) {
		return nil, apperrors.ReservationClosed()
	}

	return s.seats.ReleaseSeat(ctx, sessionID, userID)
}

func (s *ReservationService) load(ctx context.Context, sessionID string) (*model.FocusSession, error) {
	if !util.IsValidUUID(sessionID) {
		return nil, nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find session: %w", err))
	}
	return session, nil
}
