package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/focus-server/internal/database"
	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/events"
	"github.com/studyhall/focus-server/internal/lock"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/repository"
	"github.com/studyhall/focus-server/internal/util"
)

// ReleaseResult reports the seat count after a reservation is cancelled.
type ReleaseResult struct {
	ParticipantCount int `json:"participantCount"`
	MaxParticipants  int `json:"maxParticipants"`
}

// SeatClaimService is the single authority for creating seats. Every claim
// runs in one transaction that holds the caller's user lock and a row lock on
// the session, so concurrent claims on the same session or by the same user
// serialize.
type SeatClaimService struct {
	db              database.TxRunner
	sessionRepo     repository.FocusSessionRepository
	participantRepo repository.ParticipantRepository
	locker          lock.UserLocker
	publisher       events.Publisher
	now             func() time.Time
}

func NewSeatClaimService(
	db database.TxRunner,
	sessionRepo repository.FocusSessionRepository,
	participantRepo repository.ParticipantRepository,
	locker lock.UserLocker,
	publisher events.Publisher,
) *SeatClaimService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &SeatClaimService{
		db:              db,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		locker:          locker,
		publisher:       publisher,
		now:             time.Now,
	}
}

// ClaimSeat gives userID a seat in sessionID with the requested role. Business
// rejections come back as an outcome with a nil error; the error is reserved
// for infrastructure failures, in which case nothing was written.
func (s *SeatClaimService) ClaimSeat(ctx context.Context, sessionID, userID string, role model.Role) (*model.ClaimResult, error) {
	if sessionID == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if userID == "" {
		return nil, apperrors.MissingRequired("userId")
	}
	if !role.Valid() {
		return &model.ClaimResult{Outcome: model.OutcomeInvalidRole, Role: role}, nil
	}
	if !util.IsValidUUID(sessionID) {
		return &model.ClaimResult{Outcome: model.OutcomeNotFound}, nil
	}

	var result *model.ClaimResult
	release, err := s.withUserLock(ctx, userID, func(tx *sqlx.Tx) error {
		r, err := s.claim(ctx, tx, sessionID, userID, role)
		result = r
		return err
	})
	release()
	if err != nil {
		log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Str("userId", userID).
			Str("role", string(role)).
			Msg("seat claim failed")
		return nil, fmt.Errorf("claim seat: %w", err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("userId", userID).
		Str("role", string(role)).
		Str("outcome", string(result.Outcome)).
		Int("participantCount", result.ParticipantCount).
		Msg("seat claim resolved")

	if result.Outcome == model.OutcomeReserved {
		s.publish(ctx, events.Event{
			Type:             events.TypeSeatReserved,
			SessionID:        sessionID,
			UserID:           userID,
			ParticipantCount: result.ParticipantCount,
			MaxParticipants:  result.MaxParticipants,
		})
	}

	return result, nil
}

// ReleaseSeat removes a participant's seat. Host seats cannot be released;
// hosts cancel the session instead.
func (s *SeatClaimService) ReleaseSeat(ctx context.Context, sessionID, userID string) (*ReleaseResult, error) {
	if userID == "" {
		return nil, apperrors.MissingRequired("userId")
	}
	if !util.IsValidUUID(sessionID) {
		return nil, apperrors.NotFound("Session")
	}

	var result *ReleaseResult
	release, err := s.withUserLock(ctx, userID, func(tx *sqlx.Tx) error {
		sessions := s.sessionRepo.WithTx(tx)
		seats := s.participantRepo.WithTx(tx)

		session, err := sessions.FindByIDForUpdate(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			return apperrors.NotFound("Session")
		}
		if session.HostID == userID {
			return apperrors.Forbidden("Hosts cannot release their seat; cancel the session instead")
		}

		deleted, err := seats.DeleteParticipant(ctx, sessionID, userID)
		if err != nil {
			return apperrors.Database(err)
		}
		if !deleted {
			return apperrors.NotFound("Reservation")
		}

		count, err := seats.CountBySession(ctx, sessionID)
		if err != nil {
			return apperrors.Database(err)
		}
		result = &ReleaseResult{ParticipantCount: count, MaxParticipants: session.MaxParticipants}
		return nil
	})
	release()
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("userId", userID).
		Int("participantCount", result.ParticipantCount).
		Msg("seat released")

	s.publish(ctx, events.Event{
		Type:             events.TypeSeatReleased,
		SessionID:        sessionID,
		UserID:           userID,
		ParticipantCount: result.ParticipantCount,
		MaxParticipants:  result.MaxParticipants,
	})

	return result, nil
}

// withUserLock runs fn in a transaction holding the user's lock. The returned
// release must be called once the transaction has finished. When the runner
// retries an aborted transaction, the hold from the previous attempt is
// dropped before the lock is taken again.
func (s *SeatClaimService) withUserLock(ctx context.Context, userID string, fn database.TxFunc) (lock.Release, error) {
	noop := lock.Release(func() {})
	release := noop
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		release()
		release = noop

		rel, err := s.locker.Acquire(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("acquire user lock: %w", err)
		}
		release = rel
		return fn(tx)
	})
	return release, err
}

func (s *SeatClaimService) claim(ctx context.Context, tx *sqlx.Tx, sessionID, userID string, role model.Role) (*model.ClaimResult, error) {
	sessions := s.sessionRepo.WithTx(tx)
	seats := s.participantRepo.WithTx(tx)
	now := s.now()

	session, err := sessions.FindByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if session == nil {
		return &model.ClaimResult{Outcome: model.OutcomeNotFound}, nil
	}

	status := session.EffectiveStatus(now)
	result := &model.ClaimResult{
		MaxParticipants: session.MaxParticipants,
		SessionStatus:   status,
	}
	reject := func(outcome model.ClaimOutcome) (*model.ClaimResult, error) {
		count, err := seats.CountBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("count seats: %w", err)
		}
		result.Outcome = outcome
		result.ParticipantCount = count
		return result, nil
	}

	if !status.Open() {
		return reject(model.OutcomeSessionUnavailable)
	}

	isHost := session.HostID == userID
	if isHost != (role == model.RoleHost) {
		return reject(model.OutcomeHostConflict)
	}

	existing, err := seats.Find(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find seat: %w", err)
	}
	if existing != nil {
		want := model.RoleParticipant
		if isHost {
			want = model.RoleHost
		}
		if existing.Role != want {
			if err := seats.Upsert(ctx, sessionID, userID, want); err != nil {
				return nil, fmt.Errorf("reconcile seat role: %w", err)
			}
		}
		result.Role = want
		return reject(model.OutcomeAlreadyParticipant)
	}

	active, err := s.busyAt(ctx, sessions, seats, userID, sessionID, now)
	if err != nil {
		return nil, err
	}
	if active {
		return reject(model.OutcomeActiveConflict)
	}

	overlap, err := s.busyDuring(ctx, sessions, seats, userID, sessionID, session.StartAt, session.EndAt, now)
	if err != nil {
		return nil, err
	}
	if overlap {
		return reject(model.OutcomeOverlapConflict)
	}

	count, err := seats.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}
	if count >= session.MaxParticipants {
		result.Outcome = model.OutcomeSessionFull
		result.ParticipantCount = count
		return result, nil
	}

	if err := seats.Upsert(ctx, sessionID, userID, role); err != nil {
		return nil, fmt.Errorf("insert seat: %w", err)
	}
	count, err = seats.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}

	result.Outcome = model.OutcomeReserved
	result.ParticipantCount = count
	result.Role = role
	return result, nil
}

// busyAt reports whether the user hosts or sits in another session running now.
func (s *SeatClaimService) busyAt(
	ctx context.Context,
	sessions repository.FocusSessionRepository,
	seats repository.ParticipantRepository,
	userID, excludeID string,
	now time.Time,
) (bool, error) {
	hosting, err := sessions.HostsActiveAt(ctx, userID, excludeID, now)
	if err != nil {
		return false, fmt.Errorf("check active hosting: %w", err)
	}
	if hosting {
		return true, nil
	}
	seated, err := seats.SeatsActiveAt(ctx, userID, excludeID, now)
	if err != nil {
		return false, fmt.Errorf("check active seats: %w", err)
	}
	return seated, nil
}

// busyDuring reports whether the user hosts or sits in another live session
// whose window intersects [start, end).
func (s *SeatClaimService) busyDuring(
	ctx context.Context,
	sessions repository.FocusSessionRepository,
	seats repository.ParticipantRepository,
	userID, excludeID string,
	start, end, now time.Time,
) (bool, error) {
	hosting, err := sessions.HostsOverlapping(ctx, userID, excludeID, start, end, now)
	if err != nil {
		return false, fmt.Errorf("check overlapping hosting: %w", err)
	}
	if hosting {
		return true, nil
	}
	seated, err := seats.SeatsOverlapping(ctx, userID, excludeID, start, end, now)
	if err != nil {
		return false, fmt.Errorf("check overlapping seats: %w", err)
	}
	return seated, nil
}

func (s *SeatClaimService) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("eventType", string(event.Type)).
			Str("sessionId", event.SessionID).
			Msg("failed to publish session event")
	}
}

// ClaimError maps a rejected claim outcome to the error surfaced to clients.
// It returns nil for successful outcomes.
func ClaimError(result *model.ClaimResult) *apperrors.AppError {
	var err *apperrors.AppError
	switch result.Outcome {
	case model.OutcomeReserved, model.OutcomeAlreadyParticipant:
		return nil
	case model.OutcomeNotFound:
		err = apperrors.NotFound("Session")
	case model.OutcomeSessionUnavailable:
		err = apperrors.SessionUnavailable()
	case model.OutcomeHostConflict:
		err = apperrors.HostConflict()
	case model.OutcomeActiveConflict:
		err = apperrors.ActiveConflict()
	case model.OutcomeOverlapConflict:
		err = apperrors.OverlapConflict()
	case model.OutcomeSessionFull:
		err = apperrors.SessionFull()
	case model.OutcomeInvalidRole:
		err = apperrors.InvalidRole(string(result.Role))
	default:
		err = apperrors.Internal("unknown claim outcome")
	}
	return err.WithDetails(result)
}
