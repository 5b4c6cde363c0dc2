package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/repository"
	"github.com/studyhall/focus-server/internal/room"
	"github.com/studyhall/focus-server/internal/util"
	"github.com/studyhall/focus-server/internal/window"
)

type JoinResult struct {
	Token        string     `json:"token"`
	ExpiresIn    int        `json:"expiresIn"`
	RoomID       string     `json:"roomId"`
	RoomName     string     `json:"roomName"`
	Role         model.Role `json:"role"`
	JoinClosesAt time.Time  `json:"joinClosesAt"`
}

// JoinService hands out room credentials to seated users while the join
// window is open.
type JoinService struct {
	sessionRepo     repository.FocusSessionRepository
	participantRepo repository.ParticipantRepository
	rooms           room.Provisioner
	policy          window.Policy
	now             func() time.Time
}

func NewJoinService(
	sessionRepo repository.FocusSessionRepository,
	participantRepo repository.ParticipantRepository,
	rooms room.Provisioner,
	policy window.Policy,
) *JoinService {
	return &JoinService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		rooms:           rooms,
		policy:          policy,
		now:             time.Now,
	}
}

func (s *JoinService) Join(ctx context.Context, sessionID, userID string) (*JoinResult, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
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
	if session.Status == model.SessionStatusCancelled {
		return nil, apperrors.SessionUnavailable()
	}

	if err := s.policy.CheckJoin(session.StartAt, session.EndAt, s.now()); err != nil {
		switch {
		case errors.Is(err, window.ErrJoinNotOpen):
			return nil, apperrors.JoinNotOpen().WithDetails(map[string]any{
				"joinOpensAt": window.JoinOpensAt(session.StartAt),
			})
		case errors.Is(err, window.ErrSessionEnded):
			return nil, apperrors.SessionEnded()
		default:
			return nil, apperrors.Internal("join window check failed").WithCause(err)
		}
	}

	role, err := s.callerRole(ctx, session, userID)
	if err != nil {
		return nil, err
	}

	session, err = s.ensureRoom(ctx, session)
	if err != nil {
		return nil, err
	}

	token, err := s.rooms.MintAccessToken(ctx, *session.RoomID, userID, string(role))
	if err != nil {
		return nil, apperrors.External("room provider", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("userId", userID).
		Str("role", string(role)).
		Str("roomId", *session.RoomID).
		Msg("room credential issued")

	roomName := ""
	if session.RoomName != nil {
		roomName = *session.RoomName
	}
	return &JoinResult{
		Token:        token.Token,
		ExpiresIn:    token.ExpiresIn,
		RoomID:       *session.RoomID,
		RoomName:     roomName,
		Role:         role,
		JoinClosesAt: s.policy.ClosesAt(session.EndAt),
	}, nil
}

func (s *JoinService) callerRole(ctx context.Context, session *model.FocusSession, userID string) (model.Role, error) {
	if session.HostID == userID {
		return model.RoleHost, nil
	}
	seat, err := s.participantRepo.Find(ctx, session.ID, userID)
	if err != nil {
		return "", apperrors.Database(fmt.Errorf("find seat: %w", err))
	}
	if seat == nil {
		return "", apperrors.ReservationRequired()
	}
	if seat.Role == model.RoleHost {
		return model.RoleHost, nil
	}
	return model.RoleParticipant, nil
}

// ensureRoom provisions the room on first join. When two joiners race, the
// first write wins and the loser adopts the stored handle.
func (s *JoinService) ensureRoom(ctx context.Context, session *model.FocusSession) (*model.FocusSession, error) {
	if session.HasRoom() {
		return session, nil
	}

	rm, err := s.rooms.CreateRoom(ctx, "focus-"+uuid.NewString(), session.MaxParticipants)
	if err != nil {
		return nil, apperrors.External("room provider", err)
	}

	won, err := s.sessionRepo.SetRoomIfAbsent(ctx, session.ID, rm.ID, rm.Name)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("store room: %w", err))
	}
	if won {
		session.RoomID = &rm.ID
		session.RoomName = &rm.Name
		return session, nil
	}

	current, err := s.sessionRepo.FindByID(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("reload session: %w", err))
	}
	if current == nil || !current.HasRoom() {
		return nil, apperrors.Internal("room handle missing after conditional write")
	}
	log.Debug().
		Str("sessionId", session.ID).
		Str("discardedRoom", rm.ID).
		Str("roomId", *current.RoomID).
		Msg("adopted room created by concurrent join")
	return current, nil
}
