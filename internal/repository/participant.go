package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyhall/focus-server/internal/model"
)

type ParticipantRepository interface {
	Find(ctx context.Context, sessionID, userID string) (*model.Participant, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// Upsert inserts the seat or overwrites its role when the (session, user) row exists.
	Upsert(ctx context.Context, sessionID, userID string, role model.Role) error
	// DeleteParticipant removes a participant seat. Host seats are never removed.
	DeleteParticipant(ctx context.Context, sessionID, userID string) (bool, error)
	SeatsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error)
	SeatsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error)
	WithTx(tx *sqlx.Tx) ParticipantRepository
}

type participantDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type participantRepo struct {
	db participantDB
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) WithTx(tx *sqlx.Tx) ParticipantRepository {
	return &participantRepo{db: tx}
}

func (r *participantRepo) Find(ctx context.Context, sessionID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM session_participants
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return HandleNotFound(&p, err)
}

func (r *participantRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM session_participants WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *participantRepo) Upsert(ctx context.Context, sessionID, userID string, role model.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_participants (session_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, sessionID, userID, role, time.Now())
	if isUniqueViolation(err, "idx_session_participants_one_host") {
		return fmt.Errorf("upsert seat %s/%s: %w", sessionID, userID, ErrDuplicateHost)
	}
	return err
}

func (r *participantRepo) DeleteParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_participants
		WHERE session_id = $1 AND user_id = $2 AND role = 'participant'
	`, sessionID, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *participantRepo) SeatsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM session_participants p
			JOIN focus_sessions s ON s.id = p.session_id
			WHERE p.user_id = $1
			AND s.id::text <> $2
			AND s.status IN ('scheduled', 'active')
			AND s.start_at <= $3 AND s.end_at > $3
		)
	`, userID, excludeID, now)
	return exists, err
}

func (r *participantRepo) SeatsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM session_participants p
			JOIN focus_sessions s ON s.id = p.session_id
			WHERE p.user_id = $1
			AND s.id::text <> $2
			AND s.status IN ('scheduled', 'active')
			AND s.start_at < $4 AND s.end_at > $3
			AND s.end_at > $5
		)
	`, userID, excludeID, start, end, now)
	return exists, err
}
