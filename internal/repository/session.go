package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyhall/focus-server/internal/model"
)

type FocusSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.FocusSession, error)
	// FindByIDForUpdate row-locks the session until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*model.FocusSession, error)
	FindSummary(ctx context.Context, id string) (*model.SessionSummary, error)
	List(ctx context.Context, params model.ListSessionsParams) ([]model.SessionSummary, error)
	Create(ctx context.Context, params model.CreateFocusSessionParams) (*model.FocusSession, error)
	Delete(ctx context.Context, id string) error
	// Cancel flips a scheduled session to cancelled. Returns nil when nothing changed.
	Cancel(ctx context.Context, id string) (*model.FocusSession, error)
	// SetRoomIfAbsent stores the room handle only when none is set yet.
	SetRoomIfAbsent(ctx context.Context, id, roomID, roomName string) (bool, error)
	HostsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error)
	HostsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, endedBefore time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) FocusSessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type focusSessionRepo struct {
	db sessionDB
}

func NewFocusSessionRepository(db *sqlx.DB) FocusSessionRepository {
	return &focusSessionRepo{db: db}
}

func (r *focusSessionRepo) WithTx(tx *sqlx.Tx) FocusSessionRepository {
	return &focusSessionRepo{db: tx}
}

const summaryColumns = `
	s.*,
	(SELECT COUNT(*) FROM session_participants p WHERE p.session_id = s.id) AS participant_count,
	COALESCE(u.display_name, '') AS host_display_name
`

func (r *focusSessionRepo) FindByID(ctx context.Context, id string) (*model.FocusSession, error) {
	var session model.FocusSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM focus_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *focusSessionRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.FocusSession, error) {
	var session model.FocusSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM focus_sessions WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&session, err)
}

func (r *focusSessionRepo) FindSummary(ctx context.Context, id string) (*model.SessionSummary, error) {
	var summary model.SessionSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT `+summaryColumns+`
		FROM focus_sessions s
		LEFT JOIN user_profiles u ON u.user_id = s.host_id
		WHERE s.id = $1
	`, id)
	return HandleNotFound(&summary, err)
}

func (r *focusSessionRepo) List(ctx context.Context, params model.ListSessionsParams) ([]model.SessionSummary, error) {
	summaries := []model.SessionSummary{}
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT `+summaryColumns+`,
			COALESCE((
				SELECT p.role FROM session_participants p
				WHERE p.session_id = s.id AND p.user_id = $7
			), '') AS caller_role
		FROM focus_sessions s
		LEFT JOIN user_profiles u ON u.user_id = s.host_id
		WHERE s.start_at BETWEEN $1 AND $2
		AND s.end_at > $3
		AND ($4 OR s.status <> 'cancelled')
		ORDER BY s.start_at ASC, s.id ASC
		LIMIT $5 OFFSET $6
	`, params.From, params.To, params.Now, params.IncludeCancelled, params.Limit, params.Offset, params.UserID)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *focusSessionRepo) Create(ctx context.Context, params model.CreateFocusSessionParams) (*model.FocusSession, error) {
	var session model.FocusSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO focus_sessions (
			host_id, title, task, kind, start_at, end_at, duration_minutes,
			max_participants, status, room_id, room_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', $9, $10)
		RETURNING *
	`, params.HostID, params.Title, params.Task, params.Kind, params.StartAt.UTC(), params.EndAt.UTC(),
		params.DurationMinutes, params.MaxParticipants, params.RoomID, params.RoomName)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *focusSessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM focus_sessions WHERE id = $1`, id)
	return err
}

func (r *focusSessionRepo) Cancel(ctx context.Context, id string) (*model.FocusSession, error) {
	var session model.FocusSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE focus_sessions SET
			status = 'cancelled',
			updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
		RETURNING *
	`, id, time.Now())
	return HandleNotFound(&session, err)
}

func (r *focusSessionRepo) SetRoomIfAbsent(ctx context.Context, id, roomID, roomName string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE focus_sessions SET
			room_id = $2,
			room_name = $3,
			updated_at = $4
		WHERE id = $1 AND (room_id IS NULL OR room_id = '')
	`, id, roomID, roomName, time.Now())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *focusSessionRepo) HostsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM focus_sessions
			WHERE host_id = $1
			AND id::text <> $2
			AND status IN ('scheduled', 'active')
			AND start_at <= $3 AND end_at > $3
		)
	`, userID, excludeID, now)
	return exists, err
}

func (r *focusSessionRepo) HostsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM focus_sessions
			WHERE host_id = $1
			AND id::text <> $2
			AND status IN ('scheduled', 'active')
			AND start_at < $4 AND end_at > $3
			AND end_at > $5
		)
	`, userID, excludeID, start, end, now)
	return exists, err
}

func (r *focusSessionRepo) MarkCompleted(ctx context.Context, endedBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE focus_sessions SET
			status = 'completed',
			updated_at = NOW()
		WHERE status IN ('scheduled', 'active')
		AND end_at < $1
	`, endedBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
