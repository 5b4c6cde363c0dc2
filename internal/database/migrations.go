package database

import (
	"context"
	"fmt"
	"strings"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS focus_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		host_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		task TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'focus' CHECK (kind IN ('focus', 'room')),
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		max_participants INTEGER NOT NULL DEFAULT 3 CHECK (max_participants BETWEEN 2 AND 200),
		status TEXT NOT NULL DEFAULT 'scheduled'
			CHECK (status IN ('scheduled', 'active', 'cancelled', 'completed')),
		room_id TEXT,
		room_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (end_at > start_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_focus_sessions_start ON focus_sessions (start_at)`,
	`CREATE INDEX IF NOT EXISTS idx_focus_sessions_host_window ON focus_sessions (host_id, start_at, end_at)
		WHERE status IN ('scheduled', 'active')`,
	`CREATE TABLE IF NOT EXISTS session_participants (
		session_id UUID NOT NULL REFERENCES focus_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'participant' CHECK (role IN ('host', 'participant')),
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_participants_user ON session_participants (user_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_session_participants_one_host ON session_participants (session_id)
		WHERE role = 'host'`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate applies the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
