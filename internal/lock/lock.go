// Package lock provides the per-user exclusive lock that serializes seat
// claims by the same user across all sessions.
package lock

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Release ends a lock acquisition. It must be called after the surrounding
// transaction has committed or rolled back.
type Release func()

func noopRelease() {}

// UserLocker acquires an exclusive lock keyed by user ID. Implementations
// that are transaction-scoped use tx; others ignore it.
type UserLocker interface {
	Acquire(ctx context.Context, tx *sqlx.Tx, userID string) (Release, error)
}
