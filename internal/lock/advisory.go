package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var errNoTx = errors.New("advisory lock requires a transaction")

// AdvisoryLocker takes a Postgres transaction-scoped advisory lock. The lock
// is released by Postgres when the transaction ends, so Release is a no-op.
type AdvisoryLocker struct{}

func NewAdvisoryLocker() *AdvisoryLocker {
	return &AdvisoryLocker{}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, tx *sqlx.Tx, userID string) (Release, error) {
	if tx == nil {
		return nil, errNoTx
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "seat-claim:"+userID); err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", userID, err)
	}
	return noopRelease, nil
}
