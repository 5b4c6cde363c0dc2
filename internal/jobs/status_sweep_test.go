package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeCompleter) MarkCompleted(ctx context.Context, endedBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endedBefore)
	return int64(len(f.calls)), f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestStatusSweepJob(t *testing.T) {
	t.Run("sweeps immediately and on every tick", func(t *testing.T) {
		repo := &fakeCompleter{}
		job := NewStatusSweepJob(repo, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return repo.callCount() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()

		n := repo.callCount()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, n, repo.callCount(), "no sweeps after Stop")
	})

	t.Run("passes the current time as cutoff", func(t *testing.T) {
		repo := &fakeCompleter{}
		job := NewStatusSweepJob(repo, time.Hour)
		fixed := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
		job.now = func() time.Time { return fixed }

		job.sweep()

		assert.Equal(t, []time.Time{fixed}, repo.calls)
	})

	t.Run("survives repository errors", func(t *testing.T) {
		repo := &fakeCompleter{err: errors.New("db down")}
		job := NewStatusSweepJob(repo, time.Hour)

		assert.NotPanics(t, job.sweep)
		assert.Equal(t, 1, repo.callCount())
	})
}
