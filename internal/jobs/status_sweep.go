package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const sweepTimeout = 30 * time.Second

type sessionCompleter interface {
	MarkCompleted(ctx context.Context, endedBefore time.Time) (int64, error)
}

// StatusSweepJob persists the completed status of sessions whose end has
// passed. Reads never depend on it; status is derived from the clock.
type StatusSweepJob struct {
	sessions sessionCompleter
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	stopped  chan struct{}
}

func NewStatusSweepJob(sessions sessionCompleter, interval time.Duration) *StatusSweepJob {
	return &StatusSweepJob{
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *StatusSweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("status sweep job started")
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (j *StatusSweepJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("status sweep job stopped")
}

func (j *StatusSweepJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *StatusSweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	count, err := j.sessions.MarkCompleted(ctx, j.now())
	if err != nil {
		log.Error().Err(err).Msg("failed to mark ended sessions completed")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("marked ended sessions completed")
	}
}
