package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	t.Run("serializes the same user", func(t *testing.T) {
		locker := NewMemoryLocker()
		ctx := context.Background()

		var inside int32
		var maxInside int32
		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locker.Acquire(ctx, nil, "alice")
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				release()
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxInside)
		assert.Equal(t, 0, locker.Len())
	})

	t.Run("different users do not block each other", func(t *testing.T) {
		locker := NewMemoryLocker()
		ctx := context.Background()

		releaseA, err := locker.Acquire(ctx, nil, "alice")
		require.NoError(t, err)
		defer releaseA()

		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		releaseB, err := locker.Acquire(ctx, nil, "bob")
		require.NoError(t, err)
		releaseB()
	})

	t.Run("gives up when context is done", func(t *testing.T) {
		locker := NewMemoryLocker()

		release, err := locker.Acquire(context.Background(), nil, "alice")
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = locker.Acquire(ctx, nil, "alice")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		locker := NewMemoryLocker()

		release, err := locker.Acquire(context.Background(), nil, "alice")
		require.NoError(t, err)
		release()
		release()

		assert.Equal(t, 0, locker.Len())
	})
}

func TestAdvisoryLocker_RequiresTx(t *testing.T) {
	_, err := NewAdvisoryLocker().Acquire(context.Background(), nil, "alice")
	assert.Error(t, err)
}
