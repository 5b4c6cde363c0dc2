package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		for i := 0; i < 5; i++ {
			allowed, remaining, _ := limiter.Check(ctx, "user-1", 10)
			assert.True(t, allowed)
			assert.Equal(t, 10-i-1, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "user-2", 5)
		}

		allowed, remaining, _ := limiter.Check(ctx, "user-2", 5)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "user-a", 5)
		}

		allowed, _, _ := limiter.Check(ctx, "user-b", 5)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		now := time.Now()
		limiter.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			limiter.Check(ctx, "user-c", 3)
		}
		allowed, _, _ := limiter.Check(ctx, "user-c", 3)
		require.False(t, allowed)

		now = now.Add(windowDuration + time.Second)
		allowed, _, _ = limiter.Check(ctx, "user-c", 3)
		assert.True(t, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	newHandler := func(limit int) http.Handler {
		return NewRateLimitMiddleware(NewMemoryLimiter(), limit).Handler(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
	}

	t.Run("sets headers and blocks over limit", func(t *testing.T) {
		handler := newHandler(2)
		ctx := WithIdentity(context.Background(), &Identity{UserID: "alice"})

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("users are limited independently", func(t *testing.T) {
		handler := newHandler(1)
		for _, user := range []string{"alice", "bob"} {
			ctx := WithIdentity(context.Background(), &Identity{UserID: user})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("anonymous callers keyed by address", func(t *testing.T) {
		handler := newHandler(1)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestRedisLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("redis not available")
	}
	key := "test-user-" + time.Now().Format(time.RFC3339Nano)
	defer client.Del(ctx, rateLimitKeyPrefix+key)

	limiter := NewRedisLimiter(client)
	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Check(ctx, key, 3)
		assert.True(t, allowed)
		assert.Equal(t, 3-i-1, remaining)
	}
	allowed, _, _ := limiter.Check(ctx, key, 3)
	assert.False(t, allowed)
}
