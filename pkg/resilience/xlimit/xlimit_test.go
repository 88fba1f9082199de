package xlimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/itemcache/pkg/resilience/xlimit"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name string
		rule xlimit.Rule
		ok   bool
	}{
		{"valid", xlimit.Rule{Rate: 10, Period: time.Second}, true},
		{"zero rate", xlimit.Rule{Period: time.Second}, false},
		{"zero period", xlimit.Rule{Rate: 1}, false},
		{"negative burst", xlimit.Rule{Rate: 1, Burst: -1, Period: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, xlimit.ErrInvalidRule)
			}
		})
	}
}

// =============================================================================
// Redis 后端
// =============================================================================

func TestNewRedis_NilClient(t *testing.T) {
	_, err := xlimit.NewRedis(nil, xlimit.Rule{Rate: 1, Period: time.Second})
	assert.ErrorIs(t, err, xlimit.ErrNilClient)
}

func TestRedisLimiter_Allow_ExhaustsBurst(t *testing.T) {
	// Given
	_, client := newRedis(t)
	limiter, err := xlimit.NewRedis(client, xlimit.Rule{Rate: 3, Period: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	// When
	for i := range 3 {
		res, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}
	res, err := limiter.Allow(ctx, "10.0.0.1")

	// Then
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")
}

func TestRedisLimiter_Allow_UsesConfiguredBurst(t *testing.T) {
	// Given: 速率 1/min，突发 2
	_, client := newRedis(t)
	limiter, err := xlimit.NewRedis(client, xlimit.Rule{Rate: 1, Burst: 2, Period: time.Minute}, xlimit.WithKeyPrefix("rl:"))
	require.NoError(t, err)
	ctx := context.Background()

	// When
	first, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	second, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	third, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)

	// Then
	assert.True(t, first.Allowed)
	assert.Equal(t, 2, first.Limit)
	assert.Equal(t, 1, first.Remaining)
	assert.True(t, second.Allowed)
	assert.False(t, third.Allowed)
	assert.Greater(t, third.RetryAfter, 30*time.Second)
}

func TestRedisLimiter_Allow_FailOpen(t *testing.T) {
	mr, client := newRedis(t)
	limiter, err := xlimit.NewRedis(client, xlimit.Rule{Rate: 1, Period: time.Second})
	require.NoError(t, err)
	mr.Close()

	res, err := limiter.Allow(context.Background(), "k")

	require.ErrorIs(t, err, xlimit.ErrRedisUnavailable)
	assert.True(t, res.Allowed)
}

func TestRedisLimiter_Allow_EmptyKey(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := xlimit.NewRedis(client, xlimit.Rule{Rate: 1, Period: time.Second})
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "")
	assert.ErrorIs(t, err, xlimit.ErrInvalidKey)
}

// =============================================================================
// 本地后端
// =============================================================================

func TestLocalLimiter_Allow_RefillsOverTime(t *testing.T) {
	// Given
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	limiter, err := xlimit.NewLocal(xlimit.Rule{Rate: 2, Period: time.Second}, xlimit.WithClock(clock))
	require.NoError(t, err)
	ctx := context.Background()

	// When: 消耗突发配额
	for range 2 {
		res, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	denied, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)

	// Then
	assert.False(t, denied.Allowed)
	assert.Equal(t, 500*time.Millisecond, denied.RetryAfter)

	now = now.Add(500 * time.Millisecond)
	res, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalLimiter_Allow_CanceledContext(t *testing.T) {
	limiter, err := xlimit.NewLocal(xlimit.Rule{Rate: 1, Period: time.Second})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = limiter.Allow(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// HTTP 中间件
// =============================================================================

type stubLimiter struct {
	res *xlimit.Result
	err error
}

func (s stubLimiter) Allow(context.Context, string) (*xlimit.Result, error) { return s.res, s.err }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestHTTPMiddleware_Denied(t *testing.T) {
	limiter := stubLimiter{res: &xlimit.Result{Limit: 5, RetryAfter: 1500 * time.Millisecond, ResetAfter: time.Second}}
	h := xlimit.HTTPMiddleware(limiter)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1/db", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestHTTPMiddleware_Allowed(t *testing.T) {
	limiter := stubLimiter{res: &xlimit.Result{Allowed: true, Limit: 5, Remaining: 4}}
	var gotKey string
	h := xlimit.HTTPMiddleware(limiter, xlimit.WithKeyFunc(func(r *http.Request) string {
		gotKey = xlimit.RemoteIP(r)
		return gotKey
	}))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/items/1/db", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.7", gotKey)
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestHTTPMiddleware_ErrorFailsOpen(t *testing.T) {
	limiter := stubLimiter{res: &xlimit.Result{Allowed: true}, err: errors.New("redis down")}
	var seen error
	h := xlimit.HTTPMiddleware(limiter,
		xlimit.WithErrorHandler(func(_ *http.Request, err error) { seen = err }),
		xlimit.WithDenyHandler(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
	)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualError(t, seen, "redis down")
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRemoteIP_NoPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", xlimit.RemoteIP(req))
}

func TestLocalLimiter_Allow_EvictsLeastRecentKey(t *testing.T) {
	// Given: 只跟踪 1 个键
	limiter, err := xlimit.NewLocal(xlimit.Rule{Rate: 1, Period: time.Hour}, xlimit.WithMaxKeys(1))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.True(t, first.Allowed)
	denied, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	// When: 新键把 a 的令牌桶挤出
	_, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	again, err := limiter.Allow(ctx, "a")

	// Then
	require.NoError(t, err)
	assert.True(t, again.Allowed, "evicted key restarts with a full bucket")
}
