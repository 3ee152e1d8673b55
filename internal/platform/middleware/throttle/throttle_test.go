package throttle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubLimiter) Allow(context.Context, string) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalLimiterEnforcesBurst(t *testing.T) {
	l := NewLocal(3, time.Hour)

	for i := range 3 {
		allowed, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within burst", i+1)
	}
	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed, "burst exhausted")

	// Other keys are unaffected.
	allowed, err = l.Allow(context.Background(), "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func serve(t *testing.T, primary, fallback Limiter) int {
	t.Helper()
	h := Middleware(primary, fallback, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Code
}

func TestMiddlewareUsesPrimary(t *testing.T) {
	primary := &stubLimiter{allowed: false}
	fallback := &stubLimiter{allowed: true}

	assert.Equal(t, http.StatusTooManyRequests, serve(t, primary, fallback))
	assert.Equal(t, 0, fallback.calls, "fallback stays idle while primary is healthy")
}

func TestMiddlewareFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubLimiter{err: errors.New("redis: connection refused")}
	fallback := &stubLimiter{allowed: true}

	assert.Equal(t, http.StatusNoContent, serve(t, primary, fallback))
	assert.Equal(t, 1, fallback.calls)

	fallback.allowed = false
	assert.Equal(t, http.StatusTooManyRequests, serve(t, primary, fallback))
}

func TestMiddlewareWithoutPrimary(t *testing.T) {
	fallback := &stubLimiter{allowed: true}
	assert.Equal(t, http.StatusNoContent, serve(t, nil, fallback))
	assert.Equal(t, 1, fallback.calls)
}

func TestMiddlewareFailsOpenWhenAllLimitersError(t *testing.T) {
	primary := &stubLimiter{err: errors.New("down")}
	fallback := &stubLimiter{err: errors.New("also down")}
	assert.Equal(t, http.StatusNoContent, serve(t, primary, fallback))
}
