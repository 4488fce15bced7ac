package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func limitedHandler(limit RateLimit) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewRateLimiter(limit).Middleware()(inner)
}

func hit(t *testing.T, handler http.Handler, remote string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remote
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterRejectsOverBudget(t *testing.T) {
	handler := limitedHandler(RateLimit{RequestsPerMinute: 60, Burst: 2})

	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:5000", nil))
	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:5001", nil))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, "10.0.0.1:5002", nil))

	// A different client keeps its own bucket.
	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.2:5000", nil))
}

func TestRateLimiterKeysClientsByProxyHeaders(t *testing.T) {
	handler := limitedHandler(RateLimit{RequestsPerMinute: 60, Burst: 1})

	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:5000", map[string]string{"X-Real-IP": "203.0.113.7"}))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, "10.0.0.9:6000", map[string]string{"X-Real-IP": "203.0.113.7"}))

	require.Equal(t, http.StatusOK, hit(t, handler, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}))
	require.Equal(t, http.StatusTooManyRequests, hit(t, handler, "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "198.51.100.4"}))
}

func TestRateLimiterDefaultsZeroConfig(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{})
	bucket := limiter.obtainLimiter("client")
	require.True(t, bucket.Allow())
	require.False(t, bucket.Allow())
}

func TestRateLimiterPrunesIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})
	base := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return base }
	limiter.obtainLimiter("stale")

	limiter.clockNow = func() time.Time { return base.Add(visitorTTL + time.Minute) }
	limiter.obtainLimiter("fresh")
	require.Len(t, limiter.visitors, 1)
	require.Contains(t, limiter.visitors, "fresh")
}
