package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/taskdeck/pkg/auth"
	"github.com/quillback/taskdeck/pkg/contextkeys"
)

func TestRateLimiterAllow(t *testing.T) {
	rl, err := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
		MaxKeys:           16,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("alice"), "request %d should pass", i)
	}
	assert.False(t, rl.Allow("alice"), "sixth request should be limited")

	// Other keys are unaffected.
	assert.True(t, rl.Allow("bob"))
}

func TestRateLimiterRefill(t *testing.T) {
	rl, err := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute, // 10 tokens per second
		BurstSize:         0,
		MaxKeys:           16,
	})
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		rl.Allow("alice")
	}
	require.False(t, rl.Allow("alice"))

	time.Sleep(250 * time.Millisecond)
	assert.True(t, rl.Allow("alice"), "bucket refills over time")
}

func TestRateLimiterDefaultConfig(t *testing.T) {
	rl, err := NewRateLimiter(nil)
	require.NoError(t, err)
	assert.True(t, rl.Allow("anyone"))
}

func TestRateLimitHandler(t *testing.T) {
	rl, err := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
		MaxKeys:           16,
	})
	require.NoError(t, err)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	asAlice := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/tasks", nil)
		req = req.WithContext(contextkeys.WithIdentity(req.Context(), &auth.Identity{UserID: 1}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, asAlice().Code)
	assert.Equal(t, http.StatusOK, asAlice().Code)

	rec := asAlice()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different caller is keyed separately.
	req := httptest.NewRequest("GET", "/tasks", nil)
	req = req.WithContext(contextkeys.WithIdentity(req.Context(), &auth.Identity{UserID: 2}))
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}
