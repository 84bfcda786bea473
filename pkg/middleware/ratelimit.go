package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quillback/taskdeck/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
	// MaxKeys bounds how many distinct callers hold limiter state
	MaxKeys int
}

// DefaultRateLimitConfig returns default per-caller rate limit settings
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 300,
		WindowDuration:    time.Minute,
		BurstSize:         30,
		MaxKeys:           4096,
	}
}

// RateLimiter implements per-key token bucket rate limiting. Bucket state
// lives in an LRU so an attacker cycling identities cannot grow memory
// without bound.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
	metrics *observability.Metrics
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) (*RateLimiter, error) {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	cache, err := lru.New[string, *bucket](config.MaxKeys)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		config:  config,
		buckets: cache,
	}, nil
}

// SetMetrics attaches a metrics registry for rejection counting.
func (rl *RateLimiter) SetMetrics(m *observability.Metrics) {
	rl.metrics = m
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	maxTokens := float64(rl.config.RequestsPerWindow + rl.config.BurstSize)

	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{tokens: maxTokens, lastUpdate: time.Now()}
		// If another goroutine raced us, use whichever bucket won.
		if prev, found, _ := rl.buckets.PeekOrAdd(key, b); found {
			b = prev
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)
	refill := elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens += refill
	if b.tokens > maxTokens {
		b.tokens = maxTokens
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Handler wraps an HTTP handler with per-caller rate limiting. The key is
// the authenticated user id when present, the remote address otherwise.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if identity := GetIdentity(r); identity != nil {
			key = "user:" + strconv.FormatInt(identity.UserID, 10)
		}

		if !rl.Allow(key) {
			if rl.metrics != nil {
				rl.metrics.RateLimitRejectionsTotal.Inc()
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
