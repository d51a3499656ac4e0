package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerUserRateLimitConfig returns per-user rate limit settings
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     rl.config.RequestsPerWindow + rl.config.BurstSize,
			lastUpdate: time.Now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)

	// Refill tokens based on elapsed time
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		maxTokens := rl.config.RequestsPerWindow + rl.config.BurstSize
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	// Check if request is allowed
	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.config.RequestsPerWindow + rl.config.BurstSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokens
}

// Cleanup removes old buckets (should be called periodically)
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// RateLimitMiddleware provides HTTP rate limiting
type RateLimitMiddleware struct {
	userLimiter      *RateLimiter
	anonymousLimiter *RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return NewRateLimitMiddlewareWithConfig(PerUserRateLimitConfig(), DefaultRateLimitConfig())
}

// NewRateLimitMiddlewareWithConfig creates a middleware with explicit limits
func NewRateLimitMiddlewareWithConfig(user, anonymous *RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		userLimiter:      NewRateLimiter(user),
		anonymousLimiter: NewRateLimiter(anonymous),
	}
}

// StartCleanup evicts idle buckets until ctx is done
func (m *RateLimitMiddleware) StartCleanup(ctx context.Context) {
	m.userLimiter.StartCleanup(ctx)
	m.anonymousLimiter.StartCleanup(ctx)
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := m.anonymousLimiter
		key, authenticated := rateLimitKey(r)
		if authenticated {
			limiter = m.userLimiter
		}

		if !limiter.Allow(key) {
			reset := time.Now().Add(limiter.config.WindowDuration)
			rateLimitExceeded(w, limiter.config, limiter.config.WindowDuration, reset)
			return
		}

		setRateLimitHeaders(w, limiter.config, limiter.Remaining(key), time.Now().Add(limiter.config.WindowDuration))
		next.ServeHTTP(w, r)
	})
}

// rateLimitKey returns the bucket key for r and whether it names a user
func rateLimitKey(r *http.Request) (string, bool) {
	if authCtx, ok := auth.FromContext(r.Context()); ok {
		return "user:" + formatID(authCtx.UserID), true
	}
	return "ip:" + getClientIP(r), false
}

func setRateLimitHeaders(w http.ResponseWriter, config *RateLimitConfig, remaining int, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func rateLimitExceeded(w http.ResponseWriter, config *RateLimitConfig, retryAfter time.Duration, reset time.Time) {
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
	setRateLimitHeaders(w, config, 0, reset)
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
