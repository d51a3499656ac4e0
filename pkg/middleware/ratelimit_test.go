package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/contextkeys"
)

func withAuth(r *http.Request, userID int64) *http.Request {
	ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{UserID: userID, Method: auth.MethodToken})
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	key := "test-user"

	// Should allow initial requests up to limit + burst
	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		if limiter.Allow(key) {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}

	// After waiting, tokens should refill
	time.Sleep(time.Second)
	if !limiter.Allow(key) {
		t.Error("Should allow request after refill")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	key := "test-user"

	// Check initial remaining
	initial := limiter.Remaining(key)
	expected := config.RequestsPerWindow + config.BurstSize
	if initial != expected {
		t.Errorf("Initial remaining = %d, want %d", initial, expected)
	}

	// Use one token
	limiter.Allow(key)
	remaining := limiter.Remaining(key)
	if remaining != initial-1 {
		t.Errorf("After using 1 token, remaining = %d, want %d", remaining, initial-1)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	// Create some buckets
	keys := []string{"user1", "user2", "user3"}
	for _, key := range keys {
		limiter.Allow(key)
	}

	// Buckets should exist
	if len(limiter.buckets) != len(keys) {
		t.Errorf("Expected %d buckets, got %d", len(keys), len(limiter.buckets))
	}

	// Wait for buckets to become stale
	time.Sleep(300 * time.Millisecond)

	// Cleanup should remove old buckets
	limiter.Cleanup()

	if len(limiter.buckets) != 0 {
		t.Errorf("Expected 0 buckets after cleanup, got %d", len(limiter.buckets))
	}
}

func TestRateLimitConfig_Defaults(t *testing.T) {
	config := DefaultRateLimitConfig()

	if config.RequestsPerWindow <= 0 {
		t.Error("RequestsPerWindow should be positive")
	}
	if config.WindowDuration <= 0 {
		t.Error("WindowDuration should be positive")
	}
	if config.BurstSize < 0 {
		t.Error("BurstSize should be non-negative")
	}
}

func TestPerUserRateLimitConfig(t *testing.T) {
	config := PerUserRateLimitConfig()

	defaultConfig := DefaultRateLimitConfig()
	if config.RequestsPerWindow <= defaultConfig.RequestsPerWindow {
		t.Error("User rate limit should be higher than default")
	}
}

func TestRateLimiter_Concurrency(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Second,
		BurstSize:         10,
	}
	limiter := NewRateLimiter(config)

	key := "concurrent-user"
	concurrency := 10
	requestsPerGoroutine := 20

	// Run concurrent requests
	results := make(chan bool, concurrency*requestsPerGoroutine)
	for i := 0; i < concurrency; i++ {
		go func() {
			for j := 0; j < requestsPerGoroutine; j++ {
				results <- limiter.Allow(key)
			}
		}()
	}

	// Collect results
	allowedCount := 0
	for i := 0; i < concurrency*requestsPerGoroutine; i++ {
		if <-results {
			allowedCount++
		}
	}

	// Should respect rate limit even with concurrent requests
	maxAllowed := config.RequestsPerWindow + config.BurstSize
	if allowedCount > maxAllowed {
		t.Errorf("Allowed %d requests with concurrency, should not exceed %d", allowedCount, maxAllowed)
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         0,
	}
	limiter := NewRateLimiter(config)

	key := "refill-test"

	// Exhaust tokens
	for i := 0; i < config.RequestsPerWindow; i++ {
		limiter.Allow(key)
	}

	// Should be denied
	if limiter.Allow(key) {
		t.Error("Should deny request after exhausting tokens")
	}

	// Wait for half the window
	time.Sleep(time.Second / 2)

	// Should have some tokens refilled (approximately half)
	if !limiter.Allow(key) {
		t.Error("Should allow request after partial refill")
	}
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	// Should use default config when nil is passed
	limiter := NewRateLimiter(nil)
	if limiter == nil {
		t.Fatal("NewRateLimiter should not return nil")
	}
	if limiter.config == nil {
		t.Fatal("NewRateLimiter should have default config")
	}
	if limiter.config.RequestsPerWindow <= 0 {
		t.Error("Default config should have positive RequestsPerWindow")
	}
}

func TestRateLimiter_TokenCapRefill(t *testing.T) {
	// Test that tokens don't exceed max when refilling
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         5,
	}
	limiter := NewRateLimiter(config)

	key := "cap-test"

	// Use some tokens
	for i := 0; i < 5; i++ {
		limiter.Allow(key)
	}

	// Wait for much longer than the window to trigger refill beyond max
	time.Sleep(500 * time.Millisecond)

	// Try to use tokens - should have refilled to max
	allowed := 0
	maxAllowed := config.RequestsPerWindow + config.BurstSize
	for i := 0; i < maxAllowed+5; i++ {
		if limiter.Allow(key) {
			allowed++
		}
	}

	// Should only allow up to max, not more
	if allowed != maxAllowed {
		t.Errorf("Should allow exactly %d requests after full refill, got %d", maxAllowed, allowed)
	}
}

func TestRateLimitMiddleware_RateLimitExceeded_Headers(t *testing.T) {
	middleware := NewRateLimitMiddleware()

	middleware.anonymousLimiter.config = &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	}

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	// Exhaust limit
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Trigger rate limit
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}

	// Verify all required headers are set
	headers := []string{"Content-Type", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	for _, header := range headers {
		if rec.Header().Get(header) == "" {
			t.Errorf("Header %s should be set", header)
		}
	}

	// Verify Content-Type is JSON
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type should be application/json, got %s", rec.Header().Get("Content-Type"))
	}

	// Verify Retry-After is positive
	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" || retryAfter == "0" {
		t.Errorf("Retry-After should be positive, got %s", retryAfter)
	}
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    20 * time.Millisecond,
		BurstSize:         2,
	})
	limiter.Allow("user1")
	limiter.Allow("user2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx)

	assert.Eventually(t, func() bool {
		limiter.mu.RLock()
		defer limiter.mu.RUnlock()
		return len(limiter.buckets) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For header",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For chain uses first hop",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.9"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Real-IP header",
			headers:    map[string]string{"X-Real-IP": "192.168.1.2"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.2",
		},
		{
			name:       "RemoteAddr fallback strips port",
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "10.0.0.1",
			expectedIP: "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expectedIP, getClientIP(req))
		})
	}
}

func TestRateLimitMiddleware_Handler_Anonymous(t *testing.T) {
	m := NewRateLimitMiddlewareWithConfig(PerUserRateLimitConfig(), &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})
	handler := m.Handler(okHandler())

	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	// another address has its own bucket
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_Handler_KeysOnUser(t *testing.T) {
	m := NewRateLimitMiddlewareWithConfig(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
	})
	handler := m.Handler(okHandler())

	send := func(userID int64, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		req = withAuth(req, userID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// the same user from two addresses shares one bucket
	assert.Equal(t, http.StatusOK, send(7, "10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, send(7, "10.0.0.2:1"))
	assert.Equal(t, http.StatusTooManyRequests, send(7, "10.0.0.3:1"))

	assert.Equal(t, http.StatusOK, send(8, "10.0.0.1:1"))
}
