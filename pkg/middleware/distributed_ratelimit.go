package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DistributedRateLimiter counts requests per fixed window in Redis so every
// instance shares the same limits
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "plank:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow increments the window counter for key. The window starts at the first request.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.redisKey(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return false, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.redisKey(key)).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the window for key resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.redisKey(key)).Result()
}

// Reset clears the window for key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.redisKey(key)).Err()
}

// DistributedRateLimitMiddleware provides HTTP rate limiting backed by Redis
type DistributedRateLimitMiddleware struct {
	redis            *redis.Client
	userLimiter      *DistributedRateLimiter
	anonymousLimiter *DistributedRateLimiter
	logger           *logrus.Logger
	failOpen         bool
}

// NewDistributedRateLimitMiddleware creates a Redis-backed middleware that
// fails open when Redis is unreachable
func NewDistributedRateLimitMiddleware(redisClient *redis.Client, logger *logrus.Logger) *DistributedRateLimitMiddleware {
	return NewDistributedRateLimitMiddlewareWithConfig(redisClient, logger, PerUserRateLimitConfig(), DefaultRateLimitConfig())
}

// NewDistributedRateLimitMiddlewareWithConfig creates a middleware with explicit limits
func NewDistributedRateLimitMiddlewareWithConfig(redisClient *redis.Client, logger *logrus.Logger, user, anonymous *RateLimitConfig) *DistributedRateLimitMiddleware {
	if logger == nil {
		logger = logrus.New()
	}
	return &DistributedRateLimitMiddleware{
		redis:            redisClient,
		userLimiter:      NewDistributedRateLimiter(redisClient, user, "plank:ratelimit:user"),
		anonymousLimiter: NewDistributedRateLimiter(redisClient, anonymous, "plank:ratelimit:anon"),
		logger:           logger,
		failOpen:         true,
	}
}

// SetFailOpen controls whether requests pass (true) or get a 503 (false) on Redis errors
func (m *DistributedRateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with distributed rate limiting
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limiter := m.anonymousLimiter
		key, authenticated := rateLimitKey(r)
		if authenticated {
			limiter = m.userLimiter
		}

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("Rate limit check failed")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		ttl, err := limiter.TTL(ctx, key)
		if err != nil || ttl <= 0 {
			ttl = limiter.config.WindowDuration
		}
		reset := time.Now().Add(ttl)

		if !allowed {
			rateLimitExceeded(w, limiter.config, ttl, reset)
			return
		}

		if remaining, err := limiter.Remaining(ctx, key); err == nil {
			setRateLimitHeaders(w, limiter.config, remaining, reset)
		}
		next.ServeHTTP(w, r)
	})
}

// HealthCheck verifies Redis connectivity for rate limiting
func (m *DistributedRateLimitMiddleware) HealthCheck(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
