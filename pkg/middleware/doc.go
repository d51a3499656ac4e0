// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer authentication
//
//	authMW := middleware.NewAuthMiddleware(authenticator, logger)
//	router.Use(authMW.Handler)
//	// Extracts the Bearer credential, authenticates it, adds *auth.AuthContext to the request
//
// RateLimitMiddleware: in-memory token buckets
//
//	rl := middleware.NewRateLimitMiddleware()
//	router.Use(rl.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed fixed windows shared by every instance
//
//	rl := middleware.NewDistributedRateLimitMiddleware(redisClient, logger)
//	router.Use(rl.Handler)
//
// Rate limiting keys on the authenticated user id when the auth middleware
// ran first, otherwise on the client address.
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-User: 1000 req/min, 50 burst
//
// # Related Packages
//
//   - pkg/auth: credential verification
//   - pkg/httputil: response helpers
package middleware
