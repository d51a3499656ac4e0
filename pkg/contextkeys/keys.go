// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// producers and consumers agree on one key value and one stored type.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/plank/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, ok := auth.FromContext(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: auth.Resolver, every protected API endpoint
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: httputil request logging and panic recovery, audit.NewEvent
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID as a string
	// Set by: middleware.AuthMiddleware after authentication
	// Used by: handlers via GetUserID
	// Type: string
	UserIDKey Key = "user_id"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
