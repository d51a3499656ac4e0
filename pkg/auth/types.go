package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/plank/pkg/tracker"
)

// APIToken represents a bearer token issued to a user
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the token can still authenticate at now
func (t *APIToken) Active(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}

// Method identifies how the caller authenticated
type Method string

const (
	MethodToken Method = "token"
	MethodOIDC  Method = "oidc"
)

// AuthContext holds authenticated caller information
type AuthContext struct {
	UserID int64
	Email  string
	Method Method
	Token  *APIToken
}

// TokenStore persists API tokens
type TokenStore interface {
	CreateToken(ctx context.Context, token *APIToken) error
	GetTokenByHash(ctx context.Context, hash string) (*APIToken, error)
	ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error)
	TouchToken(ctx context.Context, id int64, usedAt time.Time) error
	RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// UserLookup loads users for identity resolution
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*tracker.User, error)
	GetUserByEmail(ctx context.Context, email string) (*tracker.User, error)
}
