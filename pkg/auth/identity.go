package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/plank/pkg/contextkeys"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// ErrUnauthenticated is returned when no verified identity is attached to the context
var ErrUnauthenticated = errors.New("authentication required")

// Authenticator turns a bearer credential into an AuthContext
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*AuthContext, error)
}

// FromContext returns the AuthContext set by the auth middleware
func FromContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return authCtx, ok && authCtx != nil
}

// Resolver returns the current user for a request
type Resolver struct {
	users UserLookup
}

// NewResolver creates a resolver that loads users from users
func NewResolver(users UserLookup) *Resolver {
	return &Resolver{users: users}
}

// CurrentUser loads the caller's user record. The record is read fresh on every call.
func (r *Resolver) CurrentUser(ctx context.Context) (*tracker.User, error) {
	authCtx, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := r.users.GetUser(ctx, authCtx.UserID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return user, nil
}

// TokenAuthenticator authenticates plank API tokens
type TokenAuthenticator struct {
	tokens *TokenManager
}

// NewTokenAuthenticator creates an authenticator over tokens
func NewTokenAuthenticator(tokens *TokenManager) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

// Authenticate implements Authenticator
func (a *TokenAuthenticator) Authenticate(ctx context.Context, credential string) (*AuthContext, error) {
	token, err := a.tokens.ValidateToken(ctx, credential)
	if err != nil {
		return nil, err
	}
	return &AuthContext{
		UserID: token.UserID,
		Method: MethodToken,
		Token:  token,
	}, nil
}

// ChainAuthenticator routes plank tokens to the token authenticator and
// anything else to the OIDC authenticator, if one is configured.
type ChainAuthenticator struct {
	tokens Authenticator
	oidc   Authenticator
}

// NewChainAuthenticator creates a chain. oidc may be nil.
func NewChainAuthenticator(tokens, oidc Authenticator) *ChainAuthenticator {
	return &ChainAuthenticator{tokens: tokens, oidc: oidc}
}

// Authenticate implements Authenticator
func (c *ChainAuthenticator) Authenticate(ctx context.Context, credential string) (*AuthContext, error) {
	if strings.HasPrefix(credential, TokenPrefix) || c.oidc == nil {
		return c.tokens.Authenticate(ctx, credential)
	}
	return c.oidc.Authenticate(ctx, credential)
}
