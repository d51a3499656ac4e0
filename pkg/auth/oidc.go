package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// OIDCConfig configures ID token verification
type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// OIDCAuthenticator accepts ID tokens from an OpenID provider as bearer
// credentials and maps the verified email claim to a registered user.
type OIDCAuthenticator struct {
	verify func(ctx context.Context, rawIDToken string) (*idTokenClaims, error)
	users  UserLookup
}

// NewOIDCAuthenticator discovers the provider and builds a verifier for cfg.ClientID
func NewOIDCAuthenticator(ctx context.Context, cfg OIDCConfig, users UserLookup) (*OIDCAuthenticator, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("OIDC issuer URL and client ID are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	return &OIDCAuthenticator{
		users: users,
		verify: func(ctx context.Context, raw string) (*idTokenClaims, error) {
			idToken, err := verifier.Verify(ctx, raw)
			if err != nil {
				return nil, err
			}
			var claims idTokenClaims
			if err := idToken.Claims(&claims); err != nil {
				return nil, fmt.Errorf("failed to parse claims: %w", err)
			}
			return &claims, nil
		},
	}, nil
}

// Authenticate implements Authenticator
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, credential string) (*AuthContext, error) {
	claims, err := a.verify(ctx, credential)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, ErrInvalidToken
	}

	user, err := a.users.GetUserByEmail(ctx, strings.ToLower(claims.Email))
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &AuthContext{
		UserID: user.ID,
		Email:  user.Email,
		Method: MethodOIDC,
	}, nil
}
