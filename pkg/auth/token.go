package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/plank/pkg/tracker"
)

const (
	// TokenPrefix identifies plank tokens
	TokenPrefix = "plank_"
	// TokenLength is the number of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrInvalidToken is returned for unknown, revoked or expired tokens
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: plank_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encoded

	return fullToken, tg.HashToken(fullToken), tg.ExtractPrefix(fullToken), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// ExtractPrefix returns the displayable prefix of a token
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

// TokenManager manages API token lifecycle
type TokenManager struct {
	generator *TokenGenerator
	store     TokenStore
	cache     *TokenCache
	now       func() time.Time
}

// NewTokenManager creates a token manager over store. cache may be nil.
func NewTokenManager(store TokenStore, cache *TokenCache) *TokenManager {
	return &TokenManager{
		generator: NewTokenGenerator(),
		store:     store,
		cache:     cache,
		now:       time.Now,
	}
}

// CreateToken issues a token for userID. The plaintext is returned once and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", tracker.Validation("token name is required")
	}
	if expiresAt != nil && !expiresAt.After(tm.now()) {
		return nil, "", tracker.Validation("token expiry must be in the future")
	}

	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   expiresAt,
		CreatedAt:   tm.now().UTC(),
	}

	if err := tm.store.CreateToken(ctx, apiToken); err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken resolves a plaintext token to its record
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := tm.generator.HashToken(token)
	now := tm.now()

	if tm.cache != nil {
		if cached, ok := tm.cache.Get(tokenHash); ok && cached.Active(now) {
			return cached, nil
		}
	}

	apiToken, err := tm.store.GetTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !apiToken.Active(now) {
		return nil, ErrInvalidToken
	}

	// Last-used is best effort; a failed touch must not reject a valid token.
	_ = tm.store.TouchToken(ctx, apiToken.ID, now.UTC())

	if tm.cache != nil {
		tm.cache.Add(tokenHash, apiToken)
	}
	return apiToken, nil
}

// RevokeToken revokes a token owned by userID
func (tm *TokenManager) RevokeToken(ctx context.Context, userID, tokenID int64) error {
	tokens, err := tm.store.ListUserTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	for _, t := range tokens {
		if t.ID != tokenID {
			continue
		}
		if err := tm.store.RevokeToken(ctx, tokenID, tm.now().UTC()); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
		if tm.cache != nil {
			tm.cache.Remove(t.TokenHash)
		}
		return nil
	}

	return tracker.NotFound("token", tokenID)
}

// ListUserTokens lists all tokens for a user
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	tokens, err := tm.store.ListUserTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// CleanupExpiredTokens removes tokens whose expiry has passed
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := tm.store.DeleteExpiredTokens(ctx, tm.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	if n > 0 && tm.cache != nil {
		tm.cache.Purge()
	}
	return n, nil
}
