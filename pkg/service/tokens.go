package service

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// CreateToken issues a token for the caller. The plaintext is only returned here.
func (s *Service) CreateToken(ctx context.Context, caller *tracker.User, name string, expiresAt *time.Time) (*auth.APIToken, string, error) {
	return s.issueToken(ctx, caller, caller.ID, name, expiresAt)
}

// IssueToken issues a token for another user. Administrators only.
func (s *Service) IssueToken(ctx context.Context, caller *tracker.User, userID int64, name string, expiresAt *time.Time) (*auth.APIToken, string, error) {
	if _, err := requireText("token name", name); err != nil {
		return nil, "", err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if err := requireAdmin(caller); err != nil {
		return nil, "", s.deny(ctx, caller, audit.ResourceTypeUser, user.ID, err)
	}
	return s.issueToken(ctx, caller, user.ID, name, expiresAt)
}

func (s *Service) issueToken(ctx context.Context, caller *tracker.User, userID int64, name string, expiresAt *time.Time) (*auth.APIToken, string, error) {
	token, plaintext, err := s.tokens.CreateToken(ctx, userID, name, expiresAt)
	if err != nil {
		return nil, "", err
	}
	s.record(ctx, caller, audit.EventTypeAuthTokenCreate, audit.ResourceTypeToken, token.ID,
		fmt.Sprintf("token %s issued to user %d", token.TokenPrefix, userID))
	return token, plaintext, nil
}

// ListTokens lists the caller's tokens
func (s *Service) ListTokens(ctx context.Context, caller *tracker.User) ([]*auth.APIToken, error) {
	return s.tokens.ListUserTokens(ctx, caller.ID)
}

// RevokeToken revokes one of the caller's tokens
func (s *Service) RevokeToken(ctx context.Context, caller *tracker.User, tokenID int64) error {
	if err := s.tokens.RevokeToken(ctx, caller.ID, tokenID); err != nil {
		return err
	}
	s.record(ctx, caller, audit.EventTypeAuthTokenRevoke, audit.ResourceTypeToken, tokenID, "token revoked")
	return nil
}
