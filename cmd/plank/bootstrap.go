package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// bootstrap makes sure an administrator with email exists and prints a fresh
// API token for it. Running it twice issues a second token.
func bootstrap(ctx context.Context, store storage.Store, tokens *auth.TokenManager, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("bootstrap admin email %q is not valid", email)
	}

	user, err := store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		user = &tracker.User{
			Email:     email,
			FirstName: strings.SplitN(email, "@", 2)[0],
			LastName:  "Admin",
			IsAdmin:   true,
		}
		if err := store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up admin: %w", err)
	case !user.IsAdmin:
		return fmt.Errorf("user %s exists and is not an administrator", email)
	}

	_, plaintext, err := tokens.CreateToken(ctx, user.ID, "bootstrap", nil)
	if err != nil {
		return err
	}
	fmt.Printf("Admin %s (id %d) token: %s\n", user.Email, user.ID, plaintext)
	return nil
}
