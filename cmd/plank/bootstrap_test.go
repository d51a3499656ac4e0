package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/storage/memory"
	"github.com/platinummonkey/plank/pkg/tracker"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tokens := auth.NewTokenManager(store, nil)

	require.NoError(t, bootstrap(ctx, store, tokens, "root@example.com"))

	user, err := store.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, "root", user.FirstName)

	require.NoError(t, bootstrap(ctx, store, tokens, "root@example.com"))
	list, err := tokens.ListUserTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBootstrap_Rejects(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tokens := auth.NewTokenManager(store, nil)

	assert.Error(t, bootstrap(ctx, store, tokens, "not-an-email"))

	require.NoError(t, store.CreateUser(ctx, &tracker.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}))
	assert.ErrorContains(t, bootstrap(ctx, store, tokens, "ada@example.com"), "not an administrator")
}
