package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/storage/memory"
	"github.com/platinummonkey/plank/pkg/tracker"
)

type world struct {
	store *memory.Store
	users map[string]*tracker.User
	teams map[string]*tracker.Team
	projs map[string]*tracker.Project
}

// newWorld builds alpha{ada,bob} sponsoring p1,p2 and beta{carol} sponsoring p2,p3
func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{
		store: memory.New(),
		users: map[string]*tracker.User{},
		teams: map[string]*tracker.Team{},
		projs: map[string]*tracker.Project{},
	}
	for _, name := range []string{"ada", "bob", "carol", "dave"} {
		u := &tracker.User{Email: name + "@example.com", FirstName: name}
		require.NoError(t, w.store.CreateUser(ctx, u))
		w.users[name] = u
	}
	for _, name := range []string{"alpha", "beta"} {
		team := &tracker.Team{Name: name}
		require.NoError(t, w.store.CreateTeam(ctx, team))
		w.teams[name] = team
	}
	require.NoError(t, w.store.AddMember(ctx, w.teams["alpha"].ID, w.users["ada"].ID))
	require.NoError(t, w.store.AddMember(ctx, w.teams["alpha"].ID, w.users["bob"].ID))
	require.NoError(t, w.store.AddMember(ctx, w.teams["beta"].ID, w.users["carol"].ID))

	for name, team := range map[string]string{"p1": "alpha", "p2": "alpha", "p3": "beta"} {
		p := &tracker.Project{Name: name}
		require.NoError(t, w.store.CreateProject(ctx, p, w.teams[team].ID))
		w.projs[name] = p
	}
	require.NoError(t, w.store.AddSponsor(ctx, w.teams["beta"].ID, w.projs["p2"].ID))
	return w
}

func TestGraph_ProjectsVisibleTo(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	g := NewGraph(w.store)

	tests := []struct {
		user string
		want []string
	}{
		{"ada", []string{"p1", "p2"}},
		{"carol", []string{"p2", "p3"}},
		{"dave", nil},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := g.ProjectsVisibleTo(ctx, w.users[tt.user].ID)
			require.NoError(t, err)
			want := []int64{}
			for _, p := range tt.want {
				want = append(want, w.projs[p].ID)
			}
			assert.ElementsMatch(t, want, got)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		got, err := g.ProjectsVisibleTo(ctx, 99999)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestGraph_LookupsAgreeWithVisibleSet(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	g := NewGraph(w.store)

	for uname, u := range w.users {
		visible, err := g.ProjectsVisibleTo(ctx, u.ID)
		require.NoError(t, err)
		for pname, p := range w.projs {
			ok, err := g.HasProjectAccess(ctx, u.ID, p.ID)
			require.NoError(t, err)
			assert.Equal(t, contains(visible, p.ID), ok, "%s/%s", uname, pname)
		}
	}
}

func TestGraph_IsTeamMember(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	g := NewGraph(w.store)

	ok, err := g.IsTeamMember(ctx, w.teams["alpha"].ID, w.users["bob"].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// sponsoring a shared project does not make carol an alpha member
	ok, err = g.IsTeamMember(ctx, w.teams["alpha"].ID, w.users["carol"].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
