package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// graphVoter answers from the graph the same way the access engine does
type graphVoter struct {
	graph *Graph
}

func (v graphVoter) CanAccessProject(ctx context.Context, callerID, projectID int64) bool {
	ok, err := v.graph.HasProjectAccess(ctx, callerID, projectID)
	return err == nil && ok
}

func (v graphVoter) CanAccessTeam(ctx context.Context, callerID, teamID int64) bool {
	ok, err := v.graph.IsTeamMember(ctx, teamID, callerID)
	return err == nil && ok
}

type recordingAudit struct {
	events []*audit.AuditEvent
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func newMutator(w *world) (*Mutator, *Graph, *recordingAudit) {
	g := NewGraph(w.store)
	rec := &recordingAudit{}
	return NewMutator(w.store, graphVoter{graph: g}, rec, nil), g, rec
}

func TestMutator_MemberLifecycle(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	m, g, rec := newMutator(w)
	ada, dave := w.users["ada"], w.users["dave"]
	alpha := w.teams["alpha"]

	require.NoError(t, m.AddMember(ctx, ada.ID, alpha.ID, dave.ID))

	// both navigation directions reflect the single write
	team, err := w.store.GetTeam(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Contains(t, team.MemberIDs, dave.ID)
	user, err := w.store.GetUser(ctx, dave.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{alpha.ID}, user.TeamIDs)

	visible, err := g.ProjectsVisibleTo(ctx, dave.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{w.projs["p1"].ID, w.projs["p2"].ID}, visible)

	err = m.AddMember(ctx, ada.ID, alpha.ID, dave.ID)
	assert.ErrorIs(t, err, tracker.ErrDuplicateMembership)
	assert.True(t, tracker.IsStructural(err))

	require.NoError(t, m.RemoveMember(ctx, ada.ID, alpha.ID, dave.ID))
	require.NoError(t, m.RemoveMember(ctx, ada.ID, alpha.ID, dave.ID))

	user, err = w.store.GetUser(ctx, dave.ID)
	require.NoError(t, err)
	assert.Empty(t, user.TeamIDs)

	require.Len(t, rec.events, 3)
	assert.Equal(t, audit.EventTypeMemberAdd, rec.events[0].EventType)
	assert.Equal(t, audit.EventTypeMemberRemove, rec.events[2].EventType)
}

func TestMutator_DeniedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	m, _, rec := newMutator(w)
	carol, dave := w.users["carol"], w.users["dave"]
	alpha := w.teams["alpha"]

	err := m.AddMember(ctx, carol.ID, alpha.ID, dave.ID)
	assert.ErrorIs(t, err, tracker.ErrForbidden)

	ok, err := w.store.IsMember(ctx, alpha.ID, dave.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	err = m.RemoveMember(ctx, carol.ID, alpha.ID, w.users["bob"].ID)
	assert.ErrorIs(t, err, tracker.ErrForbidden)
	ok, err = w.store.IsMember(ctx, alpha.ID, w.users["bob"].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, rec.events, 2)
	assert.Equal(t, audit.EventStatusDenied, rec.events[0].Status)
}

func TestMutator_Sponsorship(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	m, g, _ := newMutator(w)
	ada, carol := w.users["ada"], w.users["carol"]
	alpha, beta := w.teams["alpha"], w.teams["beta"]
	p1, p3 := w.projs["p1"], w.projs["p3"]

	t.Run("needs team standing", func(t *testing.T) {
		// ada sees p1 but is not on beta
		err := m.SponsorProject(ctx, ada.ID, p1.ID, beta.ID)
		assert.ErrorIs(t, err, tracker.ErrForbidden)
	})

	t.Run("needs project standing", func(t *testing.T) {
		// ada is on alpha but cannot see p3
		err := m.SponsorProject(ctx, ada.ID, p3.ID, alpha.ID)
		assert.ErrorIs(t, err, tracker.ErrForbidden)
	})

	t.Run("sponsor and unsponsor", func(t *testing.T) {
		require.NoError(t, w.store.AddMember(ctx, beta.ID, ada.ID))
		require.NoError(t, m.SponsorProject(ctx, ada.ID, p1.ID, beta.ID))

		ok, err := g.HasProjectAccess(ctx, carol.ID, p1.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		project, err := w.store.GetProject(ctx, p1.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{alpha.ID, beta.ID}, project.TeamIDs)

		err = m.SponsorProject(ctx, ada.ID, p1.ID, beta.ID)
		assert.ErrorIs(t, err, tracker.ErrDuplicateMembership)

		require.NoError(t, m.UnsponsorProject(ctx, ada.ID, p1.ID, beta.ID))
		ok, err = g.HasProjectAccess(ctx, carol.ID, p1.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
