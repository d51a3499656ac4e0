package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE team_members (
			team_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (team_id, user_id)
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE project_teams (
			project_id INTEGER NOT NULL,
			team_id INTEGER NOT NULL,
			PRIMARY KEY (project_id, team_id)
		);

		CREATE TABLE boards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE work_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			parent_id INTEGER,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			story_points INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			assignee_id INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE bug_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			reporter_id INTEGER NOT NULL,
			work_item_id INTEGER UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			parent_kind TEXT NOT NULL,
			parent_id INTEGER NOT NULL,
			commenter_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			revoked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type seed struct {
	store   *Store
	user    *tracker.User
	team    *tracker.Team
	project *tracker.Project
	board   *tracker.Board
}

func newSeed(t *testing.T) *seed {
	t.Helper()
	ctx := context.Background()
	s := New(setupTestDB(t))

	user := &tracker.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, s.CreateUser(ctx, user))
	team := &tracker.Team{Name: "core"}
	require.NoError(t, s.CreateTeam(ctx, team))
	require.NoError(t, s.AddMember(ctx, team.ID, user.ID))
	project := &tracker.Project{Name: "plank", Description: "tracker"}
	require.NoError(t, s.CreateProject(ctx, project, team.ID))
	board := &tracker.Board{Name: "sprint", ProjectID: project.ID}
	require.NoError(t, s.CreateBoard(ctx, board))

	return &seed{store: s, user: user, team: team, project: project, board: board}
}

func (sd *seed) workItem(t *testing.T, title string, parent *int64) *tracker.WorkItem {
	t.Helper()
	w := &tracker.WorkItem{
		Title:       title,
		Status:      tracker.WorkItemNew,
		StoryPoints: 3,
		BoardID:     sd.board.ID,
		ProjectID:   sd.project.ID,
		ParentID:    parent,
		AssigneeID:  &sd.user.ID,
	}
	require.NoError(t, sd.store.CreateWorkItem(context.Background(), w))
	return w
}

func (sd *seed) bugItem(t *testing.T, title string, projectID int64) *tracker.BugItem {
	t.Helper()
	b := &tracker.BugItem{Title: title, Status: tracker.BugReported, ReporterID: sd.user.ID, ProjectID: projectID}
	require.NoError(t, sd.store.CreateBugItem(context.Background(), b))
	return b
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	u, err := sd.store.GetUser(ctx, sd.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, []int64{sd.team.ID}, u.TeamIDs)
	assert.False(t, u.IsAdmin)

	byEmail, err := sd.store.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, sd.user.ID, byEmail.ID)

	err = sd.store.CreateUser(ctx, &tracker.User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, tracker.ErrConflict)

	_, err = sd.store.GetUser(ctx, 999)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	u.FirstName = "Augusta"
	require.NoError(t, sd.store.UpdateUser(ctx, u))
	u, err = sd.store.GetUser(ctx, sd.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", u.FirstName)

	users, err := sd.store.ListProjectUsers(ctx, sd.project.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, sd.user.ID, users[0].ID)
}

func TestStore_Membership(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	ok, err := sd.store.HasProjectAccess(ctx, sd.user.ID, sd.project.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	err = sd.store.AddMember(ctx, sd.team.ID, sd.user.ID)
	assert.ErrorIs(t, err, tracker.ErrDuplicateMembership)

	err = sd.store.AddSponsor(ctx, sd.team.ID, sd.project.ID)
	assert.ErrorIs(t, err, tracker.ErrDuplicateMembership)

	err = sd.store.AddMember(ctx, sd.team.ID, 999)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	team, err := sd.store.GetTeam(ctx, sd.team.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sd.user.ID}, team.MemberIDs)
	assert.Equal(t, []int64{sd.project.ID}, team.ProjectIDs)

	ids, err := sd.store.ProjectsVisibleTo(ctx, sd.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sd.project.ID}, ids)

	require.NoError(t, sd.store.RemoveMember(ctx, sd.team.ID, sd.user.ID))
	require.NoError(t, sd.store.RemoveMember(ctx, sd.team.ID, sd.user.ID))

	ok, err = sd.store.HasProjectAccess(ctx, sd.user.ID, sd.project.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	member, err := sd.store.IsMember(ctx, sd.team.ID, sd.user.ID)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestStore_Teams(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	assert.ErrorIs(t, sd.store.CreateTeam(ctx, &tracker.Team{Name: "core"}), tracker.ErrConflict)

	other := &tracker.Team{Name: "infra"}
	require.NoError(t, sd.store.CreateTeam(ctx, other))

	other.Name = "core"
	assert.ErrorIs(t, sd.store.UpdateTeam(ctx, other), tracker.ErrConflict)

	teams, err := sd.store.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 2)

	mine, err := sd.store.ListTeamsForUser(ctx, sd.user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, sd.team.ID, mine[0].ID)

	require.NoError(t, sd.store.DeleteTeam(ctx, sd.team.ID))
	ok, err := sd.store.HasProjectAccess(ctx, sd.user.ID, sd.project.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, sd.store.DeleteTeam(ctx, sd.team.ID), tracker.ErrNotFound)
}

func TestStore_Projects(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	p, err := sd.store.GetProject(ctx, sd.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "tracker", p.Description)
	assert.Equal(t, []int64{sd.team.ID}, p.TeamIDs)

	err = sd.store.CreateProject(ctx, &tracker.Project{Name: "plank"}, sd.team.ID)
	assert.ErrorIs(t, err, tracker.ErrConflict)

	err = sd.store.CreateProject(ctx, &tracker.Project{Name: "fresh"}, 999)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	projects, err := sd.store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestStore_WorkItems(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	root := sd.workItem(t, "root", nil)
	child := sd.workItem(t, "child", &root.ID)

	got, err := sd.store.GetWorkItem(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, root.ID, *got.ParentID)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, sd.user.ID, *got.AssigneeID)
	assert.Equal(t, 3, got.StoryPoints)
	assert.Equal(t, tracker.WorkItemNew, got.Status)
	assert.Nil(t, got.BugItemID)

	children, err := sd.store.ListChildren(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	require.NoError(t, sd.store.SetParent(ctx, child.ID, nil))
	got, err = sd.store.GetWorkItem(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	got.Status = tracker.WorkItemInProgress
	got.AssigneeID = nil
	require.NoError(t, sd.store.ApplyWorkItemChange(ctx, child.ID, storage.WorkItemChange{Fields: got}))
	got, err = sd.store.GetWorkItem(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.WorkItemInProgress, got.Status)
	assert.Nil(t, got.AssigneeID)

	items, err := sd.store.ListWorkItems(ctx, sd.board.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.ErrorIs(t, sd.store.SetParent(ctx, child.ID, int64Ptr(999)), tracker.ErrNotFound)
}

func TestStore_DeleteWorkItemTree(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	root := sd.workItem(t, "root", nil)
	child := sd.workItem(t, "child", &root.ID)
	leaf := sd.workItem(t, "leaf", &child.ID)
	keep := sd.workItem(t, "keep", nil)

	bug := sd.bugItem(t, "bug", sd.project.ID)
	require.NoError(t, sd.store.LinkBugItem(ctx, leaf.ID, bug.ID))

	comment := &tracker.Comment{Text: "x", CommenterID: sd.user.ID, ParentKind: tracker.ParentWorkItem, ParentID: leaf.ID, ProjectID: sd.project.ID}
	require.NoError(t, sd.store.CreateComment(ctx, comment))

	require.NoError(t, sd.store.DeleteWorkItemTree(ctx, root.ID))

	for _, id := range []int64{root.ID, child.ID, leaf.ID} {
		_, err := sd.store.GetWorkItem(ctx, id)
		assert.ErrorIs(t, err, tracker.ErrNotFound)
	}
	_, err := sd.store.GetWorkItem(ctx, keep.ID)
	assert.NoError(t, err)

	b, err := sd.store.GetBugItem(ctx, bug.ID)
	require.NoError(t, err)
	assert.Nil(t, b.WorkItemID)

	_, err = sd.store.GetComment(ctx, comment.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestStore_LinkBugItem(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	w1 := sd.workItem(t, "w1", nil)
	w2 := sd.workItem(t, "w2", nil)
	b1 := sd.bugItem(t, "b1", sd.project.ID)
	b2 := sd.bugItem(t, "b2", sd.project.ID)

	require.NoError(t, sd.store.LinkBugItem(ctx, w1.ID, b1.ID))
	require.NoError(t, sd.store.LinkBugItem(ctx, w1.ID, b2.ID))

	got, err := sd.store.GetWorkItem(ctx, w1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BugItemID)
	assert.Equal(t, b2.ID, *got.BugItemID)

	old, err := sd.store.GetBugItem(ctx, b1.ID)
	require.NoError(t, err)
	assert.Nil(t, old.WorkItemID)

	// moving b2 to w2 leaves w1 unlinked
	require.NoError(t, sd.store.LinkBugItem(ctx, w2.ID, b2.ID))
	got, err = sd.store.GetWorkItem(ctx, w1.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BugItemID)

	require.NoError(t, sd.store.UnlinkWorkItem(ctx, w2.ID))
	moved, err := sd.store.GetBugItem(ctx, b2.ID)
	require.NoError(t, err)
	assert.Nil(t, moved.WorkItemID)

	assert.ErrorIs(t, sd.store.LinkBugItem(ctx, w1.ID, 999), tracker.ErrNotFound)
}

func TestStore_DeleteProject(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	other := &tracker.Project{Name: "other"}
	require.NoError(t, sd.store.CreateProject(ctx, other, sd.team.ID))

	w := sd.workItem(t, "w", nil)
	own := sd.bugItem(t, "own", sd.project.ID)
	foreign := sd.bugItem(t, "foreign", other.ID)
	require.NoError(t, sd.store.LinkBugItem(ctx, w.ID, foreign.ID))

	require.NoError(t, sd.store.DeleteProject(ctx, sd.project.ID))

	_, err := sd.store.GetProject(ctx, sd.project.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
	_, err = sd.store.GetBoard(ctx, sd.board.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
	_, err = sd.store.GetBugItem(ctx, own.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	survivor, err := sd.store.GetBugItem(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Nil(t, survivor.WorkItemID)

	team, err := sd.store.GetTeam(ctx, sd.team.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID}, team.ProjectIDs)
}

func TestStore_DeleteProjectKeepsLinkedBugItem(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	w1 := sd.workItem(t, "W1", nil)
	linked := sd.bugItem(t, "BG1", sd.project.ID)
	loose := sd.bugItem(t, "BG2", sd.project.ID)
	require.NoError(t, sd.store.LinkBugItem(ctx, w1.ID, linked.ID))

	onBug := &tracker.Comment{Text: "repro", CommenterID: sd.user.ID, ParentKind: tracker.ParentBugItem, ParentID: linked.ID, ProjectID: sd.project.ID}
	onLoose := &tracker.Comment{Text: "dup", CommenterID: sd.user.ID, ParentKind: tracker.ParentBugItem, ParentID: loose.ID, ProjectID: sd.project.ID}
	require.NoError(t, sd.store.CreateComment(ctx, onBug))
	require.NoError(t, sd.store.CreateComment(ctx, onLoose))

	require.NoError(t, sd.store.DeleteProject(ctx, sd.project.ID))

	survivor, err := sd.store.GetBugItem(ctx, linked.ID)
	require.NoError(t, err)
	assert.Nil(t, survivor.WorkItemID)
	_, err = sd.store.GetComment(ctx, onBug.ID)
	assert.NoError(t, err)

	_, err = sd.store.GetBugItem(ctx, loose.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
	_, err = sd.store.GetComment(ctx, onLoose.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
	_, err = sd.store.GetWorkItem(ctx, w1.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestStore_ApplyWorkItemChange(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	root := sd.workItem(t, "root", nil)
	child := sd.workItem(t, "child", &root.ID)
	item := sd.workItem(t, "item", nil)
	bug := sd.bugItem(t, "bug", sd.project.ID)

	fields := *item
	fields.Title = "renamed"
	err := sd.store.ApplyWorkItemChange(ctx, item.ID, storage.WorkItemChange{
		Fields:    &fields,
		Reparent:  true,
		ParentID:  &root.ID,
		Relink:    true,
		BugItemID: int64Ptr(999),
	})
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	got, err := sd.store.GetWorkItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, "item", got.Title)

	assert.ErrorIs(t, sd.store.SetParent(ctx, root.ID, &child.ID), tracker.ErrCyclicHierarchy)
	assert.ErrorIs(t, sd.store.SetParent(ctx, root.ID, &root.ID), tracker.ErrCyclicHierarchy)

	require.NoError(t, sd.store.ApplyWorkItemChange(ctx, item.ID, storage.WorkItemChange{
		Fields:    &fields,
		Reparent:  true,
		ParentID:  &child.ID,
		Relink:    true,
		BugItemID: &bug.ID,
	}))
	got, err = sd.store.GetWorkItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, child.ID, *got.ParentID)
	require.NotNil(t, got.BugItemID)
	assert.Equal(t, bug.ID, *got.BugItemID)
	assert.Equal(t, "renamed", got.Title)
}

func TestStore_Comments(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	bug := sd.bugItem(t, "bug", sd.project.ID)
	c := &tracker.Comment{Text: "first", CommenterID: sd.user.ID, ParentKind: tracker.ParentBugItem, ParentID: bug.ID, ProjectID: sd.project.ID}
	require.NoError(t, sd.store.CreateComment(ctx, c))

	c.Text = "edited"
	require.NoError(t, sd.store.UpdateComment(ctx, c))

	list, err := sd.store.ListComments(ctx, tracker.ParentBugItem, bug.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "edited", list[0].Text)

	require.NoError(t, sd.store.DeleteBugItem(ctx, bug.ID))
	_, err = sd.store.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	err = sd.store.CreateComment(ctx, &tracker.Comment{Text: "x", ParentKind: tracker.ParentWorkItem, ParentID: 999})
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestStore_Tokens(t *testing.T) {
	ctx := context.Background()
	sd := newSeed(t)

	past := time.Now().Add(-2 * time.Hour)
	future := time.Now().Add(2 * time.Hour)
	expired := &auth.APIToken{UserID: sd.user.ID, TokenHash: "h1", TokenPrefix: "plank_aa", Name: "old", ExpiresAt: &past}
	live := &auth.APIToken{UserID: sd.user.ID, TokenHash: "h2", TokenPrefix: "plank_bb", Name: "new", ExpiresAt: &future}
	require.NoError(t, sd.store.CreateToken(ctx, expired))
	require.NoError(t, sd.store.CreateToken(ctx, live))

	got, err := sd.store.GetTokenByHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Nil(t, got.RevokedAt)

	require.NoError(t, sd.store.TouchToken(ctx, live.ID, time.Now()))
	require.NoError(t, sd.store.RevokeToken(ctx, live.ID, time.Now()))
	got, err = sd.store.GetTokenByHash(ctx, "h2")
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)
	assert.NotNil(t, got.RevokedAt)

	n, err := sd.store.DeleteExpiredTokens(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tokens, err := sd.store.ListUserTokens(ctx, sd.user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, live.ID, tokens[0].ID)

	_, err = sd.store.GetTokenByHash(ctx, "missing")
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func int64Ptr(v int64) *int64 { return &v }
