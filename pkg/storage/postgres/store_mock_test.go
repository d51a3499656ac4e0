package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: teams.name")))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestStore_CreateTeamUniqueRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT 1 FROM teams WHERE name").
		WithArgs("core").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectQuery("INSERT INTO teams").
		WithArgs("core", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateTeam(context.Background(), &tracker.Team{Name: "core"})
	assert.ErrorIs(t, err, tracker.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetProjectDatabaseError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, description, created_at FROM projects").
		WithArgs(int64(7)).
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetProject(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, tracker.Kind(0), tracker.KindOf(err))
	assert.Contains(t, err.Error(), "failed to get project")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_HasProjectAccessError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT 1").
		WithArgs(int64(2), int64(1)).
		WillReturnError(errors.New("timeout"))

	ok, err := s.HasProjectAccess(context.Background(), 1, 2)
	assert.False(t, ok)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteWorkItemTreeRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM work_items WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec("WITH RECURSIVE subtree").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("WITH RECURSIVE subtree").
		WithArgs(int64(5)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.DeleteWorkItemTree(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete work item tree")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AddMemberDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM teams WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM users WHERE id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec("INSERT INTO team_members").
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.AddMember(context.Background(), 1, 2)
	assert.ErrorIs(t, err, tracker.ErrDuplicateMembership)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyWorkItemChangeRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	parent, bug := int64(2), int64(9)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT board_id FROM work_items WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"board_id"}).AddRow(7))
	mock.ExpectExec("UPDATE boards SET id = id").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT board_id FROM work_items WHERE id").
		WithArgs(parent).
		WillReturnRows(sqlmock.NewRows([]string{"board_id"}).AddRow(7))
	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WithArgs(parent, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectExec("UPDATE work_items SET parent_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT 1 FROM bug_items WHERE id").
		WithArgs(bug).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec("UPDATE bug_items SET work_item_id = NULL").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.ApplyWorkItemChange(context.Background(), 1, storage.WorkItemChange{
		Reparent:  true,
		ParentID:  &parent,
		Relink:    true,
		BugItemID: &bug,
	})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
