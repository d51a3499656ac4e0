package storage

import (
	"context"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// UserStore persists users
type UserStore interface {
	CreateUser(ctx context.Context, user *tracker.User) error
	GetUser(ctx context.Context, id int64) (*tracker.User, error)
	GetUserByEmail(ctx context.Context, email string) (*tracker.User, error)
	UpdateUser(ctx context.Context, user *tracker.User) error
	// ListProjectUsers returns every member of every team sponsoring the project
	ListProjectUsers(ctx context.Context, projectID int64) ([]*tracker.User, error)
}

// TeamStore persists teams. Member and project ids are filled from the membership relations.
type TeamStore interface {
	CreateTeam(ctx context.Context, team *tracker.Team) error
	GetTeam(ctx context.Context, id int64) (*tracker.Team, error)
	ListTeams(ctx context.Context) ([]*tracker.Team, error)
	ListTeamsForUser(ctx context.Context, userID int64) ([]*tracker.Team, error)
	UpdateTeam(ctx context.Context, team *tracker.Team) error
	// DeleteTeam removes the team together with its member and sponsor rows
	DeleteTeam(ctx context.Context, id int64) error
}

// MembershipStore holds the team/user and team/project relations.
// Each relation is a single row, so both navigation directions change together.
type MembershipStore interface {
	// AddMember fails with a DuplicateMembership error if the row exists
	AddMember(ctx context.Context, teamID, userID int64) error
	// RemoveMember is a no-op when the row does not exist
	RemoveMember(ctx context.Context, teamID, userID int64) error
	// AddSponsor fails with a DuplicateMembership error if the row exists
	AddSponsor(ctx context.Context, teamID, projectID int64) error
	// RemoveSponsor is a no-op when the row does not exist
	RemoveSponsor(ctx context.Context, teamID, projectID int64) error

	IsMember(ctx context.Context, teamID, userID int64) (bool, error)
	// ProjectsVisibleTo returns the ids of projects sponsored by any team of userID.
	// An unknown user yields an empty result, not an error.
	ProjectsVisibleTo(ctx context.Context, userID int64) ([]int64, error)
	HasProjectAccess(ctx context.Context, userID, projectID int64) (bool, error)
}

// ProjectStore persists projects
type ProjectStore interface {
	// CreateProject inserts the project and its first sponsor atomically
	CreateProject(ctx context.Context, project *tracker.Project, sponsorTeamID int64) error
	GetProject(ctx context.Context, id int64) (*tracker.Project, error)
	ListProjects(ctx context.Context) ([]*tracker.Project, error)
	UpdateProject(ctx context.Context, project *tracker.Project) error
	// DeleteProject removes the project, its boards, work items, unlinked bug
	// items and their comments. Bug items linked to one of its work items
	// survive with the link cleared.
	DeleteProject(ctx context.Context, id int64) error
}

// BoardStore persists boards
type BoardStore interface {
	CreateBoard(ctx context.Context, board *tracker.Board) error
	GetBoard(ctx context.Context, id int64) (*tracker.Board, error)
	ListBoards(ctx context.Context, projectID int64) ([]*tracker.Board, error)
	UpdateBoard(ctx context.Context, board *tracker.Board) error
	// DeleteBoard removes the board and all of its work items
	DeleteBoard(ctx context.Context, id int64) error
}

// WorkItemStore persists work items as an arena: parents are referenced by id
type WorkItemStore interface {
	CreateWorkItem(ctx context.Context, item *tracker.WorkItem) error
	GetWorkItem(ctx context.Context, id int64) (*tracker.WorkItem, error)
	ListWorkItems(ctx context.Context, boardID int64) ([]*tracker.WorkItem, error)
	ListChildren(ctx context.Context, parentID int64) ([]*tracker.WorkItem, error)
	// SetParent moves the item under parentID, or to the root when parentID is nil.
	// Board equality and acyclicity are checked in the same critical section as the write.
	SetParent(ctx context.Context, id int64, parentID *int64) error
	// ApplyWorkItemChange validates and writes every part of change, or nothing
	ApplyWorkItemChange(ctx context.Context, id int64, change WorkItemChange) error
	// DeleteWorkItemTree removes the item, its descendants and their comments,
	// and clears the link on any bug item that pointed at them
	DeleteWorkItemTree(ctx context.Context, id int64) error
}

// WorkItemChange groups the writes of one work item update
type WorkItemChange struct {
	// Fields carries title, description, story points, status and assignee; nil leaves them
	Fields *tracker.WorkItem

	Reparent bool
	ParentID *int64 // nil moves the item to the root

	Relink    bool
	BugItemID *int64 // nil clears the link
}

// BugItemStore persists bug items and the one-to-one work item link
type BugItemStore interface {
	CreateBugItem(ctx context.Context, bug *tracker.BugItem) error
	GetBugItem(ctx context.Context, id int64) (*tracker.BugItem, error)
	ListBugItems(ctx context.Context, projectID int64) ([]*tracker.BugItem, error)
	// UpdateBugItem writes title, description and status
	UpdateBugItem(ctx context.Context, bug *tracker.BugItem) error
	DeleteBugItem(ctx context.Context, id int64) error
	// LinkBugItem clears any existing link on either side and sets the new one in one step
	LinkBugItem(ctx context.Context, workItemID, bugItemID int64) error
	UnlinkWorkItem(ctx context.Context, workItemID int64) error
}

// CommentStore persists comments on work items and bug items
type CommentStore interface {
	CreateComment(ctx context.Context, comment *tracker.Comment) error
	GetComment(ctx context.Context, id int64) (*tracker.Comment, error)
	ListComments(ctx context.Context, kind tracker.ParentKind, parentID int64) ([]*tracker.Comment, error)
	UpdateComment(ctx context.Context, comment *tracker.Comment) error
	DeleteComment(ctx context.Context, id int64) error
}

// Store is the full persistence collaborator
type Store interface {
	UserStore
	TeamStore
	MembershipStore
	ProjectStore
	BoardStore
	WorkItemStore
	BugItemStore
	CommentStore
	auth.TokenStore

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}
