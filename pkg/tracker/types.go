package tracker

import "time"

// Owned is implemented by every object that lives inside a project.
// The returned id is the denormalized owner written at creation time.
type Owned interface {
	OwnerProjectID() int64
}

// User represents a person that can belong to teams
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	TeamIDs   []int64   `json:"team_ids,omitempty"`
}

// Team groups users and sponsors projects
type Team struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	MemberIDs  []int64   `json:"member_ids"`
	ProjectIDs []int64   `json:"project_ids"`
}

// Project is the authorization boundary
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TeamIDs     []int64   `json:"team_ids"`
}

// Board holds work items within one project
type Board struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ProjectID int64     `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerProjectID implements Owned
func (b *Board) OwnerProjectID() int64 { return b.ProjectID }

// WorkItem is a node in a board's work tree
type WorkItem struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	StoryPoints int            `json:"story_points"`
	Status      WorkItemStatus `json:"status"`
	AssigneeID  *int64         `json:"assignee_id,omitempty"`
	BoardID     int64          `json:"board_id"`
	ProjectID   int64          `json:"project_id"`
	ParentID    *int64         `json:"parent_id,omitempty"`
	BugItemID   *int64         `json:"bug_item_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// OwnerProjectID implements Owned
func (w *WorkItem) OwnerProjectID() int64 { return w.ProjectID }

// BugItem is a defect record, optionally linked to one work item
type BugItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      BugStatus `json:"status"`
	ReporterID  int64     `json:"reporter_id"`
	ProjectID   int64     `json:"project_id"`
	WorkItemID  *int64    `json:"work_item_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerProjectID implements Owned
func (b *BugItem) OwnerProjectID() int64 { return b.ProjectID }

// ParentKind identifies what a comment is attached to
type ParentKind string

const (
	ParentWorkItem ParentKind = "work_item"
	ParentBugItem  ParentKind = "bug_item"
)

// Valid reports whether k is a known parent kind
func (k ParentKind) Valid() bool {
	return k == ParentWorkItem || k == ParentBugItem
}

// Comment is a discussion entry on a work item or bug item
type Comment struct {
	ID          int64      `json:"id"`
	Text        string     `json:"text"`
	CommenterID int64      `json:"commenter_id"`
	ParentKind  ParentKind `json:"parent_kind"`
	ParentID    int64      `json:"parent_id"`
	ProjectID   int64      `json:"project_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OwnerProjectID implements Owned
func (c *Comment) OwnerProjectID() int64 { return c.ProjectID }

// ProjectRef adapts a bare project id to Owned
type ProjectRef int64

// OwnerProjectID implements Owned
func (p ProjectRef) OwnerProjectID() int64 { return int64(p) }
