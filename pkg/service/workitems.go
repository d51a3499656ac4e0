package service

import (
	"context"
	"fmt"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// NewWorkItem describes a work item to create
type NewWorkItem struct {
	Title       string
	Description string
	StoryPoints int
	Status      tracker.WorkItemStatus
	AssigneeID  *int64
	ParentID    *int64
}

// WorkItemPatch carries optional changes. Nil fields are left alone; the
// boolean flags clear the matching reference.
type WorkItemPatch struct {
	Title       *string
	Description *string
	StoryPoints *int
	Status      *tracker.WorkItemStatus
	AssigneeID  *int64
	Unassign    bool
	ParentID    *int64
	MoveToRoot  bool
	BugItemID   *int64
	UnlinkBug   bool
}

func validateStoryPoints(points int) error {
	if points < 0 {
		return tracker.Validation("story points cannot be negative")
	}
	return nil
}

// CreateWorkItem creates a work item on boardID. The owner project is copied from the board.
func (s *Service) CreateWorkItem(ctx context.Context, caller *tracker.User, boardID int64, in NewWorkItem) (*tracker.WorkItem, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = tracker.WorkItemNew
	}
	if !in.Status.Valid() {
		return nil, tracker.Validation("unknown work item status %q", in.Status)
	}
	if err := validateStoryPoints(in.StoryPoints); err != nil {
		return nil, err
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, board, audit.ResourceTypeBoard, board.ID); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.store.GetWorkItem(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.BoardID != board.ID {
			return nil, &tracker.Error{
				Kind:    tracker.KindCrossBoardLinkage,
				Message: fmt.Sprintf("parent work item %d is not on board %d", parent.ID, board.ID),
			}
		}
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, caller, board, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	item := &tracker.WorkItem{
		Title:       title,
		Description: in.Description,
		StoryPoints: in.StoryPoints,
		Status:      in.Status,
		AssigneeID:  in.AssigneeID,
		BoardID:     board.ID,
		ProjectID:   board.ProjectID,
		ParentID:    in.ParentID,
	}
	if err := s.store.CreateWorkItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// checkAssignee loads the candidate and verifies they can see the board's project
func (s *Service) checkAssignee(ctx context.Context, caller *tracker.User, board *tracker.Board, userID int64) error {
	assignee, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.voter.CanAccessAsAssignee(ctx, board, assignee.ID) {
		return s.deny(ctx, caller, audit.ResourceTypeBoard, board.ID,
			tracker.Forbidden("user %d has no access to board %d", assignee.ID, board.ID))
	}
	return nil
}

// GetWorkItem returns a work item the caller can see
func (s *Service) GetWorkItem(ctx context.Context, caller *tracker.User, id int64) (*tracker.WorkItem, error) {
	item, err := s.store.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, item, audit.ResourceTypeWorkItem, item.ID); err != nil {
		return nil, err
	}
	return item, nil
}

// ListWorkItems lists every work item on a board
func (s *Service) ListWorkItems(ctx context.Context, caller *tracker.User, boardID int64) ([]*tracker.WorkItem, error) {
	board, err := s.GetBoard(ctx, caller, boardID)
	if err != nil {
		return nil, err
	}
	return s.store.ListWorkItems(ctx, board.ID)
}

// ListChildren lists the direct children of a work item
func (s *Service) ListChildren(ctx context.Context, caller *tracker.User, id int64) ([]*tracker.WorkItem, error) {
	item, err := s.GetWorkItem(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, item.ID)
}

// UpdateWorkItem applies patch as one store operation, so a rejected parent or
// bug link leaves the item as it was.
func (s *Service) UpdateWorkItem(ctx context.Context, caller *tracker.User, id int64, patch WorkItemPatch) (*tracker.WorkItem, error) {
	if patch.Title != nil {
		if _, err := requireText("title", *patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, tracker.Validation("unknown work item status %q", *patch.Status)
	}
	if patch.StoryPoints != nil {
		if err := validateStoryPoints(*patch.StoryPoints); err != nil {
			return nil, err
		}
	}
	if patch.ParentID != nil && patch.MoveToRoot {
		return nil, tracker.Validation("parent id and move to root are mutually exclusive")
	}
	if patch.BugItemID != nil && patch.UnlinkBug {
		return nil, tracker.Validation("bug item id and unlink are mutually exclusive")
	}
	if patch.AssigneeID != nil && patch.Unassign {
		return nil, tracker.Validation("assignee id and unassign are mutually exclusive")
	}

	item, err := s.GetWorkItem(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if patch.AssigneeID != nil {
		board, err := s.store.GetBoard(ctx, item.BoardID)
		if err != nil {
			return nil, err
		}
		if err := s.checkAssignee(ctx, caller, board, *patch.AssigneeID); err != nil {
			return nil, err
		}
	}
	if patch.BugItemID != nil {
		bug, err := s.store.GetBugItem(ctx, *patch.BugItemID)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, caller, bug, audit.ResourceTypeBugItem, bug.ID); err != nil {
			return nil, err
		}
	}

	change := storage.WorkItemChange{Fields: item}
	switch {
	case patch.ParentID != nil:
		change.Reparent, change.ParentID = true, patch.ParentID
	case patch.MoveToRoot:
		change.Reparent = true
	}
	switch {
	case patch.BugItemID != nil:
		change.Relink, change.BugItemID = true, patch.BugItemID
	case patch.UnlinkBug:
		change.Relink = true
	}

	if v, ok := optionalText(patch.Title); ok {
		item.Title = v
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.StoryPoints != nil {
		item.StoryPoints = *patch.StoryPoints
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.AssigneeID != nil {
		item.AssigneeID = patch.AssigneeID
	} else if patch.Unassign {
		item.AssigneeID = nil
	}

	if err := s.hierarchy.Apply(ctx, item.ID, change); err != nil {
		return nil, err
	}
	switch {
	case patch.ParentID != nil:
		s.record(ctx, caller, audit.EventTypeDataWorkItemMove, audit.ResourceTypeWorkItem, item.ID,
			fmt.Sprintf("work item moved under %d", *patch.ParentID))
	case patch.MoveToRoot:
		s.record(ctx, caller, audit.EventTypeDataWorkItemMove, audit.ResourceTypeWorkItem, item.ID,
			"work item moved to root")
	}
	return s.store.GetWorkItem(ctx, item.ID)
}

// DeleteWorkItem removes a work item with its subtree and comments
func (s *Service) DeleteWorkItem(ctx context.Context, caller *tracker.User, id int64) error {
	item, err := s.GetWorkItem(ctx, caller, id)
	if err != nil {
		return err
	}
	return s.hierarchy.DeleteWorkItem(ctx, item.ID)
}
