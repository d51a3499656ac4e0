package service

import (
	"context"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

func validateParentKind(kind tracker.ParentKind) error {
	if !kind.Valid() {
		return tracker.Validation("unknown comment parent kind %q", kind)
	}
	return nil
}

// loadCommentParent returns the work item or bug item a comment hangs off
func (s *Service) loadCommentParent(ctx context.Context, kind tracker.ParentKind, id int64) (tracker.Owned, audit.ResourceType, error) {
	if kind == tracker.ParentBugItem {
		bug, err := s.store.GetBugItem(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return bug, audit.ResourceTypeBugItem, nil
	}
	item, err := s.store.GetWorkItem(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return item, audit.ResourceTypeWorkItem, nil
}

// CreateComment adds a comment. The owner project is copied from the parent.
func (s *Service) CreateComment(ctx context.Context, caller *tracker.User, kind tracker.ParentKind, parentID int64, text string) (*tracker.Comment, error) {
	if err := validateParentKind(kind); err != nil {
		return nil, err
	}
	text, err := requireText("comment", text)
	if err != nil {
		return nil, err
	}

	parent, resourceType, err := s.loadCommentParent(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, parent, resourceType, parentID); err != nil {
		return nil, err
	}

	comment := &tracker.Comment{
		Text:        text,
		CommenterID: caller.ID,
		ParentKind:  kind,
		ParentID:    parentID,
		ProjectID:   parent.OwnerProjectID(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	s.logger.Infof("Comment created with id %d", comment.ID)
	return comment, nil
}

// ListComments lists the comments of a work item or bug item
func (s *Service) ListComments(ctx context.Context, caller *tracker.User, kind tracker.ParentKind, parentID int64) ([]*tracker.Comment, error) {
	if err := validateParentKind(kind); err != nil {
		return nil, err
	}
	parent, resourceType, err := s.loadCommentParent(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, parent, resourceType, parentID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, kind, parentID)
}

// UpdateComment replaces the comment text
func (s *Service) UpdateComment(ctx context.Context, caller *tracker.User, id int64, text string) (*tracker.Comment, error) {
	text, err := requireText("comment", text)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, comment, audit.ResourceTypeComment, comment.ID); err != nil {
		return nil, err
	}

	comment.Text = text
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment
func (s *Service) DeleteComment(ctx context.Context, caller *tracker.User, id int64) error {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, caller, comment, audit.ResourceTypeComment, comment.ID); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, comment.ID)
}
