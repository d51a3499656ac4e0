package service

import (
	"context"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// BugItemPatch carries optional bug item changes
type BugItemPatch struct {
	Title       *string
	Description *string
	Status      *tracker.BugStatus
}

// CreateBugItem files a bug in projectID with the caller as reporter
func (s *Service) CreateBugItem(ctx context.Context, caller *tracker.User, projectID int64, title, description string, status tracker.BugStatus) (*tracker.BugItem, error) {
	title, err := requireText("title", title)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = tracker.BugReported
	}
	if !status.Valid() {
		return nil, tracker.Validation("unknown bug status %q", status)
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}

	bug := &tracker.BugItem{
		Title:       title,
		Description: description,
		Status:      status,
		ReporterID:  caller.ID,
		ProjectID:   project.ID,
	}
	if err := s.store.CreateBugItem(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}

// GetBugItem returns a bug item the caller can see
func (s *Service) GetBugItem(ctx context.Context, caller *tracker.User, id int64) (*tracker.BugItem, error) {
	bug, err := s.store.GetBugItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, bug, audit.ResourceTypeBugItem, bug.ID); err != nil {
		return nil, err
	}
	return bug, nil
}

// ListBugItems lists the bug items of a project
func (s *Service) ListBugItems(ctx context.Context, caller *tracker.User, projectID int64) ([]*tracker.BugItem, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}
	return s.store.ListBugItems(ctx, project.ID)
}

// UpdateBugItem applies patch. A blank title keeps the current one.
func (s *Service) UpdateBugItem(ctx context.Context, caller *tracker.User, id int64, patch BugItemPatch) (*tracker.BugItem, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, tracker.Validation("unknown bug status %q", *patch.Status)
	}
	bug, err := s.GetBugItem(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if v, ok := optionalText(patch.Title); ok {
		bug.Title = v
	}
	if patch.Description != nil {
		bug.Description = *patch.Description
	}
	if patch.Status != nil {
		bug.Status = *patch.Status
	}
	if err := s.store.UpdateBugItem(ctx, bug); err != nil {
		return nil, err
	}
	return bug, nil
}

// DeleteBugItem removes a bug item and its comments and clears its work item link
func (s *Service) DeleteBugItem(ctx context.Context, caller *tracker.User, id int64) error {
	bug, err := s.GetBugItem(ctx, caller, id)
	if err != nil {
		return err
	}
	return s.store.DeleteBugItem(ctx, bug.ID)
}
