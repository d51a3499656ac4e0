package service

import (
	"context"
	"fmt"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// CreateBoard creates a board inside projectID
func (s *Service) CreateBoard(ctx context.Context, caller *tracker.User, projectID int64, name string) (*tracker.Board, error) {
	name, err := requireText("board name", name)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}

	board := &tracker.Board{Name: name, ProjectID: project.ID}
	if err := s.store.CreateBoard(ctx, board); err != nil {
		return nil, err
	}
	return board, nil
}

// GetBoard returns a board the caller can see
func (s *Service) GetBoard(ctx context.Context, caller *tracker.User, id int64) (*tracker.Board, error) {
	board, err := s.store.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, board, audit.ResourceTypeBoard, board.ID); err != nil {
		return nil, err
	}
	return board, nil
}

// ListBoards lists the boards of a project
func (s *Service) ListBoards(ctx context.Context, caller *tracker.User, projectID int64) ([]*tracker.Board, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}
	return s.store.ListBoards(ctx, project.ID)
}

// UpdateBoard renames a board. A blank name leaves it unchanged.
func (s *Service) UpdateBoard(ctx context.Context, caller *tracker.User, id int64, name *string) (*tracker.Board, error) {
	board, err := s.GetBoard(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if v, ok := optionalText(name); ok {
		board.Name = v
		if err := s.store.UpdateBoard(ctx, board); err != nil {
			return nil, err
		}
	}
	return board, nil
}

// DeleteBoard removes a board and all of its work items
func (s *Service) DeleteBoard(ctx context.Context, caller *tracker.User, id int64) error {
	board, err := s.GetBoard(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, board.ID); err != nil {
		return err
	}
	s.record(ctx, caller, audit.EventTypeDataBoardDelete, audit.ResourceTypeBoard, board.ID,
		fmt.Sprintf("board %s deleted", board.Name))
	return nil
}
