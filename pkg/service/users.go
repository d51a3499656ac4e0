package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// NewUser describes an account created by an administrator
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
}

// RegisterUser creates a user. Only administrators may register accounts.
func (s *Service) RegisterUser(ctx context.Context, caller *tracker.User, in NewUser) (*tracker.User, error) {
	email, err := requireText("email", in.Email)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, tracker.Validation("email %q is not valid", email)
	}
	first, err := requireText("first name", in.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := requireText("last name", in.LastName)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(caller); err != nil {
		return nil, s.deny(ctx, caller, audit.ResourceTypeUser, 0, err)
	}

	user := &tracker.User{Email: email, FirstName: first, LastName: last, IsAdmin: in.IsAdmin}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.record(ctx, caller, audit.EventTypeAdminUserCreate, audit.ResourceTypeUser, user.ID,
		fmt.Sprintf("user %s registered", user.Email))
	s.logger.Infof("User created with id %d", user.ID)
	return user, nil
}

// GetUser returns the caller's own record
func (s *Service) GetUser(ctx context.Context, caller *tracker.User, id int64) (*tracker.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSelf(caller, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser changes the caller's names. Blank values keep the current name.
func (s *Service) UpdateUser(ctx context.Context, caller *tracker.User, id int64, firstName, lastName *string) (*tracker.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSelf(caller, user.ID); err != nil {
		return nil, err
	}

	if v, ok := optionalText(firstName); ok {
		user.FirstName = v
	}
	if v, ok := optionalText(lastName); ok {
		user.LastName = v
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListProjectUsers returns every user on a team sponsoring the project
func (s *Service) ListProjectUsers(ctx context.Context, caller *tracker.User, projectID int64) ([]*tracker.User, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}
	return s.store.ListProjectUsers(ctx, project.ID)
}
