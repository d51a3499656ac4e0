package service

import (
	"context"
	"fmt"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// ProjectPatch carries optional project changes. Nil fields are left alone.
type ProjectPatch struct {
	Name        *string
	Description *string
}

// CreateProject creates a project sponsored by teamID. The caller must be on that team.
func (s *Service) CreateProject(ctx context.Context, caller *tracker.User, teamID int64, name, description string) (*tracker.Project, error) {
	name, err := requireText("project name", name)
	if err != nil {
		return nil, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTeam(ctx, caller, team.ID); err != nil {
		return nil, err
	}

	project := &tracker.Project{Name: name, Description: description}
	if err := s.store.CreateProject(ctx, project, team.ID); err != nil {
		return nil, err
	}
	s.record(ctx, caller, audit.EventTypeDataProjectCreate, audit.ResourceTypeProject, project.ID,
		fmt.Sprintf("project %s created for team %d", project.Name, team.ID))
	return project, nil
}

// GetProject returns a project visible to the caller
func (s *Service) GetProject(ctx context.Context, caller *tracker.User, id int64) (*tracker.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, tracker.ProjectRef(project.ID), audit.ResourceTypeProject, project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProject applies patch. A blank name leaves the name unchanged.
func (s *Service) UpdateProject(ctx context.Context, caller *tracker.User, id int64, patch ProjectPatch) (*tracker.Project, error) {
	project, err := s.GetProject(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if v, ok := optionalText(patch.Name); ok {
		project.Name = v
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjectsForUser returns the projects visible to userID, who must be the caller
func (s *Service) ListProjectsForUser(ctx context.Context, caller *tracker.User, userID int64) ([]*tracker.Project, error) {
	if err := requireSelf(caller, userID); err != nil {
		return nil, err
	}
	ids, err := s.graph.ProjectsVisibleTo(ctx, userID)
	if err != nil {
		return nil, err
	}

	projects := make([]*tracker.Project, 0, len(ids))
	for _, id := range ids {
		project, err := s.store.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// ListProjects returns every project. Administrators only.
func (s *Service) ListProjects(ctx context.Context, caller *tracker.User) ([]*tracker.Project, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx)
}

// DeleteProject removes a project with everything it contains. Administrators only.
func (s *Service) DeleteProject(ctx context.Context, caller *tracker.User, id int64) error {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := requireAdmin(caller); err != nil {
		return s.deny(ctx, caller, audit.ResourceTypeProject, project.ID, err)
	}
	if err := s.store.DeleteProject(ctx, project.ID); err != nil {
		return err
	}
	s.record(ctx, caller, audit.EventTypeDataProjectDelete, audit.ResourceTypeProject, project.ID,
		fmt.Sprintf("project %s deleted", project.Name))
	s.logger.Infof("Project with id %d deleted", project.ID)
	return nil
}

// SponsorProject adds teamID to the project's sponsors
func (s *Service) SponsorProject(ctx context.Context, caller *tracker.User, projectID, teamID int64) (*tracker.Project, error) {
	project, team, err := s.loadSponsorship(ctx, projectID, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.members.SponsorProject(ctx, caller.ID, project.ID, team.ID); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, project.ID)
}

// UnsponsorProject removes teamID from the project's sponsors
func (s *Service) UnsponsorProject(ctx context.Context, caller *tracker.User, projectID, teamID int64) (*tracker.Project, error) {
	project, team, err := s.loadSponsorship(ctx, projectID, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.members.UnsponsorProject(ctx, caller.ID, project.ID, team.ID); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, project.ID)
}

func (s *Service) loadSponsorship(ctx context.Context, projectID, teamID int64) (*tracker.Project, *tracker.Team, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	return project, team, nil
}
