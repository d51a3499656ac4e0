package service

import (
	"context"
	"fmt"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// CreateTeam creates a team with the caller as its first member
func (s *Service) CreateTeam(ctx context.Context, caller *tracker.User, name string) (*tracker.Team, error) {
	name, err := requireText("team name", name)
	if err != nil {
		return nil, err
	}

	team := &tracker.Team{Name: name}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	// The creator has no standing yet, so the first member bypasses the mutator.
	if err := s.store.AddMember(ctx, team.ID, caller.ID); err != nil {
		if delErr := s.store.DeleteTeam(ctx, team.ID); delErr != nil {
			s.logger.Errorf("Failed to remove team %d after membership failure: %v", team.ID, delErr)
		}
		return nil, fmt.Errorf("failed to add creator to team: %w", err)
	}
	s.record(ctx, caller, audit.EventTypeDataTeamCreate, audit.ResourceTypeTeam, team.ID,
		fmt.Sprintf("team %s created", team.Name))
	return s.store.GetTeam(ctx, team.ID)
}

// GetTeam returns a team the caller belongs to
func (s *Service) GetTeam(ctx context.Context, caller *tracker.User, id int64) (*tracker.Team, error) {
	team, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTeam(ctx, caller, team.ID); err != nil {
		return nil, err
	}
	return team, nil
}

// ListTeams returns all teams. Administrators only.
func (s *Service) ListTeams(ctx context.Context, caller *tracker.User) ([]*tracker.Team, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.ListTeams(ctx)
}

// ListTeamsForUser returns the teams of userID, who must be the caller
func (s *Service) ListTeamsForUser(ctx context.Context, caller *tracker.User, userID int64) ([]*tracker.Team, error) {
	if err := requireSelf(caller, userID); err != nil {
		return nil, err
	}
	return s.store.ListTeamsForUser(ctx, userID)
}

// UpdateTeam renames a team. A blank name leaves it unchanged.
func (s *Service) UpdateTeam(ctx context.Context, caller *tracker.User, id int64, name *string) (*tracker.Team, error) {
	team, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTeam(ctx, caller, team.ID); err != nil {
		return nil, err
	}

	if v, ok := optionalText(name); ok && v != team.Name {
		team.Name = v
		if err := s.store.UpdateTeam(ctx, team); err != nil {
			return nil, err
		}
	}
	return team, nil
}

// DeleteTeam removes a team and both of its relations
func (s *Service) DeleteTeam(ctx context.Context, caller *tracker.User, id int64) error {
	team, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeTeam(ctx, caller, team.ID); err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, team.ID); err != nil {
		return err
	}
	s.record(ctx, caller, audit.EventTypeDataTeamDelete, audit.ResourceTypeTeam, team.ID,
		fmt.Sprintf("team %s deleted", team.Name))
	return nil
}

// AddMember adds the user with email to the team
func (s *Service) AddMember(ctx context.Context, caller *tracker.User, teamID int64, email string) (*tracker.Team, error) {
	email, err := requireText("email", email)
	if err != nil {
		return nil, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.members.AddMember(ctx, caller.ID, team.ID, user.ID); err != nil {
		return nil, err
	}
	return s.store.GetTeam(ctx, team.ID)
}

// RemoveMember removes the user with email from the team. Removing a
// non-member succeeds without changes.
func (s *Service) RemoveMember(ctx context.Context, caller *tracker.User, teamID int64, email string) (*tracker.Team, error) {
	email, err := requireText("email", email)
	if err != nil {
		return nil, err
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.members.RemoveMember(ctx, caller.ID, team.ID, user.ID); err != nil {
		return nil, err
	}
	return s.store.GetTeam(ctx, team.ID)
}
