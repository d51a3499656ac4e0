package membership

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// Voter is the subset of the access engine the mutator needs
type Voter interface {
	CanAccessProject(ctx context.Context, callerID, projectID int64) bool
	CanAccessTeam(ctx context.Context, callerID, teamID int64) bool
}

// Mutator changes membership relations on behalf of a caller
type Mutator struct {
	store  storage.MembershipStore
	voter  Voter
	audit  audit.Logger
	logger *logrus.Logger
}

// NewMutator creates a mutator. auditLogger and logger may be nil.
func NewMutator(store storage.MembershipStore, voter Voter, auditLogger audit.Logger, logger *logrus.Logger) *Mutator {
	if auditLogger == nil {
		auditLogger = audit.NoOp()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Mutator{store: store, voter: voter, audit: auditLogger, logger: logger}
}

// AddMember puts userID on teamID. The caller must already be on the team.
func (m *Mutator) AddMember(ctx context.Context, callerID, teamID, userID int64) error {
	if !m.voter.CanAccessTeam(ctx, callerID, teamID) {
		return m.deny(ctx, callerID, audit.ResourceTypeTeam, teamID, "caller is not a member of team %d", teamID)
	}
	if err := m.store.AddMember(ctx, teamID, userID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeMemberAdd, callerID, audit.ResourceTypeTeam, teamID,
		fmt.Sprintf("user %d added to team %d", userID, teamID))
	return nil
}

// RemoveMember takes userID off teamID. Removing an absent member is a no-op.
func (m *Mutator) RemoveMember(ctx context.Context, callerID, teamID, userID int64) error {
	if !m.voter.CanAccessTeam(ctx, callerID, teamID) {
		return m.deny(ctx, callerID, audit.ResourceTypeTeam, teamID, "caller is not a member of team %d", teamID)
	}
	if err := m.store.RemoveMember(ctx, teamID, userID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeMemberRemove, callerID, audit.ResourceTypeTeam, teamID,
		fmt.Sprintf("user %d removed from team %d", userID, teamID))
	return nil
}

// SponsorProject makes teamID a sponsor of projectID. The caller needs standing on both.
func (m *Mutator) SponsorProject(ctx context.Context, callerID, projectID, teamID int64) error {
	if err := m.checkBoth(ctx, callerID, projectID, teamID); err != nil {
		return err
	}
	if err := m.store.AddSponsor(ctx, teamID, projectID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeProjectSponsor, callerID, audit.ResourceTypeProject, projectID,
		fmt.Sprintf("team %d sponsors project %d", teamID, projectID))
	return nil
}

// UnsponsorProject drops teamID from the sponsors of projectID
func (m *Mutator) UnsponsorProject(ctx context.Context, callerID, projectID, teamID int64) error {
	if err := m.checkBoth(ctx, callerID, projectID, teamID); err != nil {
		return err
	}
	if err := m.store.RemoveSponsor(ctx, teamID, projectID); err != nil {
		return err
	}
	m.record(ctx, audit.EventTypeProjectUnsponsor, callerID, audit.ResourceTypeProject, projectID,
		fmt.Sprintf("team %d no longer sponsors project %d", teamID, projectID))
	return nil
}

func (m *Mutator) checkBoth(ctx context.Context, callerID, projectID, teamID int64) error {
	if !m.voter.CanAccessProject(ctx, callerID, projectID) {
		return m.deny(ctx, callerID, audit.ResourceTypeProject, projectID, "caller cannot access project %d", projectID)
	}
	if !m.voter.CanAccessTeam(ctx, callerID, teamID) {
		return m.deny(ctx, callerID, audit.ResourceTypeTeam, teamID, "caller is not a member of team %d", teamID)
	}
	return nil
}

func (m *Mutator) deny(ctx context.Context, callerID int64, resourceType audit.ResourceType, resourceID int64, format string, args ...interface{}) error {
	err := tracker.Forbidden(format, args...)
	if logErr := audit.Denied(ctx, m.audit, callerID, resourceType, resourceID, err.Error()); logErr != nil {
		m.logger.Warnf("Failed to write audit event: %v", logErr)
	}
	return err
}

func (m *Mutator) record(ctx context.Context, eventType audit.EventType, callerID int64, resourceType audit.ResourceType, resourceID int64, message string) {
	if err := audit.Mutation(ctx, m.audit, eventType, callerID, resourceType, resourceID, message); err != nil {
		m.logger.Warnf("Failed to write audit event: %v", err)
	}
}
