package service

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/access"
	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/hierarchy"
	"github.com/platinummonkey/plank/pkg/membership"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// Options configures a Service. Zero values are replaced with defaults.
type Options struct {
	Tokens    *auth.TokenManager
	Audit     audit.Logger
	Logger    *logrus.Logger
	Decisions *prometheus.CounterVec
}

// Service implements the tracker operations. Every call follows the same
// order: validate input, load the target, ask the voter, then write.
type Service struct {
	store     storage.Store
	graph     *membership.Graph
	voter     *access.Voter
	members   *membership.Mutator
	hierarchy *hierarchy.Manager
	tokens    *auth.TokenManager
	audit     audit.Logger
	logger    *logrus.Logger
}

// New wires a service over store
func New(store storage.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOp()
	}
	if opts.Tokens == nil {
		opts.Tokens = auth.NewTokenManager(store, nil)
	}

	graph := membership.NewGraph(store)
	voter := access.NewVoter(graph, opts.Logger, opts.Decisions)
	return &Service{
		store:     store,
		graph:     graph,
		voter:     voter,
		members:   membership.NewMutator(store, voter, opts.Audit, opts.Logger),
		hierarchy: hierarchy.NewManager(store),
		tokens:    opts.Tokens,
		audit:     opts.Audit,
		logger:    opts.Logger,
	}
}

// Voter exposes the access engine used by the service
func (s *Service) Voter() *access.Voter {
	return s.voter
}

// requireText trims value and fails when nothing is left
func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", tracker.Validation("%s is required", field)
	}
	return value, nil
}

// optionalText returns the trimmed value and whether it should be applied
func optionalText(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	v := strings.TrimSpace(*value)
	return v, v != ""
}

func requireAdmin(caller *tracker.User) error {
	if caller == nil || !caller.IsAdmin {
		return tracker.Forbidden("administrator privileges required")
	}
	return nil
}

func requireSelf(caller *tracker.User, userID int64) error {
	if caller == nil || caller.ID != userID {
		return tracker.Forbidden("users may only act on their own account")
	}
	return nil
}

// authorize checks obj against the caller's visible projects
func (s *Service) authorize(ctx context.Context, caller *tracker.User, obj tracker.Owned, resourceType audit.ResourceType, resourceID int64) error {
	if s.voter.CanAccess(ctx, caller.ID, obj) {
		return nil
	}
	return s.deny(ctx, caller, resourceType, resourceID,
		tracker.Forbidden("no access to project %d", obj.OwnerProjectID()))
}

func (s *Service) authorizeTeam(ctx context.Context, caller *tracker.User, teamID int64) error {
	if s.voter.CanAccessTeam(ctx, caller.ID, teamID) {
		return nil
	}
	return s.deny(ctx, caller, audit.ResourceTypeTeam, teamID,
		tracker.Forbidden("not a member of team %d", teamID))
}

func (s *Service) deny(ctx context.Context, caller *tracker.User, resourceType audit.ResourceType, resourceID int64, err error) error {
	if logErr := audit.Denied(ctx, s.audit, caller.ID, resourceType, resourceID, err.Error()); logErr != nil {
		s.logger.Warnf("Failed to write audit event: %v", logErr)
	}
	return err
}

func (s *Service) record(ctx context.Context, caller *tracker.User, eventType audit.EventType, resourceType audit.ResourceType, resourceID int64, message string) {
	if err := audit.Mutation(ctx, s.audit, eventType, caller.ID, resourceType, resourceID, message); err != nil {
		s.logger.Warnf("Failed to write audit event: %v", err)
	}
}
