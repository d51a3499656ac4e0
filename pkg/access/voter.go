package access

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/tracker"
)

// Graph is the membership view the voter reads
type Graph interface {
	HasProjectAccess(ctx context.Context, userID, projectID int64) (bool, error)
	IsTeamMember(ctx context.Context, teamID, userID int64) (bool, error)
}

const (
	checkProject  = "project"
	checkObject   = "object"
	checkTeam     = "team"
	checkAssignee = "assignee"
)

// NewDecisionsCounter creates the plank_access_decisions_total counter
func NewDecisionsCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plank_access_decisions_total",
			Help: "Total number of access decisions by check and result",
		},
		[]string{"check", "result"},
	)
}

// Voter evaluates access decisions
type Voter struct {
	graph     Graph
	logger    *logrus.Logger
	decisions *prometheus.CounterVec
}

// NewVoter creates a voter over graph. logger and decisions may be nil.
func NewVoter(graph Graph, logger *logrus.Logger, decisions *prometheus.CounterVec) *Voter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Voter{graph: graph, logger: logger, decisions: decisions}
}

// CanAccessProject reports whether callerID is on a team sponsoring projectID
func (v *Voter) CanAccessProject(ctx context.Context, callerID, projectID int64) bool {
	return v.observe(checkProject, v.projectAccess(ctx, callerID, projectID))
}

// CanAccess checks obj through its owner project id. The containment chain is never walked.
func (v *Voter) CanAccess(ctx context.Context, callerID int64, obj tracker.Owned) bool {
	if obj == nil {
		return v.observe(checkObject, false)
	}
	return v.observe(checkObject, v.projectAccess(ctx, callerID, obj.OwnerProjectID()))
}

// CanAccessTeam reports direct membership of callerID in teamID
func (v *Voter) CanAccessTeam(ctx context.Context, callerID, teamID int64) bool {
	ok, err := v.graph.IsTeamMember(ctx, teamID, callerID)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"caller_id": callerID,
			"team_id":   teamID,
		}).Errorf("Failed to check team membership: %v", err)
		return v.observe(checkTeam, false)
	}
	return v.observe(checkTeam, ok)
}

// CanAccessAsAssignee reports whether candidateID could see the board's project,
// which is the condition for being assigned work on it
func (v *Voter) CanAccessAsAssignee(ctx context.Context, board *tracker.Board, candidateID int64) bool {
	if board == nil {
		return v.observe(checkAssignee, false)
	}
	return v.observe(checkAssignee, v.projectAccess(ctx, candidateID, board.ProjectID))
}

func (v *Voter) projectAccess(ctx context.Context, userID, projectID int64) bool {
	ok, err := v.graph.HasProjectAccess(ctx, userID, projectID)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"project_id": projectID,
		}).Errorf("Failed to check project access: %v", err)
		return false
	}
	return ok
}

func (v *Voter) observe(check string, allowed bool) bool {
	if v.decisions != nil {
		result := "deny"
		if allowed {
			result = "allow"
		}
		v.decisions.WithLabelValues(check, result).Inc()
	}
	return allowed
}
