package membership

import (
	"context"
	"fmt"

	"github.com/platinummonkey/plank/pkg/storage"
)

// Graph is a read-only view over the membership relations. Nothing is cached;
// every call goes to the store.
type Graph struct {
	store storage.MembershipStore
}

// NewGraph creates a graph over store
func NewGraph(store storage.MembershipStore) *Graph {
	return &Graph{store: store}
}

// ProjectsVisibleTo returns every project sponsored by a team userID belongs to.
// An unknown user gets an empty slice.
func (g *Graph) ProjectsVisibleTo(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := g.store.ProjectsVisibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible projects: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// HasProjectAccess is the single-project form of ProjectsVisibleTo
func (g *Graph) HasProjectAccess(ctx context.Context, userID, projectID int64) (bool, error) {
	ok, err := g.store.HasProjectAccess(ctx, userID, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to check project access: %w", err)
	}
	return ok, nil
}

// IsTeamMember reports direct membership of userID in teamID
func (g *Graph) IsTeamMember(ctx context.Context, teamID, userID int64) (bool, error) {
	ok, err := g.store.IsMember(ctx, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return ok, nil
}
