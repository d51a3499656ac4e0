// Package memory provides an in-process Store backed by maps.
//
// Objects are kept in an arena keyed by id; parent, board and project links are
// plain id references. One RWMutex guards the whole arena, so every cascading
// delete and every bug relink is applied in a single critical section.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

var _ storage.Store = (*Store)(nil)

type pair struct {
	team  int64
	other int64
}

// Store is a thread-safe in-memory storage.Store
type Store struct {
	mu     sync.RWMutex
	lastID int64
	now    func() time.Time

	users     map[int64]*tracker.User
	teams     map[int64]*tracker.Team
	projects  map[int64]*tracker.Project
	boards    map[int64]*tracker.Board
	workItems map[int64]*tracker.WorkItem
	bugItems  map[int64]*tracker.BugItem
	comments  map[int64]*tracker.Comment
	tokens    map[int64]*auth.APIToken

	members  map[pair]struct{} // team, user
	sponsors map[pair]struct{} // team, project

	bugByWorkItem map[int64]int64
	workItemByBug map[int64]int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[int64]*tracker.User),
		teams:         make(map[int64]*tracker.Team),
		projects:      make(map[int64]*tracker.Project),
		boards:        make(map[int64]*tracker.Board),
		workItems:     make(map[int64]*tracker.WorkItem),
		bugItems:      make(map[int64]*tracker.BugItem),
		comments:      make(map[int64]*tracker.Comment),
		tokens:        make(map[int64]*auth.APIToken),
		members:       make(map[pair]struct{}),
		sponsors:      make(map[pair]struct{}),
		bugByWorkItem: make(map[int64]int64),
		workItemByBug: make(map[int64]int64),
	}
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// Ping implements storage.Store
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements storage.Store
func (s *Store) Close() error {
	return nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Users

// CreateUser implements storage.UserStore
func (s *Store) CreateUser(ctx context.Context, user *tracker.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return tracker.Conflict("user with email %s already exists", user.Email)
		}
	}

	user.ID = s.nextID()
	user.CreatedAt = s.timestamp()
	stored := *user
	stored.TeamIDs = nil
	s.users[user.ID] = &stored
	return nil
}

func (s *Store) userView(u *tracker.User) *tracker.User {
	out := *u
	teams := make(map[int64]struct{})
	for p := range s.members {
		if p.other == u.ID {
			teams[p.team] = struct{}{}
		}
	}
	out.TeamIDs = sortedIDs(teams)
	return &out
}

// GetUser implements storage.UserStore
func (s *Store) GetUser(ctx context.Context, id int64) (*tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, tracker.NotFound("user", id)
	}
	return s.userView(u), nil
}

// GetUserByEmail implements storage.UserStore
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return s.userView(u), nil
		}
	}
	return nil, tracker.NotFoundf("user with email %s not found", email)
}

// UpdateUser implements storage.UserStore
func (s *Store) UpdateUser(ctx context.Context, user *tracker.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return tracker.NotFound("user", user.ID)
	}
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	return nil
}

// ListProjectUsers implements storage.UserStore
func (s *Store) ListProjectUsers(ctx context.Context, projectID int64) ([]*tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make(map[int64]struct{})
	for p := range s.sponsors {
		if p.other == projectID {
			teams[p.team] = struct{}{}
		}
	}
	userIDs := make(map[int64]struct{})
	for p := range s.members {
		if _, ok := teams[p.team]; ok {
			userIDs[p.other] = struct{}{}
		}
	}

	out := make([]*tracker.User, 0, len(userIDs))
	for _, id := range sortedIDs(userIDs) {
		if u, ok := s.users[id]; ok {
			out = append(out, s.userView(u))
		}
	}
	return out, nil
}

// Teams

// CreateTeam implements storage.TeamStore
func (s *Store) CreateTeam(ctx context.Context, team *tracker.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.teamNameTaken(team.Name, 0) {
		return tracker.Conflict("team with name %s already exists", team.Name)
	}

	team.ID = s.nextID()
	team.CreatedAt = s.timestamp()
	stored := *team
	stored.MemberIDs = nil
	stored.ProjectIDs = nil
	s.teams[team.ID] = &stored
	return nil
}

func (s *Store) teamNameTaken(name string, except int64) bool {
	for _, t := range s.teams {
		if t.ID != except && t.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) teamView(t *tracker.Team) *tracker.Team {
	out := *t
	members := make(map[int64]struct{})
	projects := make(map[int64]struct{})
	for p := range s.members {
		if p.team == t.ID {
			members[p.other] = struct{}{}
		}
	}
	for p := range s.sponsors {
		if p.team == t.ID {
			projects[p.other] = struct{}{}
		}
	}
	out.MemberIDs = sortedIDs(members)
	out.ProjectIDs = sortedIDs(projects)
	return &out
}

// GetTeam implements storage.TeamStore
func (s *Store) GetTeam(ctx context.Context, id int64) (*tracker.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, tracker.NotFound("team", id)
	}
	return s.teamView(t), nil
}

// ListTeams implements storage.TeamStore
func (s *Store) ListTeams(ctx context.Context) ([]*tracker.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int64]struct{}, len(s.teams))
	for id := range s.teams {
		ids[id] = struct{}{}
	}
	out := make([]*tracker.Team, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		out = append(out, s.teamView(s.teams[id]))
	}
	return out, nil
}

// ListTeamsForUser implements storage.TeamStore
func (s *Store) ListTeamsForUser(ctx context.Context, userID int64) ([]*tracker.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int64]struct{})
	for p := range s.members {
		if p.other == userID {
			ids[p.team] = struct{}{}
		}
	}
	out := make([]*tracker.Team, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		if t, ok := s.teams[id]; ok {
			out = append(out, s.teamView(t))
		}
	}
	return out, nil
}

// UpdateTeam implements storage.TeamStore
func (s *Store) UpdateTeam(ctx context.Context, team *tracker.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[team.ID]
	if !ok {
		return tracker.NotFound("team", team.ID)
	}
	if s.teamNameTaken(team.Name, team.ID) {
		return tracker.Conflict("team with name %s already exists", team.Name)
	}
	t.Name = team.Name
	return nil
}

// DeleteTeam implements storage.TeamStore
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[id]; !ok {
		return tracker.NotFound("team", id)
	}
	for p := range s.members {
		if p.team == id {
			delete(s.members, p)
		}
	}
	for p := range s.sponsors {
		if p.team == id {
			delete(s.sponsors, p)
		}
	}
	delete(s.teams, id)
	return nil
}

// Membership

// AddMember implements storage.MembershipStore
func (s *Store) AddMember(ctx context.Context, teamID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[teamID]; !ok {
		return tracker.NotFound("team", teamID)
	}
	if _, ok := s.users[userID]; !ok {
		return tracker.NotFound("user", userID)
	}
	key := pair{team: teamID, other: userID}
	if _, exists := s.members[key]; exists {
		return tracker.DuplicateMembership("user %d is already a member of team %d", userID, teamID)
	}
	s.members[key] = struct{}{}
	return nil
}

// RemoveMember implements storage.MembershipStore
func (s *Store) RemoveMember(ctx context.Context, teamID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members, pair{team: teamID, other: userID})
	return nil
}

// AddSponsor implements storage.MembershipStore
func (s *Store) AddSponsor(ctx context.Context, teamID, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[teamID]; !ok {
		return tracker.NotFound("team", teamID)
	}
	if _, ok := s.projects[projectID]; !ok {
		return tracker.NotFound("project", projectID)
	}
	key := pair{team: teamID, other: projectID}
	if _, exists := s.sponsors[key]; exists {
		return tracker.DuplicateMembership("team %d already sponsors project %d", teamID, projectID)
	}
	s.sponsors[key] = struct{}{}
	return nil
}

// RemoveSponsor implements storage.MembershipStore
func (s *Store) RemoveSponsor(ctx context.Context, teamID, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sponsors, pair{team: teamID, other: projectID})
	return nil
}

// IsMember implements storage.MembershipStore
func (s *Store) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[pair{team: teamID, other: userID}]
	return ok, nil
}

// ProjectsVisibleTo implements storage.MembershipStore
func (s *Store) ProjectsVisibleTo(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make(map[int64]struct{})
	for p := range s.members {
		if p.other == userID {
			teams[p.team] = struct{}{}
		}
	}
	projects := make(map[int64]struct{})
	for p := range s.sponsors {
		if _, ok := teams[p.team]; ok {
			projects[p.other] = struct{}{}
		}
	}
	return sortedIDs(projects), nil
}

// HasProjectAccess implements storage.MembershipStore
func (s *Store) HasProjectAccess(ctx context.Context, userID, projectID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for p := range s.sponsors {
		if p.other != projectID {
			continue
		}
		if _, ok := s.members[pair{team: p.team, other: userID}]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Tokens

// CreateToken implements auth.TokenStore
func (s *Store) CreateToken(ctx context.Context, token *auth.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token.ID = s.nextID()
	stored := *token
	s.tokens[token.ID] = &stored
	return nil
}

// GetTokenByHash implements auth.TokenStore
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*auth.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.TokenHash == hash {
			out := *t
			return &out, nil
		}
	}
	return nil, tracker.NotFoundf("token not found")
}

// ListUserTokens implements auth.TokenStore
func (s *Store) ListUserTokens(ctx context.Context, userID int64) ([]*auth.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auth.APIToken, 0)
	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// TouchToken implements auth.TokenStore
func (s *Store) TouchToken(ctx context.Context, id int64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &usedAt
	}
	return nil
}

// RevokeToken implements auth.TokenStore
func (s *Store) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return tracker.NotFound("token", id)
	}
	if t.RevokedAt == nil {
		t.RevokedAt = &revokedAt
	}
	return nil
}

// DeleteExpiredTokens implements auth.TokenStore
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}
