// Package postgres implements storage.Store over database/sql.
//
// Queries are written for PostgreSQL via lib/pq. They avoid vendor specific
// syntax beyond RETURNING, ON CONFLICT DO NOTHING and recursive CTEs, so the
// same store runs against an in-memory sqlite database in tests.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using PostgreSQL
type Store struct {
	db   *sql.DB
	read func() *sql.DB
	cm   *ConnectionManager
	now  func() time.Time
}

// New creates a store over an open database handle
func New(db *sql.DB) *Store {
	return &Store{
		db:   db,
		read: func() *sql.DB { return db },
		now:  time.Now,
	}
}

// NewFromConnectionManager creates a store that writes to the primary and
// serves list queries from the read replicas
func NewFromConnectionManager(cm *ConnectionManager) *Store {
	return &Store{
		db:   cm.Primary(),
		read: cm.Replica,
		cm:   cm,
		now:  time.Now,
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping implements storage.Store
func (s *Store) Ping(ctx context.Context) error {
	if s.cm != nil {
		return s.cm.HealthCheck(ctx)
	}
	return s.db.PingContext(ctx)
}

// Close implements storage.Store
func (s *Store) Close() error {
	if s.cm != nil {
		return s.cm.Close()
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func exists(ctx context.Context, q querier, query string, args ...interface{}) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func mustExist(ctx context.Context, q querier, table, entity string, id int64) error {
	ok, err := exists(ctx, q, "SELECT 1 FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", entity, err)
	}
	if !ok {
		return tracker.NotFound(entity, id)
	}
	return nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...interface{}) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

// Users

const userColumns = "id, email, first_name, last_name, is_admin, created_at"

func scanUser(row scanner) (*tracker.User, error) {
	var u tracker.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) fillUserTeams(ctx context.Context, q querier, u *tracker.User) error {
	ids, err := queryIDs(ctx, q, "SELECT team_id FROM team_members WHERE user_id = $1 ORDER BY team_id", u.ID)
	if err != nil {
		return fmt.Errorf("failed to load teams for user %d: %w", u.ID, err)
	}
	u.TeamIDs = ids
	return nil
}

// CreateUser implements storage.UserStore
func (s *Store) CreateUser(ctx context.Context, user *tracker.User) error {
	taken, err := exists(ctx, s.db, "SELECT 1 FROM users WHERE lower(email) = lower($1)", user.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return tracker.Conflict("user with email %s already exists", user.Email)
	}

	user.CreatedAt = s.timestamp()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, first_name, last_name, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, user.Email, user.FirstName, user.LastName, user.IsAdmin, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return tracker.Conflict("user with email %s already exists", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser implements storage.UserStore
func (s *Store) GetUser(ctx context.Context, id int64) (*tracker.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("user", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.fillUserTeams(ctx, s.db, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail implements storage.UserStore
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*tracker.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFoundf("user with email %s not found", email)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.fillUserTeams(ctx, s.db, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser implements storage.UserStore
func (s *Store) UpdateUser(ctx context.Context, user *tracker.User) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET first_name = $1, last_name = $2 WHERE id = $3",
		user.FirstName, user.LastName, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res, "user", user.ID)
}

// ListProjectUsers implements storage.UserStore
func (s *Store) ListProjectUsers(ctx context.Context, projectID int64) ([]*tracker.User, error) {
	db := s.read()
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.email, u.first_name, u.last_name, u.is_admin, u.created_at
		FROM users u
		JOIN team_members tm ON tm.user_id = u.id
		JOIN project_teams pt ON pt.team_id = tm.team_id
		WHERE pt.project_id = $1
		ORDER BY u.id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}

	users := make([]*tracker.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}

	for _, u := range users {
		if err := s.fillUserTeams(ctx, db, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func requireAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return tracker.NotFound(entity, id)
	}
	return nil
}

// Teams

func (s *Store) fillTeamRelations(ctx context.Context, q querier, t *tracker.Team) error {
	members, err := queryIDs(ctx, q, "SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id", t.ID)
	if err != nil {
		return fmt.Errorf("failed to load members of team %d: %w", t.ID, err)
	}
	projects, err := queryIDs(ctx, q, "SELECT project_id FROM project_teams WHERE team_id = $1 ORDER BY project_id", t.ID)
	if err != nil {
		return fmt.Errorf("failed to load projects of team %d: %w", t.ID, err)
	}
	t.MemberIDs = members
	t.ProjectIDs = projects
	return nil
}

func (s *Store) listTeams(ctx context.Context, q querier, query string, args ...interface{}) ([]*tracker.Team, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	teams := make([]*tracker.Team, 0)
	for rows.Next() {
		var t tracker.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	for _, t := range teams {
		if err := s.fillTeamRelations(ctx, q, t); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

// CreateTeam implements storage.TeamStore
func (s *Store) CreateTeam(ctx context.Context, team *tracker.Team) error {
	taken, err := exists(ctx, s.db, "SELECT 1 FROM teams WHERE name = $1", team.Name)
	if err != nil {
		return fmt.Errorf("failed to check team name: %w", err)
	}
	if taken {
		return tracker.Conflict("team with name %s already exists", team.Name)
	}

	team.CreatedAt = s.timestamp()
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO teams (name, created_at) VALUES ($1, $2) RETURNING id",
		team.Name, team.CreatedAt).Scan(&team.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return tracker.Conflict("team with name %s already exists", team.Name)
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetTeam implements storage.TeamStore
func (s *Store) GetTeam(ctx context.Context, id int64) (*tracker.Team, error) {
	var t tracker.Team
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM teams WHERE id = $1", id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("team", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if err := s.fillTeamRelations(ctx, s.db, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTeams implements storage.TeamStore
func (s *Store) ListTeams(ctx context.Context) ([]*tracker.Team, error) {
	return s.listTeams(ctx, s.read(), "SELECT id, name, created_at FROM teams ORDER BY id")
}

// ListTeamsForUser implements storage.TeamStore
func (s *Store) ListTeamsForUser(ctx context.Context, userID int64) ([]*tracker.Team, error) {
	return s.listTeams(ctx, s.read(), `
		SELECT t.id, t.name, t.created_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1
		ORDER BY t.id
	`, userID)
}

// UpdateTeam implements storage.TeamStore
func (s *Store) UpdateTeam(ctx context.Context, team *tracker.Team) error {
	taken, err := exists(ctx, s.db, "SELECT 1 FROM teams WHERE name = $1 AND id <> $2", team.Name, team.ID)
	if err != nil {
		return fmt.Errorf("failed to check team name: %w", err)
	}
	if taken {
		return tracker.Conflict("team with name %s already exists", team.Name)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE teams SET name = $1 WHERE id = $2", team.Name, team.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return tracker.Conflict("team with name %s already exists", team.Name)
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	return requireAffected(res, "team", team.ID)
}

// DeleteTeam implements storage.TeamStore
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "teams", "team", id); err != nil {
			return err
		}
		for _, q := range []string{
			"DELETE FROM team_members WHERE team_id = $1",
			"DELETE FROM project_teams WHERE team_id = $1",
			"DELETE FROM teams WHERE id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete team: %w", err)
			}
		}
		return nil
	})
}

// Membership

func (s *Store) addRelation(ctx context.Context, insert string, a, b int64, check func(tx *sql.Tx) error, dup func() error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := check(tx); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, insert, a, b)
		if err != nil {
			return fmt.Errorf("failed to insert relation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return dup()
		}
		return nil
	})
}

// AddMember implements storage.MembershipStore
func (s *Store) AddMember(ctx context.Context, teamID, userID int64) error {
	return s.addRelation(ctx,
		"INSERT INTO team_members (team_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		teamID, userID,
		func(tx *sql.Tx) error {
			if err := mustExist(ctx, tx, "teams", "team", teamID); err != nil {
				return err
			}
			return mustExist(ctx, tx, "users", "user", userID)
		},
		func() error {
			return tracker.DuplicateMembership("user %d is already a member of team %d", userID, teamID)
		})
}

// RemoveMember implements storage.MembershipStore
func (s *Store) RemoveMember(ctx context.Context, teamID, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM team_members WHERE team_id = $1 AND user_id = $2", teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// AddSponsor implements storage.MembershipStore
func (s *Store) AddSponsor(ctx context.Context, teamID, projectID int64) error {
	return s.addRelation(ctx,
		"INSERT INTO project_teams (team_id, project_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		teamID, projectID,
		func(tx *sql.Tx) error {
			if err := mustExist(ctx, tx, "teams", "team", teamID); err != nil {
				return err
			}
			return mustExist(ctx, tx, "projects", "project", projectID)
		},
		func() error {
			return tracker.DuplicateMembership("team %d already sponsors project %d", teamID, projectID)
		})
}

// RemoveSponsor implements storage.MembershipStore
func (s *Store) RemoveSponsor(ctx context.Context, teamID, projectID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM project_teams WHERE team_id = $1 AND project_id = $2", teamID, projectID)
	if err != nil {
		return fmt.Errorf("failed to remove sponsor: %w", err)
	}
	return nil
}

// IsMember implements storage.MembershipStore
func (s *Store) IsMember(ctx context.Context, teamID, userID int64) (bool, error) {
	ok, err := exists(ctx, s.db, "SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2", teamID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}

// ProjectsVisibleTo implements storage.MembershipStore
func (s *Store) ProjectsVisibleTo(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := queryIDs(ctx, s.db, `
		SELECT DISTINCT pt.project_id
		FROM project_teams pt
		JOIN team_members tm ON tm.team_id = pt.team_id
		WHERE tm.user_id = $1
		ORDER BY pt.project_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible projects: %w", err)
	}
	return ids, nil
}

// HasProjectAccess implements storage.MembershipStore
func (s *Store) HasProjectAccess(ctx context.Context, userID, projectID int64) (bool, error) {
	ok, err := exists(ctx, s.db, `
		SELECT 1
		FROM project_teams pt
		JOIN team_members tm ON tm.team_id = pt.team_id
		WHERE pt.project_id = $1 AND tm.user_id = $2
		LIMIT 1
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check project access: %w", err)
	}
	return ok, nil
}

// Tokens

const tokenColumns = "id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, revoked_at, created_at"

func scanToken(row scanner) (*auth.APIToken, error) {
	var (
		t                            auth.APIToken
		expiresAt, usedAt, revokedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
		&expiresAt, &usedAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ExpiresAt = timePtr(expiresAt)
	t.LastUsedAt = timePtr(usedAt)
	t.RevokedAt = timePtr(revokedAt)
	return &t, nil
}

// CreateToken implements auth.TokenStore
func (s *Store) CreateToken(ctx context.Context, token *auth.APIToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = s.timestamp()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, token.UserID, token.TokenHash, token.TokenPrefix, token.Name, nullTime(token.ExpiresAt), token.CreatedAt.UTC()).
		Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// GetTokenByHash implements auth.TokenStore
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*auth.APIToken, error) {
	t, err := scanToken(s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM api_tokens WHERE token_hash = $1", hash))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFoundf("token not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return t, nil
}

// ListUserTokens implements auth.TokenStore
func (s *Store) ListUserTokens(ctx context.Context, userID int64) ([]*auth.APIToken, error) {
	rows, err := s.read().QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*auth.APIToken, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// TouchToken implements auth.TokenStore
func (s *Store) TouchToken(ctx context.Context, id int64, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_tokens SET last_used_at = $1 WHERE id = $2", usedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update token usage: %w", err)
	}
	return nil
}

// RevokeToken implements auth.TokenStore
func (s *Store) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE api_tokens SET revoked_at = COALESCE(revoked_at, $1) WHERE id = $2", revokedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return requireAffected(res, "token", id)
}

// DeleteExpiredTokens implements auth.TokenStore
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
