package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the PostgreSQL DDL for the tracker. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (team_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members(user_id);

CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS project_teams (
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	PRIMARY KEY (project_id, team_id)
);
CREATE INDEX IF NOT EXISTS idx_project_teams_team ON project_teams(team_id);

CREATE TABLE IF NOT EXISTS boards (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_boards_project ON boards(project_id);

CREATE TABLE IF NOT EXISTS work_items (
	id BIGSERIAL PRIMARY KEY,
	board_id BIGINT NOT NULL REFERENCES boards(id),
	project_id BIGINT NOT NULL REFERENCES projects(id),
	parent_id BIGINT REFERENCES work_items(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	story_points INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	assignee_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_work_items_board ON work_items(board_id);
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_project ON work_items(project_id);

-- bug items and their comments may outlive the project when they were linked
-- to one of its work items, so project_id carries no foreign key there
CREATE TABLE IF NOT EXISTS bug_items (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL,
	reporter_id BIGINT NOT NULL,
	work_item_id BIGINT UNIQUE REFERENCES work_items(id) ON DELETE SET NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bug_items_project ON bug_items(project_id);

CREATE TABLE IF NOT EXISTS comments (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL,
	parent_kind TEXT NOT NULL CHECK (parent_kind IN ('work_item', 'bug_item')),
	parent_id BIGINT NOT NULL,
	commenter_id BIGINT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_kind, parent_id);
ALTER TABLE bug_items DROP CONSTRAINT IF EXISTS bug_items_project_id_fkey;
ALTER TABLE comments DROP CONSTRAINT IF EXISTS comments_project_id_fkey;

CREATE TABLE IF NOT EXISTS api_tokens (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token_hash TEXT NOT NULL UNIQUE,
	token_prefix TEXT NOT NULL,
	name TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	last_used_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id);
`

// EnsureSchema applies Schema to db
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
