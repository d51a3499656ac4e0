package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// Projects

func (s *Store) fillProjectTeams(ctx context.Context, q querier, p *tracker.Project) error {
	ids, err := queryIDs(ctx, q, "SELECT team_id FROM project_teams WHERE project_id = $1 ORDER BY team_id", p.ID)
	if err != nil {
		return fmt.Errorf("failed to load teams of project %d: %w", p.ID, err)
	}
	p.TeamIDs = ids
	return nil
}

// CreateProject implements storage.ProjectStore
func (s *Store) CreateProject(ctx context.Context, project *tracker.Project, sponsorTeamID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "teams", "team", sponsorTeamID); err != nil {
			return err
		}
		taken, err := exists(ctx, tx, "SELECT 1 FROM projects WHERE name = $1", project.Name)
		if err != nil {
			return fmt.Errorf("failed to check project name: %w", err)
		}
		if taken {
			return tracker.Conflict("project with name %s already exists", project.Name)
		}

		project.CreatedAt = s.timestamp()
		err = tx.QueryRowContext(ctx,
			"INSERT INTO projects (name, description, created_at) VALUES ($1, $2, $3) RETURNING id",
			project.Name, project.Description, project.CreatedAt).Scan(&project.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return tracker.Conflict("project with name %s already exists", project.Name)
			}
			return fmt.Errorf("failed to create project: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO project_teams (project_id, team_id) VALUES ($1, $2)", project.ID, sponsorTeamID)
		if err != nil {
			return fmt.Errorf("failed to add sponsor: %w", err)
		}
		project.TeamIDs = []int64{sponsorTeamID}
		return nil
	})
}

// GetProject implements storage.ProjectStore
func (s *Store) GetProject(ctx context.Context, id int64) (*tracker.Project, error) {
	var p tracker.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM projects WHERE id = $1", id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("project", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := s.fillProjectTeams(ctx, s.db, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects implements storage.ProjectStore
func (s *Store) ListProjects(ctx context.Context) ([]*tracker.Project, error) {
	db := s.read()
	rows, err := db.QueryContext(ctx, "SELECT id, name, description, created_at FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]*tracker.Project, 0)
	for rows.Next() {
		var p tracker.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	for _, p := range projects {
		if err := s.fillProjectTeams(ctx, db, p); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// UpdateProject implements storage.ProjectStore
func (s *Store) UpdateProject(ctx context.Context, project *tracker.Project) error {
	taken, err := exists(ctx, s.db, "SELECT 1 FROM projects WHERE name = $1 AND id <> $2", project.Name, project.ID)
	if err != nil {
		return fmt.Errorf("failed to check project name: %w", err)
	}
	if taken {
		return tracker.Conflict("project with name %s already exists", project.Name)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = $1, description = $2 WHERE id = $3",
		project.Name, project.Description, project.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return tracker.Conflict("project with name %s already exists", project.Name)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(res, "project", project.ID)
}

// doomedBugs selects the bug items of project $1 not linked to one of its work items
const doomedBugs = `SELECT id FROM bug_items WHERE project_id = $1 AND (work_item_id IS NULL
	OR work_item_id NOT IN (SELECT id FROM work_items WHERE project_id = $1))`

// DeleteProject implements storage.ProjectStore
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "projects", "project", id); err != nil {
			return err
		}
		// Bug items linked to this project's work items survive with the link
		// cleared, together with their comments. The unlinked ones are removed.
		for _, q := range []string{
			"DELETE FROM comments WHERE parent_kind = 'work_item' AND parent_id IN (SELECT id FROM work_items WHERE project_id = $1)",
			"DELETE FROM comments WHERE parent_kind = 'bug_item' AND parent_id IN (" + doomedBugs + ")",
			"DELETE FROM bug_items WHERE id IN (" + doomedBugs + ")",
			"UPDATE bug_items SET work_item_id = NULL WHERE work_item_id IN (SELECT id FROM work_items WHERE project_id = $1)",
			"DELETE FROM work_items WHERE project_id = $1",
			"DELETE FROM boards WHERE project_id = $1",
			"DELETE FROM project_teams WHERE project_id = $1",
			"DELETE FROM projects WHERE id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}
		}
		return nil
	})
}

// Boards

// CreateBoard implements storage.BoardStore
func (s *Store) CreateBoard(ctx context.Context, board *tracker.Board) error {
	if err := mustExist(ctx, s.db, "projects", "project", board.ProjectID); err != nil {
		return err
	}
	board.CreatedAt = s.timestamp()
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO boards (project_id, name, created_at) VALUES ($1, $2, $3) RETURNING id",
		board.ProjectID, board.Name, board.CreatedAt).Scan(&board.ID)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	return nil
}

// GetBoard implements storage.BoardStore
func (s *Store) GetBoard(ctx context.Context, id int64) (*tracker.Board, error) {
	var b tracker.Board
	err := s.db.QueryRowContext(ctx,
		"SELECT id, project_id, name, created_at FROM boards WHERE id = $1", id).
		Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("board", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return &b, nil
}

// ListBoards implements storage.BoardStore
func (s *Store) ListBoards(ctx context.Context, projectID int64) ([]*tracker.Board, error) {
	rows, err := s.read().QueryContext(ctx,
		"SELECT id, project_id, name, created_at FROM boards WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	boards := make([]*tracker.Board, 0)
	for rows.Next() {
		var b tracker.Board
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, &b)
	}
	return boards, rows.Err()
}

// UpdateBoard implements storage.BoardStore
func (s *Store) UpdateBoard(ctx context.Context, board *tracker.Board) error {
	res, err := s.db.ExecContext(ctx, "UPDATE boards SET name = $1 WHERE id = $2", board.Name, board.ID)
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}
	return requireAffected(res, "board", board.ID)
}

// DeleteBoard implements storage.BoardStore
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "boards", "board", id); err != nil {
			return err
		}
		for _, q := range []string{
			"UPDATE bug_items SET work_item_id = NULL WHERE work_item_id IN (SELECT id FROM work_items WHERE board_id = $1)",
			"DELETE FROM comments WHERE parent_kind = 'work_item' AND parent_id IN (SELECT id FROM work_items WHERE board_id = $1)",
			"DELETE FROM work_items WHERE board_id = $1",
			"DELETE FROM boards WHERE id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete board: %w", err)
			}
		}
		return nil
	})
}

// Work items

const workItemColumns = `w.id, w.title, w.description, w.story_points, w.status, w.assignee_id,
	w.board_id, w.project_id, w.parent_id, b.id, w.created_at, w.updated_at`

const workItemFrom = "FROM work_items w LEFT JOIN bug_items b ON b.work_item_id = w.id"

func scanWorkItem(row scanner) (*tracker.WorkItem, error) {
	var (
		w                      tracker.WorkItem
		status                 string
		assignee, parent, bugs sql.NullInt64
	)
	err := row.Scan(&w.ID, &w.Title, &w.Description, &w.StoryPoints, &status, &assignee,
		&w.BoardID, &w.ProjectID, &parent, &bugs, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = tracker.WorkItemStatus(status)
	w.AssigneeID = idPtr(assignee)
	w.ParentID = idPtr(parent)
	w.BugItemID = idPtr(bugs)
	return &w, nil
}

func (s *Store) listWorkItems(ctx context.Context, where string, arg int64) ([]*tracker.WorkItem, error) {
	rows, err := s.read().QueryContext(ctx,
		"SELECT "+workItemColumns+" "+workItemFrom+" WHERE "+where+" ORDER BY w.id", arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	items := make([]*tracker.WorkItem, 0)
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// CreateWorkItem implements storage.WorkItemStore
func (s *Store) CreateWorkItem(ctx context.Context, item *tracker.WorkItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "boards", "board", item.BoardID); err != nil {
			return err
		}
		if item.ParentID != nil {
			if err := mustExist(ctx, tx, "work_items", "work item", *item.ParentID); err != nil {
				return err
			}
		}

		now := s.timestamp()
		item.CreatedAt = now
		item.UpdatedAt = now
		item.BugItemID = nil
		err := tx.QueryRowContext(ctx, `
			INSERT INTO work_items (board_id, project_id, parent_id, title, description, story_points, status, assignee_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, item.BoardID, item.ProjectID, nullID(item.ParentID), item.Title, item.Description,
			item.StoryPoints, string(item.Status), nullID(item.AssigneeID), now, now).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create work item: %w", err)
		}
		return nil
	})
}

// GetWorkItem implements storage.WorkItemStore
func (s *Store) GetWorkItem(ctx context.Context, id int64) (*tracker.WorkItem, error) {
	w, err := scanWorkItem(s.db.QueryRowContext(ctx,
		"SELECT "+workItemColumns+" "+workItemFrom+" WHERE w.id = $1", id))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("work item", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return w, nil
}

// ListWorkItems implements storage.WorkItemStore
func (s *Store) ListWorkItems(ctx context.Context, boardID int64) ([]*tracker.WorkItem, error) {
	return s.listWorkItems(ctx, "w.board_id = $1", boardID)
}

// ListChildren implements storage.WorkItemStore
func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]*tracker.WorkItem, error) {
	return s.listWorkItems(ctx, "w.parent_id = $1", parentID)
}

// SetParent implements storage.WorkItemStore
func (s *Store) SetParent(ctx context.Context, id int64, parentID *int64) error {
	return s.ApplyWorkItemChange(ctx, id, storage.WorkItemChange{Reparent: true, ParentID: parentID})
}

// ApplyWorkItemChange implements storage.WorkItemStore
func (s *Store) ApplyWorkItemChange(ctx context.Context, id int64, change storage.WorkItemChange) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var boardID int64
		err := tx.QueryRowContext(ctx, "SELECT board_id FROM work_items WHERE id = $1", id).Scan(&boardID)
		if err == sql.ErrNoRows {
			return tracker.NotFound("work item", id)
		} else if err != nil {
			return fmt.Errorf("failed to load work item: %w", err)
		}

		now := s.timestamp()
		if change.Reparent {
			if err := lockBoard(ctx, tx, boardID); err != nil {
				return err
			}
			if change.ParentID != nil {
				if err := checkParent(ctx, tx, id, boardID, *change.ParentID); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE work_items SET parent_id = $1, updated_at = $2 WHERE id = $3",
				nullID(change.ParentID), now, id); err != nil {
				return fmt.Errorf("failed to set parent: %w", err)
			}
		}

		if change.Relink {
			if change.BugItemID != nil {
				if err := link(ctx, tx, id, *change.BugItemID); err != nil {
					return err
				}
			} else if _, err := tx.ExecContext(ctx,
				"UPDATE bug_items SET work_item_id = NULL WHERE work_item_id = $1", id); err != nil {
				return fmt.Errorf("failed to unlink work item: %w", err)
			}
		}

		if f := change.Fields; f != nil {
			_, err := tx.ExecContext(ctx, `
				UPDATE work_items
				SET title = $1, description = $2, story_points = $3, status = $4, assignee_id = $5, updated_at = $6
				WHERE id = $7
			`, f.Title, f.Description, f.StoryPoints, string(f.Status), nullID(f.AssigneeID), now, id)
			if err != nil {
				return fmt.Errorf("failed to update work item: %w", err)
			}
			f.UpdatedAt = now
		}
		return nil
	})
}

// lockBoard takes a row lock on the board so structural changes on it are serialized
func lockBoard(ctx context.Context, tx *sql.Tx, boardID int64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE boards SET id = id WHERE id = $1", boardID); err != nil {
		return fmt.Errorf("failed to lock board %d: %w", boardID, err)
	}
	return nil
}

const ancestorsCTE = `WITH RECURSIVE ancestors(id, parent_id) AS (
	SELECT id, parent_id FROM work_items WHERE id = $1
	UNION ALL
	SELECT w.id, w.parent_id FROM work_items w JOIN ancestors a ON w.id = a.parent_id
) `

// checkParent fails unless parentID is on boardID and not inside the subtree of id
func checkParent(ctx context.Context, tx *sql.Tx, id, boardID, parentID int64) error {
	if parentID == id {
		return tracker.CyclicHierarchy(id, parentID)
	}
	var parentBoard int64
	err := tx.QueryRowContext(ctx, "SELECT board_id FROM work_items WHERE id = $1", parentID).Scan(&parentBoard)
	if err == sql.ErrNoRows {
		return tracker.NotFound("work item", parentID)
	} else if err != nil {
		return fmt.Errorf("failed to load parent: %w", err)
	}
	if parentBoard != boardID {
		return tracker.CrossBoardLinkage(parentID, id)
	}
	cyclic, err := exists(ctx, tx, ancestorsCTE+"SELECT 1 FROM ancestors WHERE id = $2", parentID, id)
	if err != nil {
		return fmt.Errorf("failed to walk parent chain: %w", err)
	}
	if cyclic {
		return tracker.CyclicHierarchy(id, parentID)
	}
	return nil
}

const subtreeCTE = `WITH RECURSIVE subtree(id) AS (
	SELECT id FROM work_items WHERE id = $1
	UNION ALL
	SELECT w.id FROM work_items w JOIN subtree st ON w.parent_id = st.id
) `

// DeleteWorkItemTree implements storage.WorkItemStore
func (s *Store) DeleteWorkItemTree(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "work_items", "work item", id); err != nil {
			return err
		}
		for _, q := range []string{
			subtreeCTE + "UPDATE bug_items SET work_item_id = NULL WHERE work_item_id IN (SELECT id FROM subtree)",
			subtreeCTE + "DELETE FROM comments WHERE parent_kind = 'work_item' AND parent_id IN (SELECT id FROM subtree)",
			subtreeCTE + "DELETE FROM work_items WHERE id IN (SELECT id FROM subtree)",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete work item tree: %w", err)
			}
		}
		return nil
	})
}

// Bug items

const bugItemColumns = "id, title, description, status, reporter_id, project_id, work_item_id, created_at, updated_at"

func scanBugItem(row scanner) (*tracker.BugItem, error) {
	var (
		b        tracker.BugItem
		status   string
		workItem sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.Title, &b.Description, &status, &b.ReporterID, &b.ProjectID,
		&workItem, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = tracker.BugStatus(status)
	b.WorkItemID = idPtr(workItem)
	return &b, nil
}

// CreateBugItem implements storage.BugItemStore
func (s *Store) CreateBugItem(ctx context.Context, bug *tracker.BugItem) error {
	if err := mustExist(ctx, s.db, "projects", "project", bug.ProjectID); err != nil {
		return err
	}

	now := s.timestamp()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	bug.WorkItemID = nil
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bug_items (project_id, reporter_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, bug.ProjectID, bug.ReporterID, bug.Title, bug.Description, string(bug.Status), now, now).Scan(&bug.ID)
	if err != nil {
		return fmt.Errorf("failed to create bug item: %w", err)
	}
	return nil
}

// GetBugItem implements storage.BugItemStore
func (s *Store) GetBugItem(ctx context.Context, id int64) (*tracker.BugItem, error) {
	b, err := scanBugItem(s.db.QueryRowContext(ctx, "SELECT "+bugItemColumns+" FROM bug_items WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("bug item", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get bug item: %w", err)
	}
	return b, nil
}

// ListBugItems implements storage.BugItemStore
func (s *Store) ListBugItems(ctx context.Context, projectID int64) ([]*tracker.BugItem, error) {
	rows, err := s.read().QueryContext(ctx,
		"SELECT "+bugItemColumns+" FROM bug_items WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bug items: %w", err)
	}
	defer rows.Close()

	bugs := make([]*tracker.BugItem, 0)
	for rows.Next() {
		b, err := scanBugItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bug item: %w", err)
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

// UpdateBugItem implements storage.BugItemStore
func (s *Store) UpdateBugItem(ctx context.Context, bug *tracker.BugItem) error {
	bug.UpdatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"UPDATE bug_items SET title = $1, description = $2, status = $3, updated_at = $4 WHERE id = $5",
		bug.Title, bug.Description, string(bug.Status), bug.UpdatedAt, bug.ID)
	if err != nil {
		return fmt.Errorf("failed to update bug item: %w", err)
	}
	return requireAffected(res, "bug item", bug.ID)
}

// DeleteBugItem implements storage.BugItemStore
func (s *Store) DeleteBugItem(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "bug_items", "bug item", id); err != nil {
			return err
		}
		for _, q := range []string{
			"DELETE FROM comments WHERE parent_kind = 'bug_item' AND parent_id = $1",
			"DELETE FROM bug_items WHERE id = $1",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete bug item: %w", err)
			}
		}
		return nil
	})
}

// LinkBugItem implements storage.BugItemStore
func (s *Store) LinkBugItem(ctx context.Context, workItemID, bugItemID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "work_items", "work item", workItemID); err != nil {
			return err
		}
		return link(ctx, tx, workItemID, bugItemID)
	})
}

// link clears any link held by the work item, then points the bug item at it
func link(ctx context.Context, tx *sql.Tx, workItemID, bugItemID int64) error {
	if err := mustExist(ctx, tx, "bug_items", "bug item", bugItemID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bug_items SET work_item_id = NULL WHERE work_item_id = $1", workItemID); err != nil {
		return fmt.Errorf("failed to clear previous link: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bug_items SET work_item_id = $1 WHERE id = $2", workItemID, bugItemID); err != nil {
		return fmt.Errorf("failed to link bug item: %w", err)
	}
	return nil
}

// UnlinkWorkItem implements storage.BugItemStore
func (s *Store) UnlinkWorkItem(ctx context.Context, workItemID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, "work_items", "work item", workItemID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE bug_items SET work_item_id = NULL WHERE work_item_id = $1", workItemID); err != nil {
			return fmt.Errorf("failed to unlink work item: %w", err)
		}
		return nil
	})
}

// Comments

const commentColumns = "id, text, commenter_id, parent_kind, parent_id, project_id, created_at, updated_at"

func scanComment(row scanner) (*tracker.Comment, error) {
	var (
		c    tracker.Comment
		kind string
	)
	err := row.Scan(&c.ID, &c.Text, &c.CommenterID, &kind, &c.ParentID, &c.ProjectID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ParentKind = tracker.ParentKind(kind)
	return &c, nil
}

// CreateComment implements storage.CommentStore
func (s *Store) CreateComment(ctx context.Context, comment *tracker.Comment) error {
	switch comment.ParentKind {
	case tracker.ParentWorkItem:
		if err := mustExist(ctx, s.db, "work_items", "work item", comment.ParentID); err != nil {
			return err
		}
	case tracker.ParentBugItem:
		if err := mustExist(ctx, s.db, "bug_items", "bug item", comment.ParentID); err != nil {
			return err
		}
	default:
		return tracker.Validation("unknown comment parent kind %q", comment.ParentKind)
	}

	now := s.timestamp()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (text, commenter_id, parent_kind, parent_id, project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, comment.Text, comment.CommenterID, string(comment.ParentKind), comment.ParentID, comment.ProjectID, now, now).
		Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment implements storage.CommentStore
func (s *Store) GetComment(ctx context.Context, id int64) (*tracker.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, "SELECT "+commentColumns+" FROM comments WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, tracker.NotFound("comment", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// ListComments implements storage.CommentStore
func (s *Store) ListComments(ctx context.Context, kind tracker.ParentKind, parentID int64) ([]*tracker.Comment, error) {
	rows, err := s.read().QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE parent_kind = $1 AND parent_id = $2 ORDER BY id",
		string(kind), parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*tracker.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment implements storage.CommentStore
func (s *Store) UpdateComment(ctx context.Context, comment *tracker.Comment) error {
	comment.UpdatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"UPDATE comments SET text = $1, updated_at = $2 WHERE id = $3",
		comment.Text, comment.UpdatedAt, comment.ID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireAffected(res, "comment", comment.ID)
}

// DeleteComment implements storage.CommentStore
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return requireAffected(res, "comment", id)
}
