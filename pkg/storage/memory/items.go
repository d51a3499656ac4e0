package memory

import (
	"context"
	"sort"

	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// Projects

func (s *Store) projectNameTaken(name string, except int64) bool {
	for _, p := range s.projects {
		if p.ID != except && p.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) projectView(p *tracker.Project) *tracker.Project {
	out := *p
	teams := make(map[int64]struct{})
	for sp := range s.sponsors {
		if sp.other == p.ID {
			teams[sp.team] = struct{}{}
		}
	}
	out.TeamIDs = sortedIDs(teams)
	return &out
}

// CreateProject implements storage.ProjectStore
func (s *Store) CreateProject(ctx context.Context, project *tracker.Project, sponsorTeamID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[sponsorTeamID]; !ok {
		return tracker.NotFound("team", sponsorTeamID)
	}
	if s.projectNameTaken(project.Name, 0) {
		return tracker.Conflict("project with name %s already exists", project.Name)
	}

	project.ID = s.nextID()
	project.CreatedAt = s.timestamp()
	project.TeamIDs = []int64{sponsorTeamID}
	stored := *project
	stored.TeamIDs = nil
	s.projects[project.ID] = &stored
	s.sponsors[pair{team: sponsorTeamID, other: project.ID}] = struct{}{}
	return nil
}

// GetProject implements storage.ProjectStore
func (s *Store) GetProject(ctx context.Context, id int64) (*tracker.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, tracker.NotFound("project", id)
	}
	return s.projectView(p), nil
}

// ListProjects implements storage.ProjectStore
func (s *Store) ListProjects(ctx context.Context) ([]*tracker.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[int64]struct{}, len(s.projects))
	for id := range s.projects {
		ids[id] = struct{}{}
	}
	out := make([]*tracker.Project, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		out = append(out, s.projectView(s.projects[id]))
	}
	return out, nil
}

// UpdateProject implements storage.ProjectStore
func (s *Store) UpdateProject(ctx context.Context, project *tracker.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[project.ID]
	if !ok {
		return tracker.NotFound("project", project.ID)
	}
	if s.projectNameTaken(project.Name, project.ID) {
		return tracker.Conflict("project with name %s already exists", project.Name)
	}
	p.Name = project.Name
	p.Description = project.Description
	return nil
}

// DeleteProject implements storage.ProjectStore
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return tracker.NotFound("project", id)
	}

	items := make(map[int64]struct{})
	for wid, w := range s.workItems {
		if w.ProjectID == id {
			items[wid] = struct{}{}
		}
	}

	// bug items linked into the deleted tree are detached below, the rest go
	for bid, b := range s.bugItems {
		if b.ProjectID != id {
			continue
		}
		if wid, linked := s.workItemByBug[bid]; linked {
			if _, ok := items[wid]; ok {
				continue
			}
		}
		s.deleteBugItemLocked(bid)
	}
	s.deleteWorkItemsLocked(items)

	for bid, b := range s.boards {
		if b.ProjectID == id {
			delete(s.boards, bid)
		}
	}
	for p := range s.sponsors {
		if p.other == id {
			delete(s.sponsors, p)
		}
	}
	delete(s.projects, id)
	return nil
}

// Boards

// CreateBoard implements storage.BoardStore
func (s *Store) CreateBoard(ctx context.Context, board *tracker.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[board.ProjectID]; !ok {
		return tracker.NotFound("project", board.ProjectID)
	}
	board.ID = s.nextID()
	board.CreatedAt = s.timestamp()
	stored := *board
	s.boards[board.ID] = &stored
	return nil
}

// GetBoard implements storage.BoardStore
func (s *Store) GetBoard(ctx context.Context, id int64) (*tracker.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[id]
	if !ok {
		return nil, tracker.NotFound("board", id)
	}
	out := *b
	return &out, nil
}

// ListBoards implements storage.BoardStore
func (s *Store) ListBoards(ctx context.Context, projectID int64) ([]*tracker.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tracker.Board, 0)
	for _, b := range s.boards {
		if b.ProjectID == projectID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBoard implements storage.BoardStore
func (s *Store) UpdateBoard(ctx context.Context, board *tracker.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[board.ID]
	if !ok {
		return tracker.NotFound("board", board.ID)
	}
	b.Name = board.Name
	return nil
}

// DeleteBoard implements storage.BoardStore
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[id]; !ok {
		return tracker.NotFound("board", id)
	}
	items := make(map[int64]struct{})
	for wid, w := range s.workItems {
		if w.BoardID == id {
			items[wid] = struct{}{}
		}
	}
	s.deleteWorkItemsLocked(items)
	delete(s.boards, id)
	return nil
}

// Work items

func (s *Store) workItemView(w *tracker.WorkItem) *tracker.WorkItem {
	out := *w
	out.AssigneeID = copyID(w.AssigneeID)
	out.ParentID = copyID(w.ParentID)
	out.BugItemID = nil
	if bid, ok := s.bugByWorkItem[w.ID]; ok {
		out.BugItemID = &bid
	}
	return &out
}

// CreateWorkItem implements storage.WorkItemStore
func (s *Store) CreateWorkItem(ctx context.Context, item *tracker.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[item.BoardID]; !ok {
		return tracker.NotFound("board", item.BoardID)
	}
	if item.ParentID != nil {
		if _, ok := s.workItems[*item.ParentID]; !ok {
			return tracker.NotFound("work item", *item.ParentID)
		}
	}

	now := s.timestamp()
	item.ID = s.nextID()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.BugItemID = nil
	stored := *item
	stored.AssigneeID = copyID(item.AssigneeID)
	stored.ParentID = copyID(item.ParentID)
	s.workItems[item.ID] = &stored
	return nil
}

// GetWorkItem implements storage.WorkItemStore
func (s *Store) GetWorkItem(ctx context.Context, id int64) (*tracker.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workItems[id]
	if !ok {
		return nil, tracker.NotFound("work item", id)
	}
	return s.workItemView(w), nil
}

func (s *Store) listWorkItems(match func(*tracker.WorkItem) bool) []*tracker.WorkItem {
	out := make([]*tracker.WorkItem, 0)
	for _, w := range s.workItems {
		if match(w) {
			out = append(out, s.workItemView(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListWorkItems implements storage.WorkItemStore
func (s *Store) ListWorkItems(ctx context.Context, boardID int64) ([]*tracker.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listWorkItems(func(w *tracker.WorkItem) bool { return w.BoardID == boardID }), nil
}

// ListChildren implements storage.WorkItemStore
func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]*tracker.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listWorkItems(func(w *tracker.WorkItem) bool {
		return w.ParentID != nil && *w.ParentID == parentID
	}), nil
}

// SetParent implements storage.WorkItemStore
func (s *Store) SetParent(ctx context.Context, id int64, parentID *int64) error {
	return s.ApplyWorkItemChange(ctx, id, storage.WorkItemChange{Reparent: true, ParentID: parentID})
}

// ApplyWorkItemChange implements storage.WorkItemStore
func (s *Store) ApplyWorkItemChange(ctx context.Context, id int64, change storage.WorkItemChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workItems[id]
	if !ok {
		return tracker.NotFound("work item", id)
	}
	if change.Reparent && change.ParentID != nil {
		if err := s.checkParentLocked(w, *change.ParentID); err != nil {
			return err
		}
	}
	if change.Relink && change.BugItemID != nil {
		if _, ok := s.bugItems[*change.BugItemID]; !ok {
			return tracker.NotFound("bug item", *change.BugItemID)
		}
	}

	// nothing below can fail
	if change.Reparent {
		w.ParentID = copyID(change.ParentID)
	}
	if change.Relink {
		if change.BugItemID != nil {
			s.linkLocked(id, *change.BugItemID)
		} else {
			s.unlinkWorkItemLocked(id)
		}
	}
	if f := change.Fields; f != nil {
		w.Title = f.Title
		w.Description = f.Description
		w.StoryPoints = f.StoryPoints
		w.Status = f.Status
		w.AssigneeID = copyID(f.AssigneeID)
	}
	w.UpdatedAt = s.timestamp()
	if change.Fields != nil {
		change.Fields.UpdatedAt = w.UpdatedAt
	}
	return nil
}

// checkParentLocked fails unless parentID is on the same board as item and not inside its subtree
func (s *Store) checkParentLocked(item *tracker.WorkItem, parentID int64) error {
	if parentID == item.ID {
		return tracker.CyclicHierarchy(item.ID, parentID)
	}
	parent, ok := s.workItems[parentID]
	if !ok {
		return tracker.NotFound("work item", parentID)
	}
	if parent.BoardID != item.BoardID {
		return tracker.CrossBoardLinkage(parent.ID, item.ID)
	}
	for cur := parent; cur.ParentID != nil; {
		if *cur.ParentID == item.ID {
			return tracker.CyclicHierarchy(item.ID, parentID)
		}
		next, ok := s.workItems[*cur.ParentID]
		if !ok {
			break
		}
		cur = next
	}
	return nil
}

// DeleteWorkItemTree implements storage.WorkItemStore
func (s *Store) DeleteWorkItemTree(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workItems[id]; !ok {
		return tracker.NotFound("work item", id)
	}

	children := make(map[int64][]int64)
	for wid, w := range s.workItems {
		if w.ParentID != nil {
			children[*w.ParentID] = append(children[*w.ParentID], wid)
		}
	}

	subtree := map[int64]struct{}{id: {}}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if _, seen := subtree[c]; seen {
				continue
			}
			subtree[c] = struct{}{}
			queue = append(queue, c)
		}
	}

	s.deleteWorkItemsLocked(subtree)
	return nil
}

// deleteWorkItemsLocked removes the given items, their comments and their bug links.
// Children outside the set keep their ParentID; callers pass closed subtrees.
func (s *Store) deleteWorkItemsLocked(ids map[int64]struct{}) {
	for cid, c := range s.comments {
		if c.ParentKind != tracker.ParentWorkItem {
			continue
		}
		if _, ok := ids[c.ParentID]; ok {
			delete(s.comments, cid)
		}
	}
	for id := range ids {
		s.unlinkWorkItemLocked(id)
		delete(s.workItems, id)
	}
}

// Bug items

func (s *Store) bugItemView(b *tracker.BugItem) *tracker.BugItem {
	out := *b
	out.WorkItemID = nil
	if wid, ok := s.workItemByBug[b.ID]; ok {
		out.WorkItemID = &wid
	}
	return &out
}

// CreateBugItem implements storage.BugItemStore
func (s *Store) CreateBugItem(ctx context.Context, bug *tracker.BugItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[bug.ProjectID]; !ok {
		return tracker.NotFound("project", bug.ProjectID)
	}

	now := s.timestamp()
	bug.ID = s.nextID()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	bug.WorkItemID = nil
	stored := *bug
	s.bugItems[bug.ID] = &stored
	return nil
}

// GetBugItem implements storage.BugItemStore
func (s *Store) GetBugItem(ctx context.Context, id int64) (*tracker.BugItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bugItems[id]
	if !ok {
		return nil, tracker.NotFound("bug item", id)
	}
	return s.bugItemView(b), nil
}

// ListBugItems implements storage.BugItemStore
func (s *Store) ListBugItems(ctx context.Context, projectID int64) ([]*tracker.BugItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tracker.BugItem, 0)
	for _, b := range s.bugItems {
		if b.ProjectID == projectID {
			out = append(out, s.bugItemView(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBugItem implements storage.BugItemStore
func (s *Store) UpdateBugItem(ctx context.Context, bug *tracker.BugItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bugItems[bug.ID]
	if !ok {
		return tracker.NotFound("bug item", bug.ID)
	}
	b.Title = bug.Title
	b.Description = bug.Description
	b.Status = bug.Status
	b.UpdatedAt = s.timestamp()
	bug.UpdatedAt = b.UpdatedAt
	return nil
}

// DeleteBugItem implements storage.BugItemStore
func (s *Store) DeleteBugItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bugItems[id]; !ok {
		return tracker.NotFound("bug item", id)
	}
	s.deleteBugItemLocked(id)
	return nil
}

func (s *Store) deleteBugItemLocked(id int64) {
	for cid, c := range s.comments {
		if c.ParentKind == tracker.ParentBugItem && c.ParentID == id {
			delete(s.comments, cid)
		}
	}
	if wid, ok := s.workItemByBug[id]; ok {
		delete(s.bugByWorkItem, wid)
		delete(s.workItemByBug, id)
	}
	delete(s.bugItems, id)
}

// LinkBugItem implements storage.BugItemStore
func (s *Store) LinkBugItem(ctx context.Context, workItemID, bugItemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workItems[workItemID]; !ok {
		return tracker.NotFound("work item", workItemID)
	}
	if _, ok := s.bugItems[bugItemID]; !ok {
		return tracker.NotFound("bug item", bugItemID)
	}

	s.linkLocked(workItemID, bugItemID)
	return nil
}

// linkLocked clears any link on either side, then links the pair
func (s *Store) linkLocked(workItemID, bugItemID int64) {
	s.unlinkWorkItemLocked(workItemID)
	if prev, ok := s.workItemByBug[bugItemID]; ok {
		delete(s.bugByWorkItem, prev)
		delete(s.workItemByBug, bugItemID)
	}
	s.bugByWorkItem[workItemID] = bugItemID
	s.workItemByBug[bugItemID] = workItemID
}

// UnlinkWorkItem implements storage.BugItemStore
func (s *Store) UnlinkWorkItem(ctx context.Context, workItemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workItems[workItemID]; !ok {
		return tracker.NotFound("work item", workItemID)
	}
	s.unlinkWorkItemLocked(workItemID)
	return nil
}

func (s *Store) unlinkWorkItemLocked(workItemID int64) {
	if bid, ok := s.bugByWorkItem[workItemID]; ok {
		delete(s.workItemByBug, bid)
		delete(s.bugByWorkItem, workItemID)
	}
}

// Comments

// CreateComment implements storage.CommentStore
func (s *Store) CreateComment(ctx context.Context, comment *tracker.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch comment.ParentKind {
	case tracker.ParentWorkItem:
		if _, ok := s.workItems[comment.ParentID]; !ok {
			return tracker.NotFound("work item", comment.ParentID)
		}
	case tracker.ParentBugItem:
		if _, ok := s.bugItems[comment.ParentID]; !ok {
			return tracker.NotFound("bug item", comment.ParentID)
		}
	default:
		return tracker.Validation("unknown comment parent kind %q", comment.ParentKind)
	}

	now := s.timestamp()
	comment.ID = s.nextID()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	stored := *comment
	s.comments[comment.ID] = &stored
	return nil
}

// GetComment implements storage.CommentStore
func (s *Store) GetComment(ctx context.Context, id int64) (*tracker.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, tracker.NotFound("comment", id)
	}
	out := *c
	return &out, nil
}

// ListComments implements storage.CommentStore
func (s *Store) ListComments(ctx context.Context, kind tracker.ParentKind, parentID int64) ([]*tracker.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tracker.Comment, 0)
	for _, c := range s.comments {
		if c.ParentKind == kind && c.ParentID == parentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateComment implements storage.CommentStore
func (s *Store) UpdateComment(ctx context.Context, comment *tracker.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[comment.ID]
	if !ok {
		return tracker.NotFound("comment", comment.ID)
	}
	c.Text = comment.Text
	c.UpdatedAt = s.timestamp()
	comment.UpdatedAt = c.UpdatedAt
	return nil
}

// DeleteComment implements storage.CommentStore
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return tracker.NotFound("comment", id)
	}
	delete(s.comments, id)
	return nil
}
