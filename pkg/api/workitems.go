package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/service"
	"github.com/platinummonkey/plank/pkg/tracker"
)

type workItemRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	StoryPoints int                    `json:"story_points"`
	Status      tracker.WorkItemStatus `json:"status"`
	AssigneeID  *int64                 `json:"assignee_id"`
	ParentID    *int64                 `json:"parent_id"`
}

// updateWorkItemRequest is a partial update. Absent fields are left alone;
// the boolean flags clear the matching reference.
type updateWorkItemRequest struct {
	Title       *string                 `json:"title"`
	Description *string                 `json:"description"`
	StoryPoints *int                    `json:"story_points"`
	Status      *tracker.WorkItemStatus `json:"status"`
	AssigneeID  *int64                  `json:"assignee_id"`
	Unassign    bool                    `json:"unassign"`
	ParentID    *int64                  `json:"parent_id"`
	MoveToRoot  bool                    `json:"move_to_root"`
	BugItemID   *int64                  `json:"bug_item_id"`
	UnlinkBug   bool                    `json:"unlink_bug"`
}

// createWorkItem handles POST /boards/{id}/work-items
func (s *Server) createWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, boardID, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req workItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	item, err := s.svc.CreateWorkItem(r.Context(), caller, boardID, service.NewWorkItem{
		Title:       req.Title,
		Description: req.Description,
		StoryPoints: req.StoryPoints,
		Status:      req.Status,
		AssigneeID:  req.AssigneeID,
		ParentID:    req.ParentID,
	})
	s.reply(w, r, http.StatusCreated, item, err)
}

// listWorkItems handles GET /boards/{id}/work-items
func (s *Server) listWorkItems(w http.ResponseWriter, r *http.Request) {
	caller, boardID, ok := s.begin(w, r)
	if !ok {
		return
	}
	items, err := s.svc.ListWorkItems(r.Context(), caller, boardID)
	s.reply(w, r, http.StatusOK, items, err)
}

// getWorkItem handles GET /work-items/{id}
func (s *Server) getWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	item, err := s.svc.GetWorkItem(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, item, err)
}

// listChildren handles GET /work-items/{id}/children
func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	items, err := s.svc.ListChildren(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, items, err)
}

// updateWorkItem handles PATCH /work-items/{id}
func (s *Server) updateWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateWorkItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	item, err := s.svc.UpdateWorkItem(r.Context(), caller, id, service.WorkItemPatch{
		Title:       req.Title,
		Description: req.Description,
		StoryPoints: req.StoryPoints,
		Status:      req.Status,
		AssigneeID:  req.AssigneeID,
		Unassign:    req.Unassign,
		ParentID:    req.ParentID,
		MoveToRoot:  req.MoveToRoot,
		BugItemID:   req.BugItemID,
		UnlinkBug:   req.UnlinkBug,
	})
	s.reply(w, r, http.StatusOK, item, err)
}

// deleteWorkItem handles DELETE /work-items/{id}
func (s *Server) deleteWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteWorkItem(r.Context(), caller, id))
}
