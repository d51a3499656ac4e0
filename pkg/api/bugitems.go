package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/service"
	"github.com/platinummonkey/plank/pkg/tracker"
)

type bugItemRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      tracker.BugStatus `json:"status"`
}

type updateBugItemRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *tracker.BugStatus `json:"status"`
}

// createBugItem handles POST /projects/{id}/bug-items
func (s *Server) createBugItem(w http.ResponseWriter, r *http.Request) {
	caller, projectID, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req bugItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	bug, err := s.svc.CreateBugItem(r.Context(), caller, projectID, req.Title, req.Description, req.Status)
	s.reply(w, r, http.StatusCreated, bug, err)
}

// listBugItems handles GET /projects/{id}/bug-items
func (s *Server) listBugItems(w http.ResponseWriter, r *http.Request) {
	caller, projectID, ok := s.begin(w, r)
	if !ok {
		return
	}
	bugs, err := s.svc.ListBugItems(r.Context(), caller, projectID)
	s.reply(w, r, http.StatusOK, bugs, err)
}

// getBugItem handles GET /bug-items/{id}
func (s *Server) getBugItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	bug, err := s.svc.GetBugItem(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, bug, err)
}

// updateBugItem handles PATCH /bug-items/{id}
func (s *Server) updateBugItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateBugItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	bug, err := s.svc.UpdateBugItem(r.Context(), caller, id, service.BugItemPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	s.reply(w, r, http.StatusOK, bug, err)
}

// deleteBugItem handles DELETE /bug-items/{id}
func (s *Server) deleteBugItem(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteBugItem(r.Context(), caller, id))
}
