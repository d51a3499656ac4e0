package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/tracker"
)

type commentRequest struct {
	Text string `json:"text"`
}

// createComment handles POST /work-items/{id}/comments and /bug-items/{id}/comments
func (s *Server) createComment(kind tracker.ParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, parentID, ok := s.begin(w, r)
		if !ok {
			return
		}
		var req commentRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
		comment, err := s.svc.CreateComment(r.Context(), caller, kind, parentID, req.Text)
		s.reply(w, r, http.StatusCreated, comment, err)
	}
}

// listComments handles GET /work-items/{id}/comments and /bug-items/{id}/comments
func (s *Server) listComments(kind tracker.ParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, parentID, ok := s.begin(w, r)
		if !ok {
			return
		}
		comments, err := s.svc.ListComments(r.Context(), caller, kind, parentID)
		s.reply(w, r, http.StatusOK, comments, err)
	}
}

// updateComment handles PATCH /comments/{id}
func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	comment, err := s.svc.UpdateComment(r.Context(), caller, id, req.Text)
	s.reply(w, r, http.StatusOK, comment, err)
}

// deleteComment handles DELETE /comments/{id}
func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteComment(r.Context(), caller, id))
}
