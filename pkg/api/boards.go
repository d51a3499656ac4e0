package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
)

type boardRequest struct {
	Name string `json:"name"`
}

type updateBoardRequest struct {
	Name *string `json:"name"`
}

// createBoard handles POST /projects/{id}/boards
func (s *Server) createBoard(w http.ResponseWriter, r *http.Request) {
	caller, projectID, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req boardRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	board, err := s.svc.CreateBoard(r.Context(), caller, projectID, req.Name)
	s.reply(w, r, http.StatusCreated, board, err)
}

// listBoards handles GET /projects/{id}/boards
func (s *Server) listBoards(w http.ResponseWriter, r *http.Request) {
	caller, projectID, ok := s.begin(w, r)
	if !ok {
		return
	}
	boards, err := s.svc.ListBoards(r.Context(), caller, projectID)
	s.reply(w, r, http.StatusOK, boards, err)
}

// getBoard handles GET /boards/{id}
func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	board, err := s.svc.GetBoard(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, board, err)
}

// updateBoard handles PATCH /boards/{id}
func (s *Server) updateBoard(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateBoardRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	board, err := s.svc.UpdateBoard(r.Context(), caller, id, req.Name)
	s.reply(w, r, http.StatusOK, board, err)
}

// deleteBoard handles DELETE /boards/{id}
func (s *Server) deleteBoard(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteBoard(r.Context(), caller, id))
}
