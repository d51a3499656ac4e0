package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/service"
)

type projectRequest struct {
	TeamID      int64  `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// createProject handles POST /projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	project, err := s.svc.CreateProject(r.Context(), caller, req.TeamID, req.Name, req.Description)
	s.reply(w, r, http.StatusCreated, project, err)
}

// listProjects handles GET /projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projects, err := s.svc.ListProjects(r.Context(), caller)
	s.reply(w, r, http.StatusOK, projects, err)
}

// getProject handles GET /projects/{id}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	project, err := s.svc.GetProject(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, project, err)
}

// updateProject handles PATCH /projects/{id}
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	project, err := s.svc.UpdateProject(r.Context(), caller, id, service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	s.reply(w, r, http.StatusOK, project, err)
}

// deleteProject handles DELETE /projects/{id}
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteProject(r.Context(), caller, id))
}

// listProjectUsers handles GET /projects/{id}/users
func (s *Server) listProjectUsers(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	users, err := s.svc.ListProjectUsers(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, users, err)
}

// sponsorProject handles PUT /projects/{id}/sponsors/{team_id}
func (s *Server) sponsorProject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return
	}
	project, err := s.svc.SponsorProject(r.Context(), caller, id, teamID)
	s.reply(w, r, http.StatusOK, project, err)
}

// unsponsorProject handles DELETE /projects/{id}/sponsors/{team_id}
func (s *Server) unsponsorProject(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return
	}
	project, err := s.svc.UnsponsorProject(r.Context(), caller, id, teamID)
	s.reply(w, r, http.StatusOK, project, err)
}
