package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plank/pkg/httputil"
)

type teamRequest struct {
	Name string `json:"name"`
}

type updateTeamRequest struct {
	Name *string `json:"name"`
}

type memberRequest struct {
	Email string `json:"email"`
}

// createTeam handles POST /teams
func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req teamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	team, err := s.svc.CreateTeam(r.Context(), caller, req.Name)
	s.reply(w, r, http.StatusCreated, team, err)
}

// listTeams handles GET /teams
func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	teams, err := s.svc.ListTeams(r.Context(), caller)
	s.reply(w, r, http.StatusOK, teams, err)
}

// getTeam handles GET /teams/{id}
func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	team, err := s.svc.GetTeam(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, team, err)
}

// updateTeam handles PATCH /teams/{id}
func (s *Server) updateTeam(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	team, err := s.svc.UpdateTeam(r.Context(), caller, id, req.Name)
	s.reply(w, r, http.StatusOK, team, err)
}

// deleteTeam handles DELETE /teams/{id}
func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.DeleteTeam(r.Context(), caller, id))
}

// addMember handles POST /teams/{id}/members
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	team, err := s.svc.AddMember(r.Context(), caller, id, req.Email)
	s.reply(w, r, http.StatusOK, team, err)
}

// removeMember handles DELETE /teams/{id}/members/{email}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	team, err := s.svc.RemoveMember(r.Context(), caller, id, mux.Vars(r)["email"])
	s.reply(w, r, http.StatusOK, team, err)
}
