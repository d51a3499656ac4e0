package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/service"
)

type registerUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type tokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// createdToken carries the plaintext token alongside its metadata. The
// plaintext is only ever returned here.
type createdToken struct {
	*auth.APIToken
	Token string `json:"token"`
}

// registerUser handles POST /users
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req registerUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := s.svc.RegisterUser(r.Context(), caller, service.NewUser{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsAdmin:   req.IsAdmin,
	})
	s.reply(w, r, http.StatusCreated, user, err)
}

// getCurrentUser handles GET /users/me
func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	user, err := s.svc.GetUser(r.Context(), caller, caller.ID)
	s.reply(w, r, http.StatusOK, user, err)
}

// getUser handles GET /users/{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	user, err := s.svc.GetUser(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, user, err)
}

// updateUser handles PATCH /users/{id}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := s.svc.UpdateUser(r.Context(), caller, id, req.FirstName, req.LastName)
	s.reply(w, r, http.StatusOK, user, err)
}

// listTeamsForUser handles GET /users/{id}/teams
func (s *Server) listTeamsForUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	teams, err := s.svc.ListTeamsForUser(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, teams, err)
}

// listProjectsForUser handles GET /users/{id}/projects
func (s *Server) listProjectsForUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	projects, err := s.svc.ListProjectsForUser(r.Context(), caller, id)
	s.reply(w, r, http.StatusOK, projects, err)
}

func (s *Server) expiry(req tokenRequest) *time.Time {
	if req.ExpiresAt != nil || s.tokenTTL <= 0 {
		return req.ExpiresAt
	}
	expires := time.Now().Add(s.tokenTTL)
	return &expires
}

// issueToken handles POST /users/{id}/tokens
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	var req tokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	token, plaintext, err := s.svc.IssueToken(r.Context(), caller, id, req.Name, s.expiry(req))
	s.reply(w, r, http.StatusCreated, createdToken{APIToken: token, Token: plaintext}, err)
}

// createToken handles POST /tokens
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req tokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	token, plaintext, err := s.svc.CreateToken(r.Context(), caller, req.Name, s.expiry(req))
	s.reply(w, r, http.StatusCreated, createdToken{APIToken: token, Token: plaintext}, err)
}

// listTokens handles GET /tokens
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	tokens, err := s.svc.ListTokens(r.Context(), caller)
	s.reply(w, r, http.StatusOK, tokens, err)
}

// revokeToken handles DELETE /tokens/{id}
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := s.begin(w, r)
	if !ok {
		return
	}
	s.replyEmpty(w, r, s.svc.RevokeToken(r.Context(), caller, id))
}
