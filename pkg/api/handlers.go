package api

import (
	"net/http"

	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// caller resolves the authenticated user or writes the error reply
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*tracker.User, bool) {
	user, err := s.resolver.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return user, true
}

// begin resolves the caller and the {id} path parameter shared by most routes
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (*tracker.User, int64, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, 0, false
	}
	user, ok := s.caller(w, r)
	if !ok {
		return nil, 0, false
	}
	return user, id, true
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, data interface{}, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := httputil.WriteJSON(w, status, data); err != nil {
		s.logger.WithError(err).Warn("Failed to write response")
	}
}

func (s *Server) replyEmpty(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
