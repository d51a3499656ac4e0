package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/httputil"
	"github.com/platinummonkey/plank/pkg/tracker"
)

// statusFor maps a tracker error kind to an HTTP status
func statusFor(kind tracker.Kind) int {
	switch kind {
	case tracker.KindNotFound:
		return http.StatusNotFound
	case tracker.KindForbidden:
		return http.StatusForbidden
	case tracker.KindValidation:
		return http.StatusBadRequest
	case tracker.KindConflict, tracker.KindCrossBoardLinkage, tracker.KindCyclicHierarchy, tracker.KindDuplicateMembership:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts err into a JSON error reply. Unknown errors are logged
// and reported as 500 without details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := tracker.KindOf(err); kind != 0 {
		httputil.WriteErrorKind(w, statusFor(kind), kind.String(), err.Error())
		return
	}
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		httputil.WriteUnauthorized(w, err.Error())
	default:
		s.logger.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"error": err.Error(),
		}).Error("Request failed")
		httputil.WriteInternalError(w)
	}
}
