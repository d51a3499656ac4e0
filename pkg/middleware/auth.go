package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/contextkeys"
	"github.com/platinummonkey/plank/pkg/httputil"
)

// AuthMiddleware verifies bearer credentials and attaches the caller to the request
type AuthMiddleware struct {
	authenticator auth.Authenticator
	logger        *logrus.Logger
	optional      bool // If true, requests without a header pass through unauthenticated
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator auth.Authenticator, logger *logrus.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// Optional lets requests without an Authorization header through
func (m *AuthMiddleware) Optional() *AuthMiddleware {
	m.optional = true
	return m
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		credential, ok := bearerCredential(authHeader)
		if !ok {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.authenticator.Authenticate(r.Context(), credential)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			m.logger.WithError(err).Error("Authentication backend failure")
			httputil.WriteInternalError(w)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, formatID(authCtx.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerCredential extracts the credential from "Bearer <credential>"
func bearerCredential(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	credential := strings.TrimSpace(parts[1])
	return credential, credential != ""
}
