package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/contextkeys"
)

type fakeAuthenticator struct {
	credentials map[string]int64
	err         error
	seen        []string
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, credential string) (*auth.AuthContext, error) {
	f.seen = append(f.seen, credential)
	if f.err != nil {
		return nil, f.err
	}
	userID, ok := f.credentials[credential]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.AuthContext{UserID: userID, Method: auth.MethodToken}, nil
}

func TestAuthMiddleware_Handler(t *testing.T) {
	authenticator := &fakeAuthenticator{credentials: map[string]int64{"good": 42}}

	tests := []struct {
		name       string
		header     string
		optional   bool
		wantStatus int
		wantUser   int64
	}{
		{name: "valid bearer", header: "Bearer good", wantStatus: http.StatusOK, wantUser: 42},
		{name: "scheme is case insensitive", header: "bearer good", wantStatus: http.StatusOK, wantUser: 42},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "missing header when optional", optional: true, wantStatus: http.StatusOK},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "empty credential", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "unknown credential", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "unknown credential when optional", header: "Bearer bad", optional: true, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(authenticator, nil)
			if tt.optional {
				m.Optional()
			}

			var gotUser int64
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if authCtx, ok := auth.FromContext(r.Context()); ok {
					gotUser = authCtx.UserID
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthMiddleware_SetsUserID(t *testing.T) {
	authenticator := &fakeAuthenticator{credentials: map[string]int64{"good": 42}}

	var userID string
	handler := NewAuthMiddleware(authenticator, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = r.Context().Value(contextkeys.UserIDKey).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  good ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "42", userID)
	assert.Equal(t, []string{"good"}, authenticator.seen)
}

func TestAuthMiddleware_BackendFailure(t *testing.T) {
	authenticator := &fakeAuthenticator{err: errors.New("connection refused")}

	called := false
	handler := NewAuthMiddleware(authenticator, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
