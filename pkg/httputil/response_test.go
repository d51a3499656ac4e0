package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plank/pkg/contextkeys"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]int{"id": 7}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
}

func TestWriteErrorKind(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorKind(w, http.StatusConflict, "cyclic_hierarchy", "nope")

	assert.Equal(t, http.StatusConflict, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "cyclic_hierarchy", body.Kind)
	assert.Equal(t, "nope", body.Error)
}

func TestWriteInternalError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalError(w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		handler.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Chain(RequestIDMiddleware, LoggingMiddleware(logger), RecoveryMiddleware(logger))(panicky)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := buf.String()
	assert.Contains(t, out, "Recovered from panic")
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"path":"/api/v1/projects"`)
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
