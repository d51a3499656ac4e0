package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{name: "valid JSON", body: `{"name": "test"}`},
		{name: "invalid JSON", body: `{invalid}`, expectError: true},
		{name: "unknown field", body: `{"name": "test", "owner": 1}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest struct {
				Name string `json:"name"`
			}

			err := ParseJSON(req, &dest)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test", dest.Name)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`nope`))
	w := httptest.NewRecorder()
	var dest map[string]string

	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantErr bool
	}{
		{name: "valid", vars: map[string]string{"id": "42"}, want: 42},
		{name: "missing", vars: map[string]string{}, wantErr: true},
		{name: "not a number", vars: map[string]string{"id": "abc"}, wantErr: true},
		{name: "zero", vars: map[string]string{"id": "0"}, wantErr: true},
		{name: "negative", vars: map[string]string{"id": "-3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)
			got, err := ParsePathInt64(req, "id")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePathInt64OrError(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "x"})
	w := httptest.NewRecorder()

	_, ok := ParsePathInt64OrError(w, req, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?kind=bug_item", nil)
	assert.Equal(t, "bug_item", ParseQueryString(req, "kind", "work_item"))
	assert.Equal(t, "fallback", ParseQueryString(req, "missing", "fallback"))
}
