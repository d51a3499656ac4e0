package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	healthyStore = pingFunc(func(ctx context.Context) error { return nil })
	brokenStore  = pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		_, client := newRedis(t)
		status := NewHealthChecker(healthyStore, client, "1.2.3").Check(context.Background())

		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, "1.2.3", status.Version)
		assert.Equal(t, StatusHealthy, status.Dependencies["storage"].Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	})

	t.Run("storage down is unhealthy", func(t *testing.T) {
		status := NewHealthChecker(brokenStore, nil, "").Check(context.Background())

		assert.Equal(t, StatusUnhealthy, status.Status)
		assert.Equal(t, "connection refused", status.Dependencies["storage"].Message)
		assert.NotContains(t, status.Dependencies, "redis")
	})

	t.Run("redis down is degraded", func(t *testing.T) {
		mr, client := newRedis(t)
		mr.Close()
		status := NewHealthChecker(healthyStore, client, "").Check(context.Background())

		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})
}

func TestHealthRoutes(t *testing.T) {
	router := mux.NewRouter()
	RegisterHealthRoutes(router, NewHealthChecker(brokenStore, nil, ""))

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/health", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["status"])
		})
	}
}
