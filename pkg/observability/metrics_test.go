package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersExtras(t *testing.T) {
	registry := prometheus.NewRegistry()
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "plank_extra_total", Help: "extra"})

	m := NewMetrics(registry, extra, nil)
	require.NotNil(t, m)
	extra.Inc()

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "plank_extra_total")
}

func TestRecordDBStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordDBStats(sql.DBStats{
		OpenConnections: 5,
		InUse:           3,
		Idle:            2,
		WaitCount:       7,
		WaitDuration:    1500 * time.Millisecond,
	})

	assert.Equal(t, float64(5), testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsInUse))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnectionsIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.DBConnectionsWaitCount))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.DBConnectionsWaitDuration))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+id, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/projects/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.TokensExpiredTotal.Add(2)

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "plank_tokens_expired_total 2"))
}
