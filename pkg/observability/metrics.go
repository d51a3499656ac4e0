package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen         prometheus.Gauge
	DBConnectionsInUse        prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Job metrics
	JobRunsTotal         *prometheus.CounterVec
	TokensExpiredTotal   prometheus.Counter
	ReplicasRemovedTotal prometheus.Counter
}

// NewMetrics creates the plank metrics and registers them, together with
// any extra collectors such as the access decision counter
func NewMetrics(registry *prometheus.Registry, extra ...prometheus.Collector) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plank_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plank_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plank_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plank_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plank_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plank_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plank_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBConnectionsWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plank_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),
		DBConnectionsWaitDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plank_db_connections_wait_duration_seconds",
			Help: "Total time spent waiting for connections",
		}),

		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plank_job_runs_total",
				Help: "Scheduled job runs by job and outcome",
			},
			[]string{"job", "status"},
		),
		TokensExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plank_tokens_expired_total",
			Help: "API tokens deleted after expiry",
		}),
		ReplicasRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plank_db_replicas_removed_total",
			Help: "Read replicas dropped after failing a health check",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.JobRunsTotal,
		m.TokensExpiredTotal,
		m.ReplicasRemovedTotal,
	)
	for _, c := range extra {
		if c != nil {
			registry.MustRegister(c)
		}
	}

	return m
}

// RecordDBStats copies pool statistics into the database gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched route template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Register it with router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r)

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
