package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/plank/pkg/httputil"
)

// Pinger is anything whose reachability can be checked, such as storage.Store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	storage Pinger
	redis   *redis.Client
	version string
}

// NewHealthChecker creates a new health checker. redis may be nil.
func NewHealthChecker(storage Pinger, redis *redis.Client, version string) *HealthChecker {
	return &HealthChecker{
		storage: storage,
		redis:   redis,
		version: version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness checks dependencies; 503 when storage is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}

// Check pings every dependency concurrently. Storage failing makes the
// service unhealthy; redis only backs rate limiting, so it degrades.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus),
	}

	var mu sync.Mutex
	record := func(name string, dep DependencyStatus) {
		mu.Lock()
		defer mu.Unlock()
		status.Dependencies[name] = dep
	}

	var g errgroup.Group
	if h.storage != nil {
		g.Go(func() error {
			record("storage", ping(ctx, h.storage.Ping))
			return nil
		})
	}
	if h.redis != nil {
		g.Go(func() error {
			record("redis", ping(ctx, func(ctx context.Context) error {
				return h.redis.Ping(ctx).Err()
			}))
			return nil
		})
	}
	g.Wait()

	if dep, ok := status.Dependencies["storage"]; ok && dep.Status == StatusUnhealthy {
		status.Status = StatusUnhealthy
	} else if dep, ok := status.Dependencies["redis"]; ok && dep.Status == StatusUnhealthy {
		status.Status = StatusDegraded
	}
	return status
}

func ping(ctx context.Context, fn func(context.Context) error) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: start,
	}

	err := fn(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/health", checker.Readiness).Methods(http.MethodGet)
	router.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
}
