package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/storage"
)

// ConnectionManager holds the primary connection and optional read replicas
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32 // round-robin cursor
	mu       sync.RWMutex
	config   ConnectionConfig
	logger   *logrus.Logger
}

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ConnectionConfigFrom derives pool settings from the storage config
func ConnectionConfigFrom(cfg storage.Config) ConnectionConfig {
	return ConnectionConfig{
		PrimaryURL:  cfg.PostgresURL,
		ReplicaURLs: ParseReplicaURLs(cfg.PostgresReplicaURLs),
		MaxConns:    cfg.PostgresMaxConns,
		MinConns:    cfg.PostgresMinConns,
		Timeout:     cfg.PostgresTimeout,
		MaxLifetime: time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}
}

func (c ConnectionConfig) open(url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(c.MinConns)
	db.SetConnMaxLifetime(c.MaxLifetime)
	db.SetConnMaxIdleTime(c.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (c ConnectionConfig) replicaMaxConns() int {
	n := c.MaxConns / 2
	if n < 2 {
		n = 2
	}
	return n
}

// NewConnectionManager connects to the primary and every reachable replica.
// An unreachable replica is logged and skipped.
func NewConnectionManager(config ConnectionConfig, logger *logrus.Logger) (*ConnectionManager, error) {
	if logger == nil {
		logger = logrus.New()
	}

	primary, err := config.open(config.PrimaryURL, config.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary: %w", err)
	}

	cm := &ConnectionManager{
		primary:  primary,
		replicas: make([]*sql.DB, 0, len(config.ReplicaURLs)),
		config:   config,
		logger:   logger,
	}

	for i, url := range config.ReplicaURLs {
		replica, err := config.open(url, config.replicaMaxConns())
		if err != nil {
			logger.WithError(err).Warnf("Skipping replica %d", i)
			continue
		}
		cm.replicas = append(cm.replicas, replica)
	}

	logger.WithField("replicas", len(cm.replicas)).Info("Database connection manager initialized")
	return cm, nil
}

// Primary returns the primary database connection
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a read replica using round-robin selection, or the primary
// when no replica is available
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	index := atomic.AddUint32(&cm.current, 1)
	return cm.replicas[int(index%uint32(len(cm.replicas)))]
}

func (cm *ConnectionManager) snapshot() []*sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	replicas := make([]*sql.DB, len(cm.replicas))
	copy(replicas, cm.replicas)
	return replicas
}

// HealthCheck pings the primary and replicas. Losing every replica is
// reported; losing some of them is not.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	replicas := cm.snapshot()
	var unhealthy []string
	for i, replica := range replicas {
		if err := replica.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}

	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// RemoveUnhealthyReplicas closes and drops replicas that fail a ping
func (cm *ConnectionManager) RemoveUnhealthyReplicas(ctx context.Context) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	healthy := make([]*sql.DB, 0, len(cm.replicas))
	removed := 0
	for _, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			replica.Close()
			removed++
			continue
		}
		healthy = append(healthy, replica)
	}
	cm.replicas = healthy
	return removed
}

// StartHealthCheckRoutine prunes unhealthy replicas every interval until ctx is done.
// onRemoved, if set, receives the number of replicas dropped by each pass.
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration, onRemoved func(int)) {
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer func() {
			if r := recover(); r != nil {
				cm.logger.WithField("stack", string(debug.Stack())).Errorf("Replica health check panicked: %v", r)
			}
		}()

		for {
			select {
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				removed := cm.RemoveUnhealthyReplicas(checkCtx)
				cancel()
				if removed > 0 {
					cm.logger.Warnf("Removed %d unhealthy replicas", removed)
					if onRemoved != nil {
						onRemoved(removed)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []string

	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("primary: %v", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("replica-%d: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("connection close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseReplicaURLs parses a comma-separated list of replica URLs
func ParseReplicaURLs(replicaURLs string) []string {
	if replicaURLs == "" {
		return nil
	}

	var result []string
	for _, url := range strings.Split(replicaURLs, ",") {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
