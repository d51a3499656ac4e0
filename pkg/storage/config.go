package storage

import "time"

const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory" or "postgres"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs string        `yaml:"postgres_replica_urls"` // comma separated
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// Redis config (rate limiting, readiness)
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
	}
}
