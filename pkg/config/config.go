package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/plank/pkg/observability"
	"github.com/platinummonkey/plank/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// AuthConfig controls bearer authentication
type AuthConfig struct {
	TokenCacheSize int           `yaml:"token_cache_size"`
	TokenCacheTTL  time.Duration `yaml:"token_cache_ttl"`

	// DefaultTokenTTL applies to tokens created without an expiry; zero means never
	DefaultTokenTTL time.Duration `yaml:"default_token_ttl"`

	// OIDC ID tokens are accepted as bearer credentials when an issuer is set
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`
}

// RateLimitConfig controls request throttling
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Distributed shares limits through redis; requires storage.redis_url
	Distributed       bool `yaml:"distributed"`
	UserRequests      int  `yaml:"user_requests_per_minute"`
	UserBurst         int  `yaml:"user_burst"`
	AnonymousRequests int  `yaml:"anonymous_requests_per_minute"`
	AnonymousBurst    int  `yaml:"anonymous_burst"`
}

// JobsConfig schedules background maintenance
type JobsConfig struct {
	Enabled              bool          `yaml:"enabled"`
	TokenCleanupSchedule string        `yaml:"token_cleanup_schedule"`
	ReplicaCheckInterval time.Duration `yaml:"replica_check_interval"`
}

// AuditConfig selects where audit events go. Events always reach the log;
// Dir adds a rotated audit.log JSON lines file in that directory.
type AuditConfig struct {
	Dir       string `yaml:"dir"`
	Rotate    bool   `yaml:"rotate"`
	MaxSizeMB int64  `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	Async     bool   `yaml:"async"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
	// OTelSampleRatio is the share of root traces kept, 0 or 1 keeps all
	OTelSampleRatio float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			TokenCacheSize: 1000,
			TokenCacheTTL:  time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			UserRequests:      1000,
			UserBurst:         50,
			AnonymousRequests: 100,
			AnonymousBurst:    10,
		},
		Jobs: JobsConfig{
			Enabled:              true,
			TokenCleanupSchedule: "@every 1h",
			ReplicaCheckInterval: 30 * time.Second,
		},
		Audit: AuditConfig{
			MaxSizeMB: 100,
			MaxFiles:  10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "plank",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by PLANK_CONFIG_FILE if set, then PLANK_* environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("PLANK_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path; absent keys keep their value
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("PLANK_HOST", s.Host)
	s.Port = getEnv("PLANK_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("PLANK_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PLANK_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PLANK_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PLANK_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("PLANK_MAX_BODY_BYTES", s.MaxBodyBytes)

	st := &c.Storage
	st.Type = getEnv("PLANK_STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("PLANK_POSTGRES_URL", st.PostgresURL)
	st.PostgresReplicaURLs = getEnv("PLANK_POSTGRES_REPLICA_URLS", st.PostgresReplicaURLs)
	st.PostgresMaxConns = getEnvInt("PLANK_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("PLANK_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("PLANK_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.RedisURL = getEnv("PLANK_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("PLANK_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("PLANK_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("PLANK_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("PLANK_REDIS_POOL_SIZE", st.RedisPoolSize)

	a := &c.Auth
	a.TokenCacheSize = getEnvInt("PLANK_TOKEN_CACHE_SIZE", a.TokenCacheSize)
	a.TokenCacheTTL = getEnvDuration("PLANK_TOKEN_CACHE_TTL", a.TokenCacheTTL)
	a.DefaultTokenTTL = getEnvDuration("PLANK_DEFAULT_TOKEN_TTL", a.DefaultTokenTTL)
	a.OIDCIssuerURL = getEnv("PLANK_OIDC_ISSUER_URL", a.OIDCIssuerURL)
	a.OIDCClientID = getEnv("PLANK_OIDC_CLIENT_ID", a.OIDCClientID)

	r := &c.RateLimit
	r.Enabled = getEnvBool("PLANK_RATE_LIMIT_ENABLED", r.Enabled)
	r.Distributed = getEnvBool("PLANK_RATE_LIMIT_DISTRIBUTED", r.Distributed)
	r.UserRequests = getEnvInt("PLANK_RATE_LIMIT_USER_RPM", r.UserRequests)
	r.UserBurst = getEnvInt("PLANK_RATE_LIMIT_USER_BURST", r.UserBurst)
	r.AnonymousRequests = getEnvInt("PLANK_RATE_LIMIT_ANON_RPM", r.AnonymousRequests)
	r.AnonymousBurst = getEnvInt("PLANK_RATE_LIMIT_ANON_BURST", r.AnonymousBurst)

	j := &c.Jobs
	j.Enabled = getEnvBool("PLANK_JOBS_ENABLED", j.Enabled)
	j.TokenCleanupSchedule = getEnv("PLANK_TOKEN_CLEANUP_SCHEDULE", j.TokenCleanupSchedule)
	j.ReplicaCheckInterval = getEnvDuration("PLANK_REPLICA_CHECK_INTERVAL", j.ReplicaCheckInterval)

	au := &c.Audit
	au.Dir = getEnv("PLANK_AUDIT_DIR", au.Dir)
	au.Rotate = getEnvBool("PLANK_AUDIT_ROTATE", au.Rotate)
	au.MaxSizeMB = getEnvInt64("PLANK_AUDIT_MAX_SIZE_MB", au.MaxSizeMB)
	au.MaxFiles = getEnvInt("PLANK_AUDIT_MAX_FILES", au.MaxFiles)
	au.Async = getEnvBool("PLANK_AUDIT_ASYNC", au.Async)

	o := &c.Observability
	o.LogLevel = getEnv("PLANK_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("PLANK_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("PLANK_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PLANK_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PLANK_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PLANK_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PLANK_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("PLANK_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
		if c.Storage.PostgresMinConns > c.Storage.PostgresMaxConns {
			return fmt.Errorf("postgres min connections (%d) exceeds max (%d)", c.Storage.PostgresMinConns, c.Storage.PostgresMaxConns)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	if c.Auth.TokenCacheSize < 0 {
		return fmt.Errorf("token cache size must not be negative")
	}
	if (c.Auth.OIDCIssuerURL == "") != (c.Auth.OIDCClientID == "") {
		return fmt.Errorf("OIDC issuer URL and client ID must be set together")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.UserRequests <= 0 || c.RateLimit.AnonymousRequests <= 0 {
			return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for distributed rate limiting")
		}
	}

	if c.Jobs.Enabled && c.Jobs.TokenCleanupSchedule == "" {
		return fmt.Errorf("token cleanup schedule is required when jobs are enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %g", r)
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
