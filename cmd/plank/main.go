package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/plank/pkg/access"
	"github.com/platinummonkey/plank/pkg/api"
	"github.com/platinummonkey/plank/pkg/audit"
	"github.com/platinummonkey/plank/pkg/auth"
	"github.com/platinummonkey/plank/pkg/config"
	"github.com/platinummonkey/plank/pkg/jobs"
	"github.com/platinummonkey/plank/pkg/middleware"
	"github.com/platinummonkey/plank/pkg/observability"
	"github.com/platinummonkey/plank/pkg/service"
	"github.com/platinummonkey/plank/pkg/storage"
	"github.com/platinummonkey/plank/pkg/storage/memory"
	"github.com/platinummonkey/plank/pkg/storage/postgres"
)

var bootstrapAdmin = flag.String("bootstrap-admin", "", "Create an administrator with this email and print an API token for it")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.Logrus()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
		Attributes:     []attribute.KeyValue{attribute.String("plank.storage.type", cfg.Storage.Type)},
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	decisions := access.NewDecisionsCounter()
	metrics := observability.NewMetrics(registry, decisions)

	store, cm, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
	}

	auditLogger, err := newAuditLogger(cfg.Audit, log)
	if err != nil {
		return err
	}

	var cache *auth.TokenCache
	if cfg.Auth.TokenCacheSize > 0 {
		cache = auth.NewTokenCache(cfg.Auth.TokenCacheSize, cfg.Auth.TokenCacheTTL)
	}
	tokens := auth.NewTokenManager(store, cache)

	var authenticator auth.Authenticator = auth.NewTokenAuthenticator(tokens)
	if cfg.Auth.OIDCIssuerURL != "" {
		oidc, err := auth.NewOIDCAuthenticator(ctx, auth.OIDCConfig{
			IssuerURL: cfg.Auth.OIDCIssuerURL,
			ClientID:  cfg.Auth.OIDCClientID,
		}, store)
		if err != nil {
			return err
		}
		authenticator = auth.NewChainAuthenticator(authenticator, oidc)
	}

	svc := service.New(store, service.Options{
		Tokens:    tokens,
		Audit:     auditLogger,
		Logger:    log,
		Decisions: decisions,
	})

	if *bootstrapAdmin != "" {
		if err := bootstrap(ctx, store, tokens, *bootstrapAdmin); err != nil {
			return err
		}
	}

	server := api.NewServer(svc, auth.NewResolver(store), api.Options{
		Logger:          log,
		Authenticator:   authenticator,
		RateLimit:       newRateLimiter(ctx, cfg.RateLimit, redisClient, log),
		Health:          observability.NewHealthChecker(store, redisClient, cfg.Observability.OTelServiceVersion),
		Metrics:         metricsOrNil(cfg.Observability.MetricsEnabled, metrics),
		Registry:        registryOrNil(cfg.Observability.MetricsEnabled, registry),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		DefaultTokenTTL: cfg.Auth.DefaultTokenTTL,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(server, "plank"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)

	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(log, metrics.JobRunsTotal)
		if err := scheduler.Add("token-cleanup", cfg.Jobs.TokenCleanupSchedule,
			jobs.TokenCleanup(tokens, metrics.TokensExpiredTotal, log)); err != nil {
			return err
		}
		if cm != nil {
			if err := scheduler.Add("pool-stats", "@every 15s", jobs.PoolStats(cm.Primary(), metrics.RecordDBStats)); err != nil {
				return err
			}
			cm.StartHealthCheckRoutine(ctx, cfg.Jobs.ReplicaCheckInterval, func(n int) {
				metrics.ReplicasRemovedTotal.Add(float64(n))
			})
		}
		scheduler.Start()
		shutdown.RegisterShutdownFunc(scheduler.Stop)
	}

	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return auditLogger.Close()
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return store.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(logger, "http server")
		logger.Infof("Starting plank server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	if err := shutdown.WaitForShutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}

func openStore(ctx context.Context, cfg storage.Config, log *logrus.Logger) (storage.Store, *postgres.ConnectionManager, error) {
	if cfg.Type != storage.TypePostgres {
		log.Info("Using in-memory storage")
		return memory.New(), nil, nil
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg), log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, cm.Primary()); err != nil {
		cm.Close()
		return nil, nil, err
	}
	log.Info("Using PostgreSQL storage")
	return postgres.NewFromConnectionManager(cm), cm, nil
}

func newAuditLogger(cfg config.AuditConfig, log *logrus.Logger) (audit.Logger, error) {
	loggers := []audit.Logger{audit.NewLogrusLogger(log)}
	if cfg.Dir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Dir,
			Rotate:   cfg.Rotate,
			MaxSize:  cfg.MaxSizeMB * 1024 * 1024,
			MaxFiles: cfg.MaxFiles,
		})
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fileLogger)
	}
	multi := audit.NewMultiLogger(loggers...)
	multi.SetAsync(cfg.Async)
	return multi, nil
}

func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client, log *logrus.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return nil
	}
	user := &middleware.RateLimitConfig{RequestsPerWindow: cfg.UserRequests, WindowDuration: time.Minute, BurstSize: cfg.UserBurst}
	anonymous := &middleware.RateLimitConfig{RequestsPerWindow: cfg.AnonymousRequests, WindowDuration: time.Minute, BurstSize: cfg.AnonymousBurst}

	if cfg.Distributed && client != nil {
		limiter := middleware.NewDistributedRateLimitMiddlewareWithConfig(client, log, user, anonymous)
		limiter.SetFailOpen(true)
		return limiter.Handler
	}
	limiter := middleware.NewRateLimitMiddlewareWithConfig(user, anonymous)
	limiter.StartCleanup(ctx)
	return limiter.Handler
}

func metricsOrNil(enabled bool, m *observability.Metrics) *observability.Metrics {
	if !enabled {
		return nil
	}
	return m
}

func registryOrNil(enabled bool, r *prometheus.Registry) *prometheus.Registry {
	if !enabled {
		return nil
	}
	return r
}
