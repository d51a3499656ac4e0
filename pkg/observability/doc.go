// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry setup and graceful shutdown for plank.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("project_id", id).Info("Project deleted")
//
// Components that take a *logrus.Logger get logger.Logrus().
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry, access.NewDecisionsCounter())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(router, registry)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(store, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// Storage failing makes /health/ready return 503. Redis only degrades.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:  true,
//		Endpoint: "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// The hierarchy manager records plank.hierarchy.changes and
// plank.hierarchy.duration through NewHierarchyInstruments. SampleRatio keeps
// that share of root traces; zero keeps all of them.
package observability
