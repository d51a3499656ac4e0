package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ScopeHierarchy is the instrumentation scope of the work item hierarchy
const ScopeHierarchy = "github.com/platinummonkey/plank/pkg/hierarchy"

// Instrument names exported by plank over OTLP
const (
	MetricHierarchyChanges  = "plank.hierarchy.changes"
	MetricHierarchyDuration = "plank.hierarchy.duration"
)

// hierarchy writes are short store transactions
var hierarchyBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

const (
	exporterTimeout = 10 * time.Second
	exportInterval  = 10 * time.Second
)

// OTelConfig holds OpenTelemetry configuration. Traces and metrics go over
// OTLP/gRPC to Endpoint.
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Insecure       bool
	// SampleRatio is the share of root traces kept; zero keeps all of them
	SampleRatio float64
	// Attributes are added to the resource, e.g. the storage backend in use
	Attributes []attribute.KeyValue
}

// OTelProviders holds OpenTelemetry providers for shutdown
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// InitOTel builds the trace and metric pipelines and installs them globally.
// Packages that took their tracer or meter from the otel globals earlier
// start exporting from this point on.
func InitOTel(ctx context.Context, cfg OTelConfig, logger *Logger) (*OTelProviders, error) {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry is disabled")
		return nil, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "plank"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(append([]attribute.KeyValue{
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		}, cfg.Attributes...)...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var dial []grpc.DialOption
	if cfg.Insecure {
		dial = append(dial, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exportCtx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	spans, err := otlptracegrpc.New(exportCtx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dial...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	points, err := otlpmetricgrpc.New(exportCtx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(dial...),
	)
	if err != nil {
		if shutdownErr := spans.Shutdown(ctx); shutdownErr != nil {
			logger.WithError(shutdownErr).Error("Failed to shutdown trace exporter")
		}
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spans),
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		),
		MeterProvider: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(points, metric.WithInterval(exportInterval))),
			metric.WithView(hierarchyView()),
		),
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithFields(map[string]interface{}{
		"endpoint":     cfg.Endpoint,
		"service":      cfg.ServiceName,
		"sample_ratio": cfg.SampleRatio,
	}).Info("OpenTelemetry initialized successfully")
	return providers, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func hierarchyView() metric.View {
	return metric.NewView(
		metric.Instrument{Name: MetricHierarchyDuration, Scope: instrumentation.Scope{Name: ScopeHierarchy}},
		metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: hierarchyBuckets}},
	)
}

// HierarchyInstruments are the OTel instruments of the work item hierarchy
type HierarchyInstruments struct {
	// Changes counts structural writes by op and outcome
	Changes otelmetric.Int64Counter
	// Duration records how long each write took, in seconds
	Duration otelmetric.Float64Histogram
}

// NewHierarchyInstruments creates the hierarchy instruments on mp. A nil mp
// uses the global provider, which forwards to whatever InitOTel installs later.
func NewHierarchyInstruments(mp otelmetric.MeterProvider) (*HierarchyInstruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(ScopeHierarchy)

	changes, err := meter.Int64Counter(MetricHierarchyChanges,
		otelmetric.WithDescription("Structural work item changes by operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricHierarchyChanges, err)
	}
	duration, err := meter.Float64Histogram(MetricHierarchyDuration,
		otelmetric.WithDescription("Duration of structural work item changes"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricHierarchyDuration, err)
	}
	return &HierarchyInstruments{Changes: changes, Duration: duration}, nil
}

// Record adds one change of op with its outcome
func (h *HierarchyInstruments) Record(ctx context.Context, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	h.Changes.Add(ctx, 1, attrs)
	h.Duration.Record(ctx, time.Since(started).Seconds(), attrs)
}

// ShutdownOTel flushes and stops both providers
func ShutdownOTel(ctx context.Context, providers *OTelProviders, logger *Logger) error {
	if providers == nil {
		return nil
	}

	var errs []error
	if tp := providers.TracerProvider; tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if mp := providers.MeterProvider; mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.WithError(err).Error("OpenTelemetry shutdown failed")
		return err
	}
	logger.Info("OpenTelemetry shutdown complete")
	return nil
}
