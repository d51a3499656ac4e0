package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{}, NewLogger(InfoLevel, &bytes.Buffer{}))

	assert.NoError(t, err)
	assert.Nil(t, providers)
}

// Exporters connect lazily, so initialisation succeeds without a collector.
func TestInitOTel_SetsGlobals(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:  true,
		Endpoint: "localhost:4317",
		Insecure: true,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	t.Cleanup(func() { _ = ShutdownOTel(context.Background(), providers, logger) })

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.Same(t, providers.TracerProvider, otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	assert.Contains(t, buf.String(), "OpenTelemetry initialized successfully")
}

func TestShutdownOTel(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))

	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  metric.NewMeterProvider(),
	}
	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
	assert.NoError(t, ShutdownOTel(context.Background(), &OTelProviders{}, logger))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestHierarchyInstruments(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader), metric.WithView(hierarchyView()))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	instruments, err := NewHierarchyInstruments(mp)
	require.NoError(t, err)
	instruments.Record(ctx, "reparent", time.Now(), nil)
	instruments.Record(ctx, "reparent", time.Now(), errors.New("cycle"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Aggregation{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m.Data
	}

	changes, ok := byName[MetricHierarchyChanges].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, changes.DataPoints, 2)

	duration, ok := byName[MetricHierarchyDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, duration.DataPoints)
	assert.Equal(t, hierarchyBuckets, duration.DataPoints[0].Bounds)
}
