package infrastructure

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"chassis/internal/buildinfo"
	"chassis/internal/config"
)

func TestInitOTel_DevProviders(t *testing.T) {
	cfg := config.Default() // dev selects the stdout exporter
	info := buildinfo.Collect(cfg.App.Name, cfg.App.Env)

	providers, err := InitOTel(context.Background(), cfg, info, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.ShutdownWithTimeout() })

	require.NotNil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.MetricsHandler)

	// Spans started through the installed tracer carry a trace ID that the
	// logging layer can pick up.
	ctx, span := StartSpan(context.Background(), "unit-test-span")
	defer span.End()
	assert.NotEmpty(t, SpanTraceID(ctx))
	assert.Equal(t, SpanTraceID(ctx), GetTraceID(ctx))
}

func TestOTelProviders_ShutdownNilReceiver(t *testing.T) {
	var providers *OTelProviders
	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.ShutdownWithTimeout())
}

func TestSpanTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, SpanTraceID(context.Background()))
}

func TestRegisterRuntimeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	meter := provider.Meter("runtime-test")
	require.NoError(t, RegisterRuntimeMetrics(meter, time.Now().Add(-time.Minute)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		"process_goroutines",
		"process_heap_alloc_bytes",
		"process_heap_sys_bytes",
		"process_gc_total",
		"process_uptime_seconds",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}
