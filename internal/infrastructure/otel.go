package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"chassis/internal/buildinfo"
	"chassis/internal/config"
)

// instrumentationName scopes the tracer and meter created by InitOTel.
const instrumentationName = "chassis"

// OTelProviders holds the providers installed by InitOTel and the handler
// that serves the Prometheus scrape endpoint.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	MetricsHandler http.Handler

	logger *slog.Logger
}

// InitOTel installs OpenTelemetry tracing and metrics for the process.
// Spans export to stdout in dev and to an OTLP/gRPC collector otherwise;
// the collector endpoint follows the standard OTEL_EXPORTER_OTLP_ENDPOINT
// convention. Metrics always export through the Prometheus reader exposed
// on MetricsHandler.
func InitOTel(ctx context.Context, cfg *config.Config, info buildinfo.Info, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}
	providers := &OTelProviders{logger: logger}

	res, err := newResource(cfg, info)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	exporter, exporterName, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	providers.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(1.0)),
	)
	otel.SetTracerProvider(providers.TracerProvider)
	providers.Tracer = providers.TracerProvider.Tracer(instrumentationName)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	providers.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(providers.MeterProvider)
	providers.Meter = providers.MeterProvider.Meter(instrumentationName)
	providers.MetricsHandler = promhttp.Handler()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("opentelemetry initialized",
		slog.String("service", cfg.App.Name),
		slog.String("version", info.Version),
		slog.String("environment", cfg.App.Env),
		slog.String("trace_exporter", exporterName),
		slog.String("metric_exporter", "prometheus"),
	)
	return providers, nil
}

// newResource describes this service instance for exported telemetry.
func newResource(cfg *config.Config, info buildinfo.Info) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.App.Name),
		semconv.ServiceVersion(info.Version),
		semconv.DeploymentEnvironmentName(cfg.App.Env),
		attribute.String("service.instance.id", instanceID()),
	))
}

// newTraceExporter picks the span exporter for the environment tier.
func newTraceExporter(ctx context.Context, cfg *config.Config) (sdktrace.SpanExporter, string, error) {
	if cfg.App.Env == "dev" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		return exporter, "stdout", err
	}
	exporter, err := otlptracegrpc.New(ctx)
	return exporter, "otlp", err
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Shutdown flushes and stops both providers. Safe on a nil receiver so
// callers can defer it unconditionally.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Info("opentelemetry shutdown complete")
	}
	return nil
}

// SpanTraceID returns the active span's trace ID, or "" when the context
// carries no recorded span.
func SpanTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// StartSpan starts a span from the globally installed tracer and stamps the
// returned context with the span's trace ID for log correlation.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, opts...)
	if traceID := SpanTraceID(ctx); traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	return ctx, span
}

// shutdownTimeout bounds exporter flushes during teardown.
const shutdownTimeout = 5 * time.Second

// ShutdownWithTimeout runs Shutdown under its own deadline, for callers
// tearing down without a request context.
func (p *OTelProviders) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
