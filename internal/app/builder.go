package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chassis/internal/buildinfo"
	"chassis/internal/config"
	apierrors "chassis/internal/errors"
	"chassis/internal/health"
	"chassis/internal/infra"
	"chassis/internal/infrastructure"
	"chassis/internal/middleware"
	transport "chassis/internal/transport/http"
)

// reservedPatterns are the core endpoint routes a merged router may not
// claim. Rejecting them in Merge keeps the conflict an error instead of a
// router panic at Build time.
var reservedPatterns = []string{"/healthz", "/readyz", "/version", "/metrics"}

// Builder accumulates the collaborators initialized by the process entry
// point and assembles them into an Application.
type Builder struct {
	cfg        *config.Config
	logger     *slog.Logger
	info       buildinfo.Info
	registry   *infra.Registry
	aggregator *health.Aggregator
	otel       *infrastructure.OTelProviders
	logGuard   *infrastructure.LogGuard
	mounts     []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// Option configures the builder.
type Option func(*Builder)

// WithLogger sets the logger used by the middleware chain and lifecycle
// logging. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithBuildInfo sets the metadata served by /version and printed in the
// banner. Defaults to buildinfo.Collect for the configured app name.
func WithBuildInfo(info buildinfo.Info) Option {
	return func(b *Builder) { b.info = info }
}

// WithRegistry hands the infra registry to the application. Build registers
// the registry's probers with the readiness aggregator, and Run closes the
// registry during shutdown.
func WithRegistry(registry *infra.Registry) Option {
	return func(b *Builder) { b.registry = registry }
}

// WithAggregator sets the readiness aggregator backing /readyz. Without
// it, Build creates one from the readiness configuration; with no probers
// registered it reports Ready.
func WithAggregator(aggregator *health.Aggregator) Option {
	return func(b *Builder) { b.aggregator = aggregator }
}

// WithOTel hands over the telemetry providers: their metrics handler backs
// /metrics, and Run shuts them down after the infra registry.
func WithOTel(providers *infrastructure.OTelProviders) Option {
	return func(b *Builder) { b.otel = providers }
}

// WithLogGuard hands over the logging guard so Run can flush and close the
// logging sinks as the final shutdown step.
func WithLogGuard(guard *infrastructure.LogGuard) Option {
	return func(b *Builder) { b.logGuard = guard }
}

// New creates a builder for the given configuration.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		logger: slog.Default(),
		info:   buildinfo.Collect(cfg.App.Name, cfg.App.Env),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Merge mounts a caller-provided router at the given pattern. Merged routes
// pass through the middleware chain but are served as-is: the response
// envelope used by the core endpoints is never imposed on them. Reserved
// core patterns and duplicate mounts are rejected.
func (b *Builder) Merge(pattern string, handler http.Handler) error {
	if handler == nil {
		return fmt.Errorf("merge %q: nil handler", pattern)
	}
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("merge %q: pattern must begin with /", pattern)
	}

	trimmed := strings.TrimRight(pattern, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	for _, reserved := range reservedPatterns {
		if trimmed == reserved {
			return fmt.Errorf("merge %q: pattern is reserved for core endpoints", pattern)
		}
	}
	for _, m := range b.mounts {
		if m.pattern == trimmed {
			return fmt.Errorf("merge %q: pattern already mounted", pattern)
		}
	}

	b.mounts = append(b.mounts, mount{pattern: trimmed, handler: handler})
	return nil
}

// Build assembles the middleware chain, core endpoints, and merged routers
// into an Application ready to Run.
func (b *Builder) Build() (*Application, error) {
	if b.aggregator == nil {
		b.aggregator = health.NewAggregator(b.cfg.Readiness, b.logger)
	}
	if b.registry != nil {
		b.aggregator.Register(b.registry.Probers()...)
	}

	router := chi.NewRouter()
	if err := b.applyMiddleware(router); err != nil {
		return nil, err
	}
	b.mountCore(router)
	for _, m := range b.mounts {
		router.Mount(m.pattern, m.handler)
	}

	server := &http.Server{
		Addr:              b.cfg.App.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:        b.cfg,
		logger:     b.logger,
		info:       b.info,
		router:     router,
		server:     server,
		registry:   b.registry,
		aggregator: b.aggregator,
		otel:       b.otel,
		logGuard:   b.logGuard,
	}, nil
}

// applyMiddleware installs the fixed chain. The order is load-bearing; see
// the package documentation.
func (b *Builder) applyMiddleware(router chi.Router) error {
	router.Use(middleware.Recoverer(b.logger))
	router.Use(middleware.RealIP)

	if b.cfg.HTTP.RateLimitPerMinute > 0 {
		router.Use(middleware.NewRateLimiter(b.cfg.HTTP.RateLimitPerMinute, b.logger).Handler)
	}
	if b.cfg.Features.CORS {
		router.Use(middleware.CORS(b.cfg.CORS))
	}

	router.Use(middleware.Compress())
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.BodyLimit(b.cfg.HTTP.BodyLimitBytes))
	router.Use(middleware.Timeout(b.cfg.HTTP.RequestTimeout()))

	if b.cfg.Features.Tracing {
		tracing, err := middleware.NewTracing()
		if err != nil {
			return fmt.Errorf("build tracing middleware: %w", err)
		}
		router.Use(tracing.Handler)
	}
	if b.cfg.Features.RequestLog {
		router.Use(middleware.RequestLogger(b.logger))
		router.Use(middleware.SensitiveHeaders(
			b.cfg.Logging.RequestHeadersAllowlist,
			b.cfg.Logging.RequestHeadersDenylist,
		))
	}

	router.Use(middleware.RequestID)
	return nil
}

// mountCore registers the always-on endpoints. They are registered before
// merged routers so user routes cannot shadow them, and only they get the
// envelope mode; merged routers are never wrapped.
func (b *Builder) mountCore(router chi.Router) {
	// Set before merged routers are mounted so chi propagates the JSON
	// fallbacks to mounted sub-routers that define none of their own.
	router.NotFound(apierrors.NotFound)
	router.MethodNotAllowed(apierrors.MethodNotAllowed)

	healthHandler := transport.NewHealthHandler(b.aggregator, b.cfg.HTTP.ReadyzStrictStatus, b.logger)

	router.Group(func(r chi.Router) {
		r.Use(transport.ResponseMode(b.cfg.Features.ResponseEnvelope))
		r.Get("/healthz", healthHandler.Healthz)
		r.Get("/readyz", healthHandler.Readyz)
		r.Get("/version", transport.NewVersionHandler(b.info).Version)
	})

	if b.cfg.Features.OTel && b.otel != nil && b.otel.MetricsHandler != nil {
		router.Handle("/metrics", b.otel.MetricsHandler)
	}
}
