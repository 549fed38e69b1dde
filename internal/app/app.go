package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"chassis/internal/buildinfo"
	"chassis/internal/config"
	"chassis/internal/health"
	"chassis/internal/infra"
	"chassis/internal/infrastructure"
)

// Application is the assembled service: router, server, and the resources
// Run releases on shutdown.
type Application struct {
	cfg        *config.Config
	logger     *slog.Logger
	info       buildinfo.Info
	router     *chi.Mux
	server     *http.Server
	registry   *infra.Registry
	aggregator *health.Aggregator
	otel       *infrastructure.OTelProviders
	logGuard   *infrastructure.LogGuard
}

// Handler exposes the assembled router, mainly for tests and embedding into
// an existing server.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Aggregator exposes the readiness aggregator so callers can register
// additional probers after Build.
func (a *Application) Aggregator() *health.Aggregator {
	return a.aggregator
}

// Run binds the listener and serves until the context is cancelled or an
// interrupt/termination signal arrives, then shuts down gracefully. All
// resources release in reverse initialization order; release errors are
// collected and returned together rather than aborting the sequence.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Features.StartupBanner {
		printBanner(os.Stdout, a.cfg, a.info)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			slog.String("addr", a.server.Addr),
			slog.String("env", a.cfg.App.Env),
			slog.String("version", a.info.Version))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		// The listener died; release what was initialized before reporting.
		errs := append([]error{fmt.Errorf("http server: %w", err)}, a.release(context.Background())...)
		return errors.Join(errs...)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received",
			slog.String("grace", a.cfg.App.ShutdownGrace().String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownGrace())
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	errs = append(errs, a.release(shutdownCtx)...)

	if len(errs) > 0 {
		a.logger.Error("shutdown finished with errors", slog.Int("count", len(errs)))
		return errors.Join(errs...)
	}
	a.logger.Info("shutdown complete")
	return nil
}

// release closes the remaining resources in reverse initialization order:
// infra registry, then telemetry providers, then the logging guard. The
// guard goes last so every earlier step stays observable.
func (a *Application) release(ctx context.Context) []error {
	var errs []error

	if a.registry != nil {
		if err := a.registry.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("infra registry close: %w", err))
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if a.logGuard != nil {
		if err := a.logGuard.Close(); err != nil {
			errs = append(errs, fmt.Errorf("log guard close: %w", err))
		}
	}
	return errs
}
