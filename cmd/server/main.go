// Command server is the reference service built on the chassis: it wires
// configuration, logging, telemetry, infrastructure clients, and the
// readiness aggregator into a running HTTP server with one demo route.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"chassis/internal/app"
	"chassis/internal/buildinfo"
	"chassis/internal/config"
	"chassis/internal/health"
	"chassis/internal/infra"
	"chassis/internal/infrastructure"
)

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	guard, err := infrastructure.InitLogging(cfg)
	if err != nil {
		return err
	}
	logger := guard.Logger

	info := buildinfo.Collect(cfg.App.Name, cfg.App.Env)
	logger.Info("starting", slog.String("build", info.String()))

	ctx := context.Background()

	var providers *infrastructure.OTelProviders
	if cfg.Features.OTel {
		providers, err = infrastructure.InitOTel(ctx, cfg, info, logger)
		if err != nil {
			_ = guard.Close()
			return err
		}
		if err := infrastructure.RegisterRuntimeMetrics(providers.Meter, time.Now()); err != nil {
			logger.Warn("runtime metrics registration failed", slog.String("error", err.Error()))
		}
	}

	registry, err := infra.Init(ctx, cfg, logger)
	if err != nil {
		if providers != nil {
			_ = providers.ShutdownWithTimeout()
		}
		_ = guard.Close()
		return err
	}

	aggregator := health.NewAggregator(cfg.Readiness, logger)

	// Run releases everything once the application exists; until then the
	// error paths here do.
	release := func() {
		_ = registry.Close(ctx)
		if providers != nil {
			_ = providers.ShutdownWithTimeout()
		}
		_ = guard.Close()
	}

	builder := app.New(cfg,
		app.WithLogger(logger),
		app.WithBuildInfo(info),
		app.WithRegistry(registry),
		app.WithAggregator(aggregator),
		app.WithOTel(providers),
		app.WithLogGuard(guard),
	)
	if err := builder.Merge("/api", demoRouter(registry)); err != nil {
		release()
		return err
	}

	application, err := builder.Build()
	if err != nil {
		release()
		return err
	}
	return application.Run(ctx)
}

// demoRouter shows the merge asymmetry: its responses are served as-is,
// without the envelope the core endpoints use. The kv routes consume the
// cache capability through the registry's typed accessor.
func demoRouter(registry *infra.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"message": "pong"})
	})

	r.Get("/kv/{key}", func(w http.ResponseWriter, r *http.Request) {
		store, ok := registry.CacheStore()
		if !ok {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "cache capability not available"})
			return
		}
		value, err := store.Get(r.Context(), chi.URLParam(r, "key"))
		if errors.Is(err, infra.ErrCacheMiss) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "key not found"})
			return
		}
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		render.JSON(w, r, map[string]string{"value": string(value)})
	})

	r.Put("/kv/{key}", func(w http.ResponseWriter, r *http.Request) {
		store, ok := registry.CacheStore()
		if !ok {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "cache capability not available"})
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		if err := store.Set(r.Context(), chi.URLParam(r, "key"), body); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	})

	return r
}
