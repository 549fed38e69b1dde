//go:build !nodb

package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"chassis/internal/config"
)

func init() {
	registerBuiltin(config.CapabilityDB, newDBHandle)
}

// dbHandle owns the postgres connection pool.
type dbHandle struct {
	pool *sqlx.DB
}

func newDBHandle(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handle, error) {
	dctx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout())
	defer cancel()

	// Connect opens the pool and verifies it with a ping.
	pool, err := sqlx.ConnectContext(dctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	logger.Debug("database pool configured",
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)
	return &dbHandle{pool: pool}, nil
}

func (h *dbHandle) Ping(ctx context.Context) error {
	return h.pool.PingContext(ctx)
}

// Warning flags pool saturation: every permitted connection in use means
// new queries are queueing.
func (h *dbHandle) Warning(context.Context) string {
	stats := h.pool.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		return fmt.Sprintf("connection pool saturated (%d/%d in use, %d waiting)",
			stats.InUse, stats.MaxOpenConnections, stats.WaitCount)
	}
	return ""
}

func (h *dbHandle) Close(context.Context) error {
	return h.pool.Close()
}

// DB returns the database pool when the capability is registered.
func (r *Registry) DB() (*sqlx.DB, bool) {
	h, ok := r.Get(config.CapabilityDB)
	if !ok {
		return nil, false
	}
	dh, ok := h.(*dbHandle)
	if !ok {
		return nil, false
	}
	return dh.pool, true
}
