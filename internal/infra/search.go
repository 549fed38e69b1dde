//go:build !nosearch

package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/meilisearch/meilisearch-go"

	"chassis/internal/config"
)

func init() {
	registerBuiltin(config.CapabilitySearch, newSearchHandle)
}

// searchHandle owns the meilisearch client.
type searchHandle struct {
	client meilisearch.ServiceManager
}

func newSearchHandle(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handle, error) {
	opts := []meilisearch.Option{
		meilisearch.WithCustomClient(&http.Client{Timeout: cfg.Search.Timeout()}),
	}
	if cfg.Search.APIKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(cfg.Search.APIKey))
	}
	client := meilisearch.New(cfg.Search.URL, opts...)

	// New never dials; verify reachability so an unreachable server is a
	// recorded init failure, not a surprise on first use.
	dctx, cancel := context.WithTimeout(ctx, cfg.Search.Timeout())
	defer cancel()
	if _, err := client.HealthWithContext(dctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("search server unreachable: %w", err)
	}

	logger.Debug("search client connected", slog.String("url", cfg.Search.URL))
	return &searchHandle{client: client}, nil
}

func (h *searchHandle) Ping(ctx context.Context) error {
	status, err := h.client.HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("search health: %w", err)
	}
	if status.Status != "available" {
		return fmt.Errorf("search server status %q", status.Status)
	}
	return nil
}

func (h *searchHandle) Close(context.Context) error {
	h.client.Close()
	return nil
}

// Search returns the search client when the capability is registered.
func (r *Registry) Search() (meilisearch.ServiceManager, bool) {
	h, ok := r.Get(config.CapabilitySearch)
	if !ok {
		return nil, false
	}
	sh, ok := h.(*searchHandle)
	if !ok {
		return nil, false
	}
	return sh.client, true
}
