// Package infra owns the optional infrastructure capabilities: database,
// cache, search, and broker clients. Each capability is compiled in through
// a build-tag-guarded constructor and activated by its feature flag; the
// Registry initializes all enabled capabilities concurrently and releases
// them in reverse order on shutdown.
package infra

import (
	"context"
	"log/slog"

	"chassis/internal/config"
)

// Handle is an opaque capability client owned by the Registry. Callers
// never construct or close handles themselves.
type Handle interface {
	Close(ctx context.Context) error
}

// Pinger is implemented by handles that carry a liveness probe. A handle
// without one reports StatusUnknown rather than StatusDown.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Warner is implemented by handles that can serve while flagging a
// degraded condition. An empty string means no warning.
type Warner interface {
	Warning(ctx context.Context) string
}

// Constructor builds the handle for one capability from configuration. A
// constructor must respect ctx and return promptly on cancellation.
type Constructor func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handle, error)

// builtins maps each compiled-in capability to its constructor. Build tags
// control membership: compiling with -tags nosearch removes the search
// entry, and so on for nodb, nocache, and nobroker.
var builtins = map[config.Capability]Constructor{}

func registerBuiltin(capability config.Capability, ctor Constructor) {
	builtins[capability] = ctor
}

// CompiledIn reports whether this binary carries a client for the
// capability.
func CompiledIn(capability config.Capability) bool {
	_, ok := builtins[capability]
	return ok
}
