package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chassis/internal/config"
	"chassis/internal/health"
)

// Registry holds the handles of successfully initialized capabilities.
// The handle map is populated once during Init and read-only afterwards;
// absence of a capability means it was not compiled in, not enabled, or
// failed to initialize (see Failures).
type Registry struct {
	logger   *slog.Logger
	handles  map[config.Capability]Handle
	order    []config.Capability // successful init completion order
	failures map[config.Capability]error
}

// Init constructs handles for every effectively enabled capability using
// the compiled-in constructor table.
//
// Enabling a capability that is not compiled in fails immediately. Handle
// construction itself fans out concurrently, and one capability's failure
// never aborts the others: failures are recorded per capability and the
// registry still forms. Under INFRA_STARTUP_POLICY=strict any recorded
// failure is escalated after all attempts complete, releasing whatever did
// initialize.
func Init(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	return initWith(ctx, cfg, logger, builtins)
}

// initWith is the testable core of Init; tests inject constructor tables.
func initWith(ctx context.Context, cfg *config.Config, logger *slog.Logger, ctors map[config.Capability]Constructor) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	flags := cfg.Flags()
	enabled := flags.EnabledCapabilities()
	for _, capability := range enabled {
		if _, ok := ctors[capability]; !ok {
			return nil, &NotCompiledError{Capability: capability}
		}
	}

	r := &Registry{
		logger:   logger,
		handles:  make(map[config.Capability]Handle, len(enabled)),
		failures: make(map[config.Capability]error),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, capability := range enabled {
		ctor := ctors[capability]
		g.Go(func() error {
			start := time.Now()
			handle, err := ctor(ctx, cfg, logger)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.failures[capability] = err
				logger.Error("capability init failed",
					slog.String("capability", string(capability)),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			r.handles[capability] = handle
			r.order = append(r.order, capability)
			logger.Info("capability ready",
				slog.String("capability", string(capability)),
				slog.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	if len(r.failures) > 0 && cfg.Infra.Strict() {
		policyErr := &StartupPolicyError{Failures: r.failures}
		if err := r.Close(ctx); err != nil {
			logger.Error("release after strict-policy failure", slog.String("error", err.Error()))
		}
		return nil, policyErr
	}
	return r, nil
}

// Get returns the handle for a capability. The second return is false when
// the capability is absent for any reason; callers must not assume
// presence.
func (r *Registry) Get(capability config.Capability) (Handle, bool) {
	h, ok := r.handles[capability]
	return h, ok
}

// Capabilities returns the registered capability names, sorted.
func (r *Registry) Capabilities() []config.Capability {
	caps := make([]config.Capability, 0, len(r.handles))
	for capability := range r.handles {
		caps = append(caps, capability)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Failures returns a copy of the per-capability init failures.
func (r *Registry) Failures() map[config.Capability]error {
	out := make(map[config.Capability]error, len(r.failures))
	for capability, err := range r.failures {
		out[capability] = err
	}
	return out
}

// CheckHealth probes a single capability: Down for a recorded init failure,
// Unknown for an absent capability or a handle without a probe.
func (r *Registry) CheckHealth(ctx context.Context, capability config.Capability) health.Status {
	if _, ok := r.failures[capability]; ok {
		return health.StatusDown
	}
	h, ok := r.handles[capability]
	if !ok {
		return health.StatusUnknown
	}
	status, _ := probeHandle(ctx, h)
	return status
}

// Probers exposes one readiness prober per attempted capability, including
// those whose initialization failed; the readiness report is how operators
// see the gap.
func (r *Registry) Probers() []health.Prober {
	probers := make([]health.Prober, 0, len(r.handles)+len(r.failures))
	for capability, h := range r.handles {
		probers = append(probers, health.ProberFunc{
			Name: string(capability),
			Fn: func(ctx context.Context) (health.Status, string) {
				return probeHandle(ctx, h)
			},
		})
	}
	for capability, err := range r.failures {
		detail := fmt.Sprintf("init failed: %v", err)
		probers = append(probers, health.ProberFunc{
			Name: string(capability),
			Fn: func(context.Context) (health.Status, string) {
				return health.StatusDown, detail
			},
		})
	}
	return probers
}

// probeHandle classifies one handle: no Pinger means Unknown, a Ping error
// means Down, a Warner message means Degraded, otherwise Up.
func probeHandle(ctx context.Context, h Handle) (health.Status, string) {
	p, ok := h.(Pinger)
	if !ok {
		return health.StatusUnknown, "no probe implemented"
	}
	if err := p.Ping(ctx); err != nil {
		return health.StatusDown, err.Error()
	}
	if w, ok := h.(Warner); ok {
		if msg := w.Warning(ctx); msg != "" {
			return health.StatusDegraded, msg
		}
	}
	return health.StatusUp, ""
}

// Close releases every handle in reverse-initialization order, continuing
// past individual failures and joining their errors.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		capability := r.order[i]
		h, ok := r.handles[capability]
		if !ok {
			continue
		}
		if err := h.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", capability, err))
			r.logger.Error("capability close failed",
				slog.String("capability", string(capability)),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Info("capability released", slog.String("capability", string(capability)))
	}
	return errors.Join(errs...)
}
