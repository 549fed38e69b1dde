package infra

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
	"chassis/internal/health"
)

// closeRecorder captures the order handles were released in.
type closeRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *closeRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *closeRecorder) closed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// fakeHandle implements Handle, Pinger, and Warner.
type fakeHandle struct {
	name    string
	rec     *closeRecorder
	pingErr error
	warning string
}

func (h *fakeHandle) Ping(context.Context) error     { return h.pingErr }
func (h *fakeHandle) Warning(context.Context) string { return h.warning }

func (h *fakeHandle) Close(context.Context) error {
	if h.rec != nil {
		h.rec.record(h.name)
	}
	return nil
}

// opaqueHandle implements only Handle; it carries no probe.
type opaqueHandle struct{}

func (opaqueHandle) Close(context.Context) error { return nil }

func fakeCtor(h Handle, err error, delay time.Duration) Constructor {
	return func(ctx context.Context, _ *config.Config, _ *slog.Logger) (Handle, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		return h, err
	}
}

func registryConfig(t *testing.T, enable ...config.Capability) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Features.DB = false
	cfg.Features.Cache = false
	cfg.Features.Search = false
	cfg.Features.Broker = false
	for _, capability := range enable {
		switch capability {
		case config.CapabilityDB:
			cfg.Features.DB = true
		case config.CapabilityCache:
			cfg.Features.Cache = true
		case config.CapabilitySearch:
			cfg.Features.Search = true
		case config.CapabilityBroker:
			cfg.Features.Broker = true
		}
	}
	return cfg
}

func TestInit_NotCompiledInIsFatal(t *testing.T) {
	cfg := registryConfig(t, config.CapabilitySearch)
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB: fakeCtor(&fakeHandle{name: "db"}, nil, 0),
		// no search constructor: binary built without the search client
	}

	_, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.Error(t, err)

	var notCompiled *NotCompiledError
	require.ErrorAs(t, err, &notCompiled)
	assert.Equal(t, config.CapabilitySearch, notCompiled.Capability)
	assert.Equal(t,
		"FEATURE_SEARCH is enabled but this binary was built without the search client",
		err.Error())
}

func TestInit_OneFailureDoesNotAbortOthers(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache)
	dialErr := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:    fakeCtor(nil, dialErr, 0),
		config.CapabilityCache: fakeCtor(&fakeHandle{name: "cache"}, nil, 0),
	}

	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.NoError(t, err, "lenient policy must let the process start")

	_, ok := r.Get(config.CapabilityCache)
	assert.True(t, ok, "cache must initialize despite the db failure")
	_, ok = r.Get(config.CapabilityDB)
	assert.False(t, ok)

	failures := r.Failures()
	require.Contains(t, failures, config.CapabilityDB)
	assert.ErrorIs(t, failures[config.CapabilityDB], dialErr)
	assert.Equal(t, []config.Capability{config.CapabilityCache}, r.Capabilities())
}

func TestInit_StrictPolicyEscalates(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache)
	cfg.Infra.StartupPolicy = config.StartupPolicyStrict

	rec := &closeRecorder{}
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:    fakeCtor(nil, errors.New("connection refused"), 0),
		config.CapabilityCache: fakeCtor(&fakeHandle{name: "cache", rec: rec}, nil, 0),
	}

	_, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.Error(t, err)

	var policyErr *StartupPolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, err.Error(), "strict startup policy")
	assert.Contains(t, err.Error(), "db: connection refused")

	// The capability that did come up must be released on the abort path.
	assert.Equal(t, []string{"cache"}, rec.closed())
}

func TestInit_CapabilitiesInitializeConcurrently(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache, config.CapabilityBroker)
	delay := 100 * time.Millisecond
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:     fakeCtor(&fakeHandle{name: "db"}, nil, delay),
		config.CapabilityCache:  fakeCtor(&fakeHandle{name: "cache"}, nil, delay),
		config.CapabilityBroker: fakeCtor(&fakeHandle{name: "broker"}, nil, delay),
	}

	start := time.Now()
	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, r.Capabilities(), 3)
	assert.Less(t, elapsed, 250*time.Millisecond, "init must fan out, not run serially")
}

func TestInit_NoCapabilitiesEnabled(t *testing.T) {
	cfg := registryConfig(t)
	r, err := initWith(context.Background(), cfg, slog.Default(), nil)
	require.NoError(t, err)
	assert.Empty(t, r.Capabilities())
	assert.Empty(t, r.Failures())
	require.NoError(t, r.Close(context.Background()))
}

func TestRegistry_CheckHealth(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache, config.CapabilitySearch, config.CapabilityBroker)
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:     fakeCtor(&fakeHandle{name: "db"}, nil, 0),
		config.CapabilityCache:  fakeCtor(&fakeHandle{name: "cache", warning: "pool saturated"}, nil, 0),
		config.CapabilitySearch: fakeCtor(opaqueHandle{}, nil, 0),
		config.CapabilityBroker: fakeCtor(nil, errors.New("no servers available"), 0),
	}

	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, health.StatusUp, r.CheckHealth(ctx, config.CapabilityDB))
	assert.Equal(t, health.StatusDegraded, r.CheckHealth(ctx, config.CapabilityCache))
	assert.Equal(t, health.StatusUnknown, r.CheckHealth(ctx, config.CapabilitySearch),
		"a handle without a probe is unknown, not down")
	assert.Equal(t, health.StatusDown, r.CheckHealth(ctx, config.CapabilityBroker),
		"a failed init reports down")
	assert.Equal(t, health.StatusUnknown, r.CheckHealth(ctx, config.Capability("unregistered")))
}

func TestRegistry_ProbersIncludeFailedCapabilities(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityBroker)
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:     fakeCtor(&fakeHandle{name: "db"}, nil, 0),
		config.CapabilityBroker: fakeCtor(nil, errors.New("no servers available"), 0),
	}

	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.NoError(t, err)

	probers := r.Probers()
	require.Len(t, probers, 2)

	byName := make(map[string]health.Prober, len(probers))
	for _, p := range probers {
		byName[p.Component()] = p
	}

	status, _ := byName["db"].Probe(context.Background())
	assert.Equal(t, health.StatusUp, status)

	status, detail := byName["broker"].Probe(context.Background())
	assert.Equal(t, health.StatusDown, status)
	assert.Contains(t, detail, "init failed")
	assert.Contains(t, detail, "no servers available")
}

func TestRegistry_CloseReleasesInReverseOrder(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache, config.CapabilitySearch)
	rec := &closeRecorder{}

	// Staggered delays pin the completion order: db, cache, search.
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:     fakeCtor(&fakeHandle{name: "db", rec: rec}, nil, 10*time.Millisecond),
		config.CapabilityCache:  fakeCtor(&fakeHandle{name: "cache", rec: rec}, nil, 80*time.Millisecond),
		config.CapabilitySearch: fakeCtor(&fakeHandle{name: "search", rec: rec}, nil, 150*time.Millisecond),
	}

	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.NoError(t, err)

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []string{"search", "cache", "db"}, rec.closed())
}

func TestRegistry_CloseJoinsErrors(t *testing.T) {
	cfg := registryConfig(t, config.CapabilityDB, config.CapabilityCache)
	closeErr := errors.New("already closed")
	ctors := map[config.Capability]Constructor{
		config.CapabilityDB:    fakeCtor(&failingCloseHandle{err: closeErr}, nil, 0),
		config.CapabilityCache: fakeCtor(&fakeHandle{name: "cache"}, nil, 0),
	}

	r, err := initWith(context.Background(), cfg, slog.Default(), ctors)
	require.NoError(t, err)

	err = r.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close db")
	assert.ErrorIs(t, err, closeErr)
}

type failingCloseHandle struct{ err error }

func (h *failingCloseHandle) Close(context.Context) error { return h.err }

func TestCompiledIn(t *testing.T) {
	// The default build carries all four clients.
	for _, capability := range config.AllCapabilities() {
		assert.True(t, CompiledIn(capability), "capability %s", capability)
	}
	assert.False(t, CompiledIn(config.Capability("bogus")))
}

func TestNotCompiledErrorMessage(t *testing.T) {
	err := &NotCompiledError{Capability: config.CapabilityBroker}
	assert.Equal(t,
		"FEATURE_BROKER is enabled but this binary was built without the broker client",
		err.Error())
}

func TestStartupPolicyErrorMessageIsSorted(t *testing.T) {
	err := &StartupPolicyError{Failures: map[config.Capability]error{
		config.CapabilitySearch: errors.New("unreachable"),
		config.CapabilityDB:     errors.New("refused"),
	}}
	msg := err.Error()
	assert.Contains(t, msg, "2 capability(ies)")
	assert.Equal(t,
		"strict startup policy: 2 capability(ies) failed to initialize: db: refused; search: unreachable",
		msg)
}
