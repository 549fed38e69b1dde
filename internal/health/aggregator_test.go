package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
)

func newTestAggregator(t *testing.T, optional ...string) *Aggregator {
	t.Helper()
	cfg := config.ReadinessConfig{
		Optional:            optional,
		ProbeTimeoutSeconds: 5,
	}
	return NewAggregator(cfg, slog.Default())
}

func staticProber(name string, status Status, detail string) Prober {
	return ProberFunc{Name: name, Fn: func(context.Context) (Status, string) {
		return status, detail
	}}
}

func TestAggregator_ReportClassifiesAndSorts(t *testing.T) {
	agg := newTestAggregator(t, "search")
	agg.Register(
		staticProber("search", StatusDown, "connection refused"),
		staticProber("db", StatusUp, ""),
		staticProber("cache", StatusDegraded, "pool saturated"),
	)

	report := agg.Report(context.Background())

	require.Len(t, report.Checks, 3)
	assert.Equal(t, "cache", report.Checks[0].Component)
	assert.Equal(t, "db", report.Checks[1].Component)
	assert.Equal(t, "search", report.Checks[2].Component)

	assert.True(t, report.Checks[2].Optional)
	assert.False(t, report.Checks[1].Optional)
	assert.Equal(t, "connection refused", report.Checks[2].Detail)
	assert.False(t, report.Timestamp.IsZero())

	// Optional down is present, so the degraded clause does not apply and
	// the optional failure itself never demotes.
	assert.Equal(t, VerdictReady, report.Verdict)
}

func TestAggregator_RequiredDownIsNotReady(t *testing.T) {
	agg := newTestAggregator(t)
	agg.Register(
		staticProber("db", StatusDown, "dial tcp: connection refused"),
		staticProber("cache", StatusUp, ""),
	)

	report := agg.Report(context.Background())
	assert.Equal(t, VerdictNotReady, report.Verdict)
	assert.False(t, report.Ready())
}

func TestAggregator_ProbeTimeoutClassifiesDown(t *testing.T) {
	agg := newTestAggregator(t)
	agg.timeout = 50 * time.Millisecond
	agg.Register(ProberFunc{Name: "db", Fn: func(context.Context) (Status, string) {
		time.Sleep(500 * time.Millisecond) // deliberately ignores ctx
		return StatusUp, ""
	}})

	report := agg.Report(context.Background())
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusDown, report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Detail, "timed out")
	assert.Equal(t, VerdictNotReady, report.Verdict)
}

func TestAggregator_PanickingProbeClassifiesDown(t *testing.T) {
	agg := newTestAggregator(t)
	agg.Register(ProberFunc{Name: "broker", Fn: func(context.Context) (Status, string) {
		panic("boom")
	}})

	report := agg.Report(context.Background())
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusDown, report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Detail, "panicked")
}

func TestAggregator_ProbesRunConcurrently(t *testing.T) {
	agg := newTestAggregator(t)
	slow := func(context.Context) (Status, string) {
		time.Sleep(100 * time.Millisecond)
		return StatusUp, ""
	}
	agg.Register(
		ProberFunc{Name: "db", Fn: slow},
		ProberFunc{Name: "cache", Fn: slow},
		ProberFunc{Name: "search", Fn: slow},
	)

	start := time.Now()
	report := agg.Report(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, VerdictReady, report.Verdict)
	assert.Less(t, elapsed, 250*time.Millisecond, "probes must fan out, not run serially")
}

func TestAggregator_CacheTTL(t *testing.T) {
	agg := newTestAggregator(t)
	agg.ttl = time.Minute

	var status atomic.Value
	status.Store(StatusUp)
	agg.Register(ProberFunc{Name: "db", Fn: func(context.Context) (Status, string) {
		return status.Load().(Status), ""
	}})

	first := agg.Report(context.Background())
	assert.Equal(t, VerdictReady, first.Verdict)
	assert.False(t, first.Cached)

	// The capability goes down, but the cached report is still served.
	status.Store(StatusDown)
	second := agg.Report(context.Background())
	assert.Equal(t, VerdictReady, second.Verdict)
	assert.True(t, second.Cached)

	// Registering invalidates the cache.
	agg.Register(staticProber("cache", StatusUp, ""))
	third := agg.Report(context.Background())
	assert.False(t, third.Cached)
	assert.Equal(t, VerdictNotReady, third.Verdict)
}

func TestAggregator_NoCacheByDefault(t *testing.T) {
	agg := newTestAggregator(t)

	var status atomic.Value
	status.Store(StatusUp)
	agg.Register(ProberFunc{Name: "db", Fn: func(context.Context) (Status, string) {
		return status.Load().(Status), ""
	}})

	assert.Equal(t, VerdictReady, agg.Report(context.Background()).Verdict)
	status.Store(StatusDown)
	assert.Equal(t, VerdictNotReady, agg.Report(context.Background()).Verdict)
}

func TestProberFunc(t *testing.T) {
	p := ProberFunc{Name: "db", Fn: func(context.Context) (Status, string) {
		return StatusDegraded, "warming up"
	}}
	assert.Equal(t, "db", p.Component())
	status, detail := p.Probe(context.Background())
	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, "warming up", detail)
}
