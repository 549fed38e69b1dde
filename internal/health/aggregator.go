package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chassis/internal/config"
)

// Prober checks one capability. Implementations must honor the context
// deadline; the aggregator additionally abandons probes that do not.
type Prober interface {
	Component() string
	Probe(ctx context.Context) (Status, string)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc struct {
	Name string
	Fn   func(ctx context.Context) (Status, string)
}

func (p ProberFunc) Component() string { return p.Name }

func (p ProberFunc) Probe(ctx context.Context) (Status, string) { return p.Fn(ctx) }

// Aggregator fans probes out across registered capabilities and reduces the
// results to a Report. Each query probes live unless a cache TTL is
// configured.
type Aggregator struct {
	timeout time.Duration
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	probers  []Prober
	optional map[string]bool
	cached   *Report
	cachedAt time.Time
}

// NewAggregator builds an aggregator from the readiness configuration.
// Capabilities are registered afterwards, typically by the infra registry.
func NewAggregator(cfg config.ReadinessConfig, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	optional := make(map[string]bool, len(cfg.Optional))
	for _, name := range cfg.Optional {
		optional[name] = true
	}
	return &Aggregator{
		timeout:  cfg.ProbeTimeout(),
		ttl:      cfg.CacheTTL(),
		logger:   logger,
		optional: optional,
	}
}

// Register adds probers. Registration order does not matter; checks are
// reported sorted by component name.
func (a *Aggregator) Register(probers ...Prober) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probers = append(a.probers, probers...)
	a.cached = nil
}

// Report evaluates every registered capability and reduces the results.
// Probe failures never escape as errors; they classify as Down.
func (a *Aggregator) Report(ctx context.Context) Report {
	a.mu.Lock()
	if a.ttl > 0 && a.cached != nil && time.Since(a.cachedAt) < a.ttl {
		cached := *a.cached
		cached.Cached = true
		a.mu.Unlock()
		return cached
	}
	probers := make([]Prober, len(a.probers))
	copy(probers, a.probers)
	a.mu.Unlock()

	checks := make([]Check, len(probers))
	var wg sync.WaitGroup
	for i, p := range probers {
		wg.Add(1)
		go func(i int, p Prober) {
			defer wg.Done()
			checks[i] = a.runProbe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	sort.Slice(checks, func(i, j int) bool { return checks[i].Component < checks[j].Component })

	report := Report{
		Verdict:   Reduce(checks),
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	}
	if report.Verdict != VerdictReady {
		a.logger.Warn("readiness degraded", slog.String("verdict", string(report.Verdict)))
	}

	if a.ttl > 0 {
		a.mu.Lock()
		snapshot := report
		a.cached = &snapshot
		a.cachedAt = time.Now()
		a.mu.Unlock()
	}
	return report
}

// runProbe executes one probe under the configured timeout. A probe that
// ignores its context is abandoned and classified Down.
func (a *Aggregator) runProbe(ctx context.Context, p Prober) Check {
	check := Check{
		Component: p.Component(),
		Optional:  a.optional[p.Component()],
	}

	pctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		status Status
		detail string
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{StatusDown, fmt.Sprintf("probe panicked: %v", r)}
			}
		}()
		status, detail := p.Probe(pctx)
		done <- outcome{status, detail}
	}()

	select {
	case out := <-done:
		check.Status = out.status
		check.Detail = out.detail
		check.Duration = time.Since(start).Round(time.Millisecond).String()
	case <-pctx.Done():
		check.Status = StatusDown
		check.Detail = fmt.Sprintf("probe timed out after %s", a.timeout)
		check.Duration = time.Since(start).Round(time.Millisecond).String()
	}

	if check.Status == StatusDown {
		a.logger.Warn("capability probe down",
			slog.String("component", check.Component),
			slog.Bool("optional", check.Optional),
			slog.String("detail", check.Detail),
		)
	}
	return check
}
