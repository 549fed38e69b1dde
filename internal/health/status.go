// Package health classifies the liveness of infrastructure capabilities and
// reduces per-capability results to a single readiness verdict. The
// aggregator produces the verdict; the HTTP boundary decides how to encode
// it.
package health

import "time"

// Status classifies one capability's probe outcome.
type Status string

const (
	// StatusUp means the probe succeeded within its timeout.
	StatusUp Status = "up"
	// StatusDegraded means the probe succeeded but reported a warning.
	StatusDegraded Status = "degraded"
	// StatusDown means the probe failed or timed out.
	StatusDown Status = "down"
	// StatusUnknown means the capability implements no probe. Distinct from
	// StatusDown: absence of evidence is not evidence of failure.
	StatusUnknown Status = "unknown"
)

// Verdict is the overall readiness classification.
type Verdict string

const (
	VerdictReady    Verdict = "ready"
	VerdictDegraded Verdict = "degraded"
	VerdictNotReady Verdict = "not_ready"
)

// Check is the probe result for a single capability.
type Check struct {
	Component string `json:"component"`
	Status    Status `json:"status"`
	Optional  bool   `json:"optional,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Report is one readiness evaluation: the verdict plus per-capability
// detail.
type Report struct {
	Verdict   Verdict   `json:"verdict"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached,omitempty"`
}

// Ready reports whether the verdict allows traffic.
func (r Report) Ready() bool {
	return r.Verdict != VerdictNotReady
}

// Reduce folds per-capability checks into the overall verdict:
//
//   - Down on any required capability: NotReady.
//   - Degraded anywhere, with no Down present at all: Degraded.
//   - Otherwise: Ready.
//
// Optional-capability failures never demote the verdict to NotReady, and
// Unknown never counts against it.
func Reduce(checks []Check) Verdict {
	var requiredDown, anyDown, anyDegraded bool
	for _, c := range checks {
		switch c.Status {
		case StatusDown:
			anyDown = true
			if !c.Optional {
				requiredDown = true
			}
		case StatusDegraded:
			anyDegraded = true
		}
	}
	switch {
	case requiredDown:
		return VerdictNotReady
	case anyDegraded && !anyDown:
		return VerdictDegraded
	default:
		return VerdictReady
	}
}
