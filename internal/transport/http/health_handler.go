package http

import (
	"log/slog"
	"net/http"
	"time"

	apierrors "chassis/internal/errors"
	"chassis/internal/health"
)

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	aggregator   *health.Aggregator
	strictStatus bool
	startedAt    time.Time
	logger       *slog.Logger
}

// NewHealthHandler creates the handler. With strictStatus false, /readyz
// always answers 200 and the verdict lives only in the body; with it true, a
// NotReady verdict answers 503 so load balancers can act on the status code
// alone. Degraded stays 200 in both modes.
func NewHealthHandler(aggregator *health.Aggregator, strictStatus bool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		aggregator:   aggregator,
		strictStatus: strictStatus,
		startedAt:    time.Now(),
		logger:       logger.With(slog.String("handler", "health")),
	}
}

// Healthz handles GET /healthz: the process is up, so the answer is always
// healthy regardless of infra state.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	OK(w, r, map[string]string{
		"status": "alive",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Readyz handles GET /readyz by delegating to the readiness aggregator.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := h.aggregator.Report(r.Context())

	if h.strictStatus && !report.Ready() {
		h.logger.WarnContext(r.Context(), "readiness rejected",
			slog.String("verdict", string(report.Verdict)))
		Error(w, r, apierrors.NotReadyError(report))
		return
	}
	OK(w, r, report)
}
