package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
	"chassis/internal/health"
)

func newTestAggregator(t *testing.T, probers ...health.Prober) *health.Aggregator {
	t.Helper()
	agg := health.NewAggregator(config.ReadinessConfig{ProbeTimeoutSeconds: 5}, slog.Default())
	agg.Register(probers...)
	return agg
}

func upProber(name string) health.Prober {
	return health.ProberFunc{Name: name, Fn: func(context.Context) (health.Status, string) {
		return health.StatusUp, ""
	}}
}

func downProber(name, detail string) health.Prober {
	return health.ProberFunc{Name: name, Fn: func(context.Context) (health.Status, string) {
		return health.StatusDown, detail
	}}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthz_AlwaysHealthy(t *testing.T) {
	// Even with everything down, liveness only says the process is up.
	h := NewHealthHandler(newTestAggregator(t, downProber("db", "gone")), true, slog.Default())

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ok", env.Status)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alive", data["status"])
	assert.NotEmpty(t, data["uptime"])
}

func TestReadyz_DefaultAlwaysAnswers200(t *testing.T) {
	h := NewHealthHandler(newTestAggregator(t, downProber("db", "connection refused")), false, slog.Default())

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// The documented historical behavior: status code stays 200, the
	// verdict lives in the body.
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ok", env.Status)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var report health.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, health.VerdictNotReady, report.Verdict)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, "connection refused", report.Checks[0].Detail)
}

func TestReadyz_StrictStatusAnswers503WhenNotReady(t *testing.T) {
	h := NewHealthHandler(newTestAggregator(t, downProber("db", "gone"), upProber("cache")), true, slog.Default())

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "NOT_READY", env.Code)
}

func TestReadyz_StrictStatusAnswers200WhenReady(t *testing.T) {
	h := NewHealthHandler(newTestAggregator(t, upProber("db"), upProber("cache")), true, slog.Default())

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ok", env.Status)
}

func TestReadyz_DegradedStays200InBothModes(t *testing.T) {
	degraded := health.ProberFunc{Name: "cache", Fn: func(context.Context) (health.Status, string) {
		return health.StatusDegraded, "pool saturated"
	}}

	for _, strict := range []bool{false, true} {
		h := NewHealthHandler(newTestAggregator(t, degraded, upProber("db")), strict, slog.Default())

		w := httptest.NewRecorder()
		h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code, "strict=%v", strict)
	}
}
