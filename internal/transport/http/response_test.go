package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/buildinfo"
	apierrors "chassis/internal/errors"
	"chassis/internal/infrastructure"
)

func TestOK_CarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(infrastructure.WithRequestID(r.Context(), "req-42"))

	OK(w, r, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	env := decodeEnvelope(t, w)
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, "req-42", env.RequestID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Empty(t, env.Code)
}

func TestError_RendersAPIErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, apierrors.RequestTooLargeError(1024))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "REQUEST_TOO_LARGE", env.Code)
	assert.Equal(t, "limit is 1024 bytes", env.Data)
}

func TestResponseMode_DisablesEnvelope(t *testing.T) {
	handler := ResponseMode(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		OK(w, r, map[string]string{"hello": "world"})
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hello":"world"}`, w.Body.String())
}

func TestResponseMode_BareError(t *testing.T) {
	handler := ResponseMode(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, apierrors.ErrServiceUnavailable)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"SERVICE_UNAVAILABLE"`)
	assert.NotContains(t, w.Body.String(), `"timestamp"`)
}

func TestVersionHandler(t *testing.T) {
	info := buildinfo.Collect("chassis-app", "dev")
	h := NewVersionHandler(info)

	w := httptest.NewRecorder()
	h.Version(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "ok", env.Status)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, info.Version, data["version"])
	assert.Equal(t, "chassis-app", data["name"])
	assert.Equal(t, "dev", data["env"])
	assert.NotEmpty(t, data["go_version"])
}
