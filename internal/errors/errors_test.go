package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	assert.Equal(t, "Resource not found", err.Error())
}

func TestAPIError_Render(t *testing.T) {
	err := New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err.Render(w, r))
}

func TestPredefinedStatuses(t *testing.T) {
	tests := []struct {
		err    *APIError
		status int
		code   string
	}{
		{ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{ErrRequestTooLarge, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.StatusCode, tt.code)
		assert.Equal(t, tt.code, tt.err.ErrorCode)
	}
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NotFound(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), `"error_code":"NOT_FOUND"`)
}

func TestMethodNotAllowedHandler(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowed(w, httptest.NewRequest(http.MethodPost, "/readonly", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"METHOD_NOT_ALLOWED"`)
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("capability")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "capability not found", err.Message)
	assert.Equal(t, "capability", err.Details)
}

func TestRequestTooLargeError(t *testing.T) {
	err := RequestTooLargeError(1 << 20)
	assert.Equal(t, http.StatusRequestEntityTooLarge, err.StatusCode)
	assert.Contains(t, err.Details, "1048576 bytes")
}

func TestNotReadyError(t *testing.T) {
	err := NotReadyError(map[string]string{"db": "down"})
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "NOT_READY", err.ErrorCode)
	assert.NotNil(t, err.Details)
}
