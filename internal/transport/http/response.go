package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "chassis/internal/errors"
	"chassis/internal/infrastructure"
)

// Envelope is the response shape used by the core endpoints. Merged user
// routes are deliberately never wrapped in it; arbitrary handlers keep
// control of their own response shape.
type Envelope struct {
	Status    string      `json:"status"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type envelopeModeKey struct{}

// ResponseMode sets whether OK/Error wrap payloads in the envelope for the
// routes downstream. The app builder applies it to the core endpoints with
// the FEATURE_RESPONSE_ENVELOPE value; without the middleware the envelope
// is on.
func ResponseMode(envelope bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), envelopeModeKey{}, envelope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func envelopeEnabled(ctx context.Context) bool {
	enabled, ok := ctx.Value(envelopeModeKey{}).(bool)
	if !ok {
		return true
	}
	return enabled
}

// OK renders data inside a success envelope.
func OK(w http.ResponseWriter, r *http.Request, data interface{}) {
	OKStatus(w, r, http.StatusOK, data)
}

// OKStatus renders a success envelope with an explicit HTTP status.
func OKStatus(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	if !envelopeEnabled(r.Context()) {
		render.JSON(w, r, data)
		return
	}
	render.JSON(w, r, Envelope{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		RequestID: infrastructure.GetRequestID(r.Context()),
		Data:      data,
	})
}

// Error renders an APIError inside an error envelope with its status code.
func Error(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	render.Status(r, apiErr.StatusCode)
	if !envelopeEnabled(r.Context()) {
		render.JSON(w, r, apiErr)
		return
	}
	render.JSON(w, r, Envelope{
		Status:    "error",
		Code:      apiErr.ErrorCode,
		Message:   apiErr.Message,
		Timestamp: time.Now().UTC(),
		RequestID: infrastructure.GetRequestID(r.Context()),
		Data:      apiErr.Details,
	})
}
