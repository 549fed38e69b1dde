// Package errors defines the structured error responses served by the HTTP
// boundary. Handlers return *APIError values; the transport layer renders
// them through the response envelope.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is a structured API error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer so chi/render sets the HTTP status.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates an APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates an APIError carrying additional detail.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors for common scenarios.
var (
	// 400 Bad Request
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")

	// 404 Not Found
	ErrNotFound = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")

	// 405 Method Not Allowed
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")

	// 413 Request Entity Too Large
	ErrRequestTooLarge = New(http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body exceeds the configured limit")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")

	// 503 Service Unavailable
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)

// NotFound is the router fallback for unmatched paths. It fires for core
// and merged routes alike, so it renders the bare error shape rather than
// the core response envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, ErrNotFound.StatusCode)
	render.JSON(w, r, ErrNotFound)
}

// MethodNotAllowed is the router fallback for matched paths hit with an
// unsupported method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, ErrMethodNotAllowed.StatusCode)
	render.JSON(w, r, ErrMethodNotAllowed)
}

// NotFoundError creates a not found error naming the resource.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// RequestTooLargeError reports the configured body limit.
func RequestTooLargeError(limitBytes int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
		"Request body exceeds the configured limit",
		fmt.Sprintf("limit is %d bytes", limitBytes))
}

// NotReadyError carries the readiness report when /readyz rejects traffic.
func NotReadyError(details interface{}) *APIError {
	return NewWithDetails(http.StatusServiceUnavailable, "NOT_READY",
		"Service is not ready", details)
}
