// Package middleware implements the fixed request-processing chain. The
// order is load-bearing and assembled by the app builder; individual
// middlewares here make no assumptions about their position beyond what
// their doc comments state.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apierrors "chassis/internal/errors"
	"chassis/internal/infrastructure"
)

// RequestIDHeader carries the correlation ID on both request and response.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns the request's correlation ID: an inbound X-Request-Id
// is trusted, otherwise a UUID is generated. The ID is written to the
// response header before the handler runs, which is how middlewares outside
// this one observe it after completion.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := infrastructure.WithRequestID(r.Context(), requestID)
		if infrastructure.GetTraceID(ctx) == "" {
			// No tracing span upstream: the request ID doubles as the
			// log correlation ID.
			ctx = infrastructure.WithTraceID(ctx, requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logFieldsKey carries the mutable container that inner middlewares fill in
// for the completion log line.
type logFieldsKey struct{}

// LogFields is populated by middlewares running inside RequestLogger and
// read by it after the handler returns.
type LogFields struct {
	Headers []slog.Attr
}

func logFieldsFrom(ctx context.Context) *LogFields {
	fields, _ := ctx.Value(logFieldsKey{}).(*LogFields)
	return fields
}

// RequestLogger emits one structured completion line per request. It runs
// outside SensitiveHeaders and RequestID; it reads the correlation ID from
// the response header those inner middlewares populate, so the line always
// carries it.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &LogFields{}
			ctx := context.WithValue(r.Context(), logFieldsKey{}, fields)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("duration", time.Since(start).String()),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if requestID := ww.Header().Get(RequestIDHeader); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			attrs = append(attrs, fields.Headers...)

			logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}

// SensitiveHeaders selects which request headers reach the completion log
// line: only allowlisted headers are collected, and denylisted names are
// always redacted even when allowlisted. It must run inside RequestLogger.
func SensitiveHeaders(allowlist, denylist []string) func(http.Handler) http.Handler {
	allowed := canonicalSet(allowlist)
	denied := canonicalSet(denylist)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fields := logFieldsFrom(r.Context()); fields != nil {
				for name := range allowed {
					value := r.Header.Get(name)
					if value == "" {
						continue
					}
					if denied[name] {
						value = "[REDACTED]"
					}
					fields.Headers = append(fields.Headers,
						slog.String("header_"+name, value))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func canonicalSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[http.CanonicalHeaderKey(name)] = true
	}
	return set
}

// Recoverer converts handler panics into a logged 500. http.ErrAbortHandler
// is re-raised; it is the sanctioned way to abort a response.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rvr),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					writeError(w, r, apierrors.ErrInternalServer)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// BodyLimit rejects requests whose declared length exceeds the limit with
// 413 before the handler runs, and caps chunked bodies via MaxBytesReader
// so oversized streams fail at read time.
func BodyLimit(limitBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limitBytes {
				infrastructure.LoggerFromContext(r.Context()).WarnContext(r.Context(),
					"request body too large",
					slog.Int64("content_length", r.ContentLength),
					slog.Int64("limit_bytes", limitBytes),
				)
				writeError(w, r, apierrors.RequestTooLargeError(limitBytes))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter applies a process-global request budget. Per-client limiting
// is a gateway concern; this guards the process itself.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter converts a per-minute budget into a token bucket with a
// tenth of the budget as burst headroom.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		logger:  logger,
	}
}

// Handler rejects requests over budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, apierrors.ErrRateLimitExceeded)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Timeout sets the per-request context deadline. Handlers observe it
// through ctx.Done(); a zero duration disables the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return chimiddleware.Timeout(timeout)
}

// Compress enables response compression at the default level.
func Compress() func(http.Handler) http.Handler {
	return chimiddleware.Compress(5)
}

// RealIP resolves the client address from proxy headers.
func RealIP(next http.Handler) http.Handler {
	return chimiddleware.RealIP(next)
}

// writeError renders an APIError as plain JSON. Middleware errors fire for
// core and merged user routes alike, so they use the bare error shape, not
// the core envelope.
func writeError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, apiErr)
}
