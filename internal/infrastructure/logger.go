// Package infrastructure provides cross-cutting runtime services: logging,
// trace propagation, and OpenTelemetry provider management. The logging
// initializer is one-shot per process; everything else hangs off the
// configuration snapshot it was given.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"chassis/internal/config"
)

// ErrLoggingInitialized reports a second InitLogging call in the same
// process. The chosen backend is a process-wide decision; callers must not
// retry with a different configuration.
var ErrLoggingInitialized = errors.New("logging already initialized for this process")

// loggingActive latches once a backend has been installed successfully.
var loggingActive atomic.Bool

// LogGuard owns the resources behind the installed logging backend. Close
// flushes buffers and releases file handles; it is safe to call more than
// once.
type LogGuard struct {
	Backend string
	Logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	flush   []func() error
	closers []io.Closer
}

// Close flushes and releases the backend. Errors from individual closers are
// joined; flush errors on process streams are ignored because stdout cannot
// be synced on every platform.
func (g *LogGuard) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	for _, fn := range g.flush {
		_ = fn()
	}
	var errs []error
	for _, c := range g.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InitLogging installs the configured logging backend and returns a guard
// that releases it. The backend is chosen exactly once per process: a second
// call returns ErrLoggingInitialized regardless of configuration. A failed
// initialization does not consume the one-shot slot.
//
// The standard backend is slog with the configured format. The alternate
// backend is zap with a fixed JSON encoding; it never consults LOG_FORMAT
// and refuses to coexist with OpenTelemetry trace correlation.
func InitLogging(cfg *config.Config) (*LogGuard, error) {
	if cfg.Logging.Backend == config.BackendZap && cfg.Features.OTel {
		return nil, fmt.Errorf("LOG_BACKEND=zap cannot be combined with FEATURE_OTEL=true: trace correlation requires the slog backend")
	}
	if !loggingActive.CompareAndSwap(false, true) {
		return nil, ErrLoggingInitialized
	}

	var (
		guard *LogGuard
		err   error
	)
	switch cfg.Logging.Backend {
	case config.BackendZap:
		guard, err = initZapBackend(cfg.Logging)
	default:
		guard, err = initSlogBackend(cfg.Logging)
	}
	if err != nil {
		loggingActive.Store(false)
		return nil, err
	}

	slog.SetDefault(guard.Logger)
	return guard, nil
}

// ResetLoggingForTesting clears the one-shot latch. Tests that exercise
// InitLogging call this between cases; production code never does.
func ResetLoggingForTesting() {
	loggingActive.Store(false)
}

// initSlogBackend builds the standard backend: slog writing to stdout, and
// additionally to LOG_FILE when set.
func initSlogBackend(cfg config.LoggingConfig) (*LogGuard, error) {
	guard := &LogGuard{Backend: config.BackendSlog}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		guard.closers = append(guard.closers, file)
		output = io.MultiWriter(os.Stdout, file)
	}

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Level),
		AddSource: cfg.IncludeSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	case config.LogFormatCompact:
		opts.ReplaceAttr = dropTimeAttr
		handler = slog.NewTextHandler(output, opts)
	default: // pretty
		handler = slog.NewTextHandler(output, opts)
	}

	guard.Logger = slog.New(&traceHandler{Handler: handler})
	return guard, nil
}

// dropTimeAttr removes the timestamp from compact output; the collector adds
// its own arrival time.
func dropTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// parseLogLevel converts a configuration level to slog.Level. Unknown values
// never reach here; the loader validates the enum.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openLogFile opens the log file for appending, creating parent directories
// as needed.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// traceHandler wraps a slog.Handler and injects correlation IDs from the
// context into every record, so call sites do not have to thread them
// manually.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
