package infrastructure

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"chassis/internal/config"
)

// initZapBackend builds the alternate backend: zap with a fixed production
// JSON encoding. LOG_FORMAT is deliberately not consulted here. When
// LOG_FILE is set the file sink rotates via lumberjack.
func initZapBackend(cfg config.LoggingConfig) (*LogGuard, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	level := zapLevel(cfg.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	guard := &LogGuard{Backend: config.BackendZap}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // megabytes
			MaxBackups: 7,
			MaxAge:     28, // days
			Compress:   true,
		}
		guard.closers = append(guard.closers, rotator)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	var opts []zap.Option
	if cfg.IncludeSource {
		opts = append(opts, zap.AddCaller())
	}

	zl := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(zl)

	guard.flush = append(guard.flush, zl.Sync)
	guard.Logger = slog.New(&zapBridge{zl: zl})
	return guard, nil
}

// zapLevel maps a configuration level to zapcore.Level.
func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapBridge adapts the installed zap logger to slog.Handler so code written
// against *slog.Logger emits through zap when the alternate backend is
// active. zapslog lives in the unstable go.uber.org/zap/exp module and
// cannot inject our context correlation IDs, so the bridge is local.
type zapBridge struct {
	zl     *zap.Logger
	fields []zap.Field
}

func (b *zapBridge) Enabled(_ context.Context, level slog.Level) bool {
	return b.zl.Core().Enabled(zapSlogLevel(level))
}

func (b *zapBridge) Handle(ctx context.Context, r slog.Record) error {
	fields := make([]zap.Field, 0, len(b.fields)+r.NumAttrs()+2)
	fields = append(fields, b.fields...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, zapField(a))
		return true
	})
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	switch {
	case r.Level >= slog.LevelError:
		b.zl.Error(r.Message, fields...)
	case r.Level >= slog.LevelWarn:
		b.zl.Warn(r.Message, fields...)
	case r.Level >= slog.LevelInfo:
		b.zl.Info(r.Message, fields...)
	default:
		b.zl.Debug(r.Message, fields...)
	}
	return nil
}

func (b *zapBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]zap.Field, 0, len(b.fields)+len(attrs))
	fields = append(fields, b.fields...)
	for _, a := range attrs {
		fields = append(fields, zapField(a))
	}
	return &zapBridge{zl: b.zl, fields: fields}
}

func (b *zapBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	fields := make([]zap.Field, 0, len(b.fields)+1)
	fields = append(fields, b.fields...)
	fields = append(fields, zap.Namespace(name))
	return &zapBridge{zl: b.zl, fields: fields}
}

func zapField(a slog.Attr) zap.Field {
	switch a.Value.Kind() {
	case slog.KindString:
		return zap.String(a.Key, a.Value.String())
	case slog.KindInt64:
		return zap.Int64(a.Key, a.Value.Int64())
	case slog.KindBool:
		return zap.Bool(a.Key, a.Value.Bool())
	case slog.KindFloat64:
		return zap.Float64(a.Key, a.Value.Float64())
	case slog.KindDuration:
		return zap.Duration(a.Key, a.Value.Duration())
	case slog.KindTime:
		return zap.Time(a.Key, a.Value.Time())
	default:
		return zap.Any(a.Key, a.Value.Any())
	}
}

func zapSlogLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
