package logtrace

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	// CorrelationIDKey carries the id that ties all lines of one flow together.
	CorrelationIDKey ctxKey = "correlation_id"
	// OriginKey carries the phase or command that produced the line.
	OriginKey ctxKey = "origin"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Setup replaces the process logger. env "dev" selects the console encoder,
// anything else emits JSON.
func Setup(serviceName, env, level string) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		l = zap.NewNop()
	}
	l = l.With(zap.String("service", serviceName))

	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLogger installs an already-built zap logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered entries.
func Sync() {
	_ = Logger().Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CtxWithCorrelationID stores the correlation id in ctx.
func CtxWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// CorrelationIDFromContext returns the correlation id stored in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(CorrelationIDKey).(string)
	return v
}

// CtxWithOrigin stores the origin in ctx.
func CtxWithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, OriginKey, origin)
}

// OriginFromContext returns the origin stored in ctx, or "".
func OriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(OriginKey).(string)
	return v
}

func Debug(ctx context.Context, msg string, fields Fields) { log(zapcore.DebugLevel, ctx, msg, fields) }
func Info(ctx context.Context, msg string, fields Fields)  { log(zapcore.InfoLevel, ctx, msg, fields) }
func Warn(ctx context.Context, msg string, fields Fields)  { log(zapcore.WarnLevel, ctx, msg, fields) }
func Error(ctx context.Context, msg string, fields Fields) { log(zapcore.ErrorLevel, ctx, msg, fields) }

func log(level zapcore.Level, ctx context.Context, msg string, fields Fields) {
	l := Logger()
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(toZapFields(ctx, fields)...)
	}
}

func toZapFields(ctx context.Context, fields Fields) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	if id := CorrelationIDFromContext(ctx); id != "" {
		out = append(out, zap.String(FieldCorrelationID, id))
	}
	if origin := OriginFromContext(ctx); origin != "" {
		out = append(out, zap.String(FieldOrigin, origin))
	}
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
