// Package log is the logging surface of the SDK. Callers embed the SDK in
// their own process, so the SDK never installs a global logger: every
// constructor takes a Logger and falls back to a no-op one.
package log

import (
	"context"

	"github.com/walrusagents/blobflow/pkg/logtrace"

	"go.uber.org/zap"
)

// Logger is the structured logger used throughout the SDK. keysAndValues are
// alternating key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...interface{})
	Info(ctx context.Context, msg string, keysAndValues ...interface{})
	Warn(ctx context.Context, msg string, keysAndValues ...interface{})
	Error(ctx context.Context, msg string, keysAndValues ...interface{})
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewLogger adapts a zap logger. A nil logger yields the process logger set
// up through logtrace.
func NewLogger(l *zap.Logger) Logger {
	if l == nil {
		l = logtrace.Logger()
	}
	return &zapLogger{l: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (z *zapLogger) with(ctx context.Context, kv []interface{}) []interface{} {
	if id := logtrace.CorrelationIDFromContext(ctx); id != "" {
		kv = append(kv, logtrace.FieldCorrelationID, id)
	}
	if origin := logtrace.OriginFromContext(ctx); origin != "" {
		kv = append(kv, logtrace.FieldOrigin, origin)
	}
	return kv
}

func (z *zapLogger) Debug(ctx context.Context, msg string, kv ...interface{}) {
	z.l.Debugw(msg, z.with(ctx, kv)...)
}

func (z *zapLogger) Info(ctx context.Context, msg string, kv ...interface{}) {
	z.l.Infow(msg, z.with(ctx, kv)...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, kv ...interface{}) {
	z.l.Warnw(msg, z.with(ctx, kv)...)
}

func (z *zapLogger) Error(ctx context.Context, msg string, kv ...interface{}) {
	z.l.Errorw(msg, z.with(ctx, kv)...)
}

type noopLogger struct{}

// NewNoopLogger returns a Logger that drops everything.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(context.Context, string, ...interface{}) {}
func (noopLogger) Info(context.Context, string, ...interface{})  {}
func (noopLogger) Warn(context.Context, string, ...interface{})  {}
func (noopLogger) Error(context.Context, string, ...interface{}) {}
