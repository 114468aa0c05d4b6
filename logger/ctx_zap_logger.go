package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const traceIDCtxKey ctxKey = 0

// WithTraceID returns a context carrying the request correlation id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey, traceID)
}

// TraceIDFromContext extracts the correlation id, or "" when absent.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// CtxZapLogger is a context-aware zap wrapper. The module is bound at
// creation time; call sites only pass ctx and the correlation id is
// extracted automatically.
type CtxZapLogger struct {
	base       *zap.Logger
	module     string
	traceIDKey string
}

// enrichFields prepends the trace id field when the context carries one.
func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return fields
	}
	enriched := make([]zap.Field, 0, len(fields)+1)
	enriched = append(enriched, zap.String(l.traceIDKey, traceID))
	return append(enriched, fields...)
}

// DebugCtx logs at Debug level with the trace id from ctx.
func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

// InfoCtx logs at Info level with the trace id from ctx.
func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

// WarnCtx logs at Warn level with the trace id from ctx.
func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// ErrorCtx logs at Error level with the trace id from ctx.
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.enrichFields(ctx, fields)...)
}

// Debug logs without a context.
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.base.Debug(msg, fields...)
}

// Info logs without a context.
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.base.Info(msg, fields...)
}

// Warn logs without a context.
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.base.Warn(msg, fields...)
}

// Error logs without a context.
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.base.Error(msg, fields...)
}

// With returns a child logger carrying preset fields.
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:       l.base.With(fields...),
		module:     l.module,
		traceIDKey: l.traceIDKey,
	}
}

// Module returns the module name bound at creation.
func (l *CtxZapLogger) Module() string {
	return l.module
}

// Sync flushes buffered records.
func (l *CtxZapLogger) Sync() error {
	return l.base.Sync()
}
