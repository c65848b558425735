// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("document.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

type runCtxKey struct{}
type documentCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// maxIDLen bounds IDs copied into every log line.
const maxIDLen = 128

func clampID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen]
	}
	return id
}

// WithRunID adds the extraction run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, clampID(runID))
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithDocumentID adds the caller's document ID to context. Document IDs are
// caller-supplied and are truncated to 128 bytes.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, clampID(documentID))
}

// DocumentIDFromContext extracts the document ID from context.
func DocumentIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(documentCtxKey{}).(string)
	return s
}

// WithRequestID adds an HTTP request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, clampID(requestID))
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
