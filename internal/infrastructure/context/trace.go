// Package context carries request-scoped values shared by the HTTP layer
// and the audit pipeline.
package context

import (
	"context"
	"log/slog"
)

type traceKey struct{}

// WithTraceID stores the id that ties a request, its log lines and its
// audit record together.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// GetTraceID returns "" when no id was stored.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// TraceAttr renders the trace id as a log attribute.
func TraceAttr(ctx context.Context) slog.Attr {
	return slog.String("trace_id", GetTraceID(ctx))
}
