// Package context carries request- and run-scoped tracing values.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies one API request or one background run. Background
// runs (reload, DDL regeneration, change delivery) carry an Operation name
// and no RequestID.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	Operation string
}

type traceContextKey struct{}

// WithTrace binds trace to ctx.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace bound to ctx or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// NewSpanID returns a 16 character span id.
func NewSpanID() string {
	return uuid.New().String()[:16]
}

// StartRun binds a fresh trace for a background operation. A trace already on
// ctx is kept as the parent: its TraceID carries over and only the span and
// operation change.
func StartRun(ctx context.Context, operation string) context.Context {
	run := &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    NewSpanID(),
		Operation: operation,
	}
	if parent := GetTrace(ctx); parent != nil {
		run.TraceID = parent.TraceID
		run.RequestID = parent.RequestID
	}
	return WithTrace(ctx, run)
}
