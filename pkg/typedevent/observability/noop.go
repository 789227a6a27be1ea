package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordInvocation does nothing.
func (NoopMetrics) RecordInvocation(_ context.Context, _, _ string, _ int, _ time.Duration, _ error) {
}

// RecordHandlerFailure does nothing.
func (NoopMetrics) RecordHandlerFailure(_ context.Context, _, _ string, _ bool) {}

// RecordHandlerReclaimed does nothing.
func (NoopMetrics) RecordHandlerReclaimed(_ context.Context, _ string) {}

// RecordHandlerFoundDead does nothing.
func (NoopMetrics) RecordHandlerFoundDead(_ context.Context, _ string) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartInvokeSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartInvokeSpan(ctx context.Context, _, _, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
