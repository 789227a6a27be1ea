package typedevent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/typedevent/pkg/typedevent/observability"
)

// Operation names used in logs, metrics and spans.
const (
	opInvoke      = "invoke"
	opInvokeAsync = "invoke_async"
)

// instrumentation carries an event's identity and observability sinks.
// A nil *instrumentation is valid and records nothing, which is what the
// free-standing InvokeHandlers functions use.
type instrumentation struct {
	id      string
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func newInstrumentation(cfg eventConfig) *instrumentation {
	id := uuid.New().String()
	name := cfg.name
	if name == "" {
		name = "event-" + id[:8]
	}

	in := &instrumentation{
		id:      id,
		name:    name,
		logger:  observability.EnrichLogger(cfg.logger, id, name),
		metrics: cfg.metrics,
		spans:   cfg.spans,
	}
	if in.metrics == nil {
		in.metrics = observability.NoopMetrics{}
	}
	if in.spans == nil {
		in.spans = observability.NoopSpanManager{}
	}
	return in
}

// run wraps a whole invocation in a span, start/complete logs and metrics.
func (in *instrumentation) run(ctx context.Context, op string, handlers int, fn func(context.Context) error) error {
	if in == nil {
		return fn(ctx)
	}

	ctx, span := in.spans.StartInvokeSpan(ctx, in.name, in.id, op, handlers)
	observability.LogInvokeStart(in.logger, op, handlers)
	start := time.Now()
	elapsed := observability.TimedOperation()

	err := fn(ctx)

	durationMs := elapsed()
	if err != nil {
		observability.LogInvokeError(in.logger, op, err, durationMs)
	} else {
		observability.LogInvokeComplete(in.logger, op, durationMs, handlers)
	}
	in.metrics.RecordInvocation(ctx, in.name, op, handlers, time.Since(start), err)
	in.spans.EndSpanWithError(span, err)
	return err
}

func (in *instrumentation) handlerFailed(ctx context.Context, handler string, index int, err error, swallowed bool) {
	if in == nil {
		return
	}
	observability.LogHandlerFailure(in.logger, handler, index, err, swallowed)
	in.metrics.RecordHandlerFailure(ctx, in.name, handler, swallowed)
	in.spans.AddSpanEvent(ctx, "handler.failed",
		attribute.String("handler", handler),
		attribute.Int("index", index),
		attribute.Bool("swallowed", swallowed),
	)
}

// lateFailureFunc returns the callback for async handlers that were invoked
// synchronously and failed after Invoke returned.
func (in *instrumentation) lateFailureFunc(handler string) func(error) {
	if in == nil {
		return nil
	}
	return func(err error) {
		in.metrics.RecordHandlerFailure(context.Background(), in.name, handler, true)
		observability.LogLateFailure(in.logger, handler, err)
	}
}

func (in *instrumentation) reclaimed(handler string) {
	if in == nil {
		return
	}
	observability.LogHandlerReclaimed(in.logger, handler)
	in.metrics.RecordHandlerReclaimed(context.Background(), in.name)
}

func (in *instrumentation) foundDead(handler string) {
	if in == nil {
		return
	}
	observability.LogHandlerFoundDead(in.logger, handler)
	in.metrics.RecordHandlerFoundDead(context.Background(), in.name)
}

func (in *instrumentation) wrap(handler string, index int, res Result) error {
	herr := &HandlerError{
		Handler: handler,
		Index:   index,
		Mode:    res.Mode,
		Err:     res.Err,
	}
	if in != nil {
		herr.EventName = in.name
	}
	return herr
}
