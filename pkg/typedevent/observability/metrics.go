package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordInvocation records one Invoke or InvokeAsync call with its
	// duration and whether it surfaced an error.
	RecordInvocation(ctx context.Context, eventName, op string, handlers int, duration time.Duration, err error)

	// RecordHandlerFailure records a failed handler, surfaced or swallowed.
	RecordHandlerFailure(ctx context.Context, eventName, handler string, swallowed bool)

	// RecordHandlerReclaimed records a weak handler reclaimed by the collector.
	RecordHandlerReclaimed(ctx context.Context, eventName string)

	// RecordHandlerFoundDead records a weak handler found collected during
	// an invocation.
	RecordHandlerFoundDead(ctx context.Context, eventName string)
}

// meterName is the instrumentation scope for every instrument.
const meterName = "typedevent"

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	invocations       metric.Int64Counter
	invocationLatency metric.Float64Histogram
	handlerFailures   metric.Int64Counter
	handlerReclaimed  metric.Int64Counter
	handlerFoundDead  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(meterName))
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates the instruments on meter.
func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	invocations, err := meter.Int64Counter("typedevent.invocations",
		metric.WithDescription("Number of event invocations"),
	)
	if err != nil {
		return nil, err
	}

	invocationLatency, err := meter.Float64Histogram("typedevent.invocation.latency_ms",
		metric.WithDescription("Event invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter("typedevent.handler.failures",
		metric.WithDescription("Number of failed handler calls"),
	)
	if err != nil {
		return nil, err
	}

	handlerReclaimed, err := meter.Int64Counter("typedevent.handler.reclaimed",
		metric.WithDescription("Number of weak handlers reclaimed by the garbage collector"),
	)
	if err != nil {
		return nil, err
	}

	handlerFoundDead, err := meter.Int64Counter("typedevent.handler.found_dead",
		metric.WithDescription("Number of weak handlers found collected during invocation"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		invocations:       invocations,
		invocationLatency: invocationLatency,
		handlerFailures:   handlerFailures,
		handlerReclaimed:  handlerReclaimed,
		handlerFoundDead:  handlerFoundDead,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFromProvider returns a MetricsRecorder bound to a
// specific meter provider instead of the global one.
func NewMetricsRecorderFromProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	m, err := newOtelMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordInvocation records an invocation.
func (m *otelMetrics) RecordInvocation(ctx context.Context, eventName, op string, handlers int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_name", eventName),
		attribute.String("operation", op),
		attribute.Bool("success", err == nil),
	}
	m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.invocationLatency.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(append(attrs, attribute.Int("handlers", handlers))...))
}

// RecordHandlerFailure records a handler failure.
func (m *otelMetrics) RecordHandlerFailure(ctx context.Context, eventName, handler string, swallowed bool) {
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_name", eventName),
		attribute.String("handler", handler),
		attribute.Bool("swallowed", swallowed),
	))
}

// RecordHandlerReclaimed records a reclaimed weak handler.
func (m *otelMetrics) RecordHandlerReclaimed(ctx context.Context, eventName string) {
	m.handlerReclaimed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_name", eventName),
	))
}

// RecordHandlerFoundDead records a weak handler found dead.
func (m *otelMetrics) RecordHandlerFoundDead(ctx context.Context, eventName string) {
	m.handlerFoundDead.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_name", eventName),
	))
}
