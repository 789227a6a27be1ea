package typedevent

import (
	"log/slog"

	"github.com/randalmurphal/typedevent/pkg/typedevent/config"
	"github.com/randalmurphal/typedevent/pkg/typedevent/observability"
)

// InvocationOptions controls a single Invoke or InvokeAsync call.
type InvocationOptions struct {
	// SwallowExceptions discards handler failures instead of returning them.
	// Default: false
	SwallowExceptions bool

	// Parallelize starts every handler at once in InvokeAsync.
	// When false handlers run one at a time, each awaited before the next.
	// Ignored by Invoke.
	// Default: true
	Parallelize bool
}

// DefaultInvocationOptions returns the defaults: propagate failures,
// parallel async fan-out.
func DefaultInvocationOptions() InvocationOptions {
	return InvocationOptions{
		SwallowExceptions: false,
		Parallelize:       true,
	}
}

// InvokeOption overrides one field of the event's default InvocationOptions
// for a single call.
type InvokeOption func(*InvocationOptions)

// WithSwallowExceptions sets InvocationOptions.SwallowExceptions.
//
// Example:
//
//	err := ev.Invoke(ctx, sender, args, typedevent.WithSwallowExceptions(true))
func WithSwallowExceptions(swallow bool) InvokeOption {
	return func(o *InvocationOptions) {
		o.SwallowExceptions = swallow
	}
}

// WithParallelize sets InvocationOptions.Parallelize.
func WithParallelize(parallelize bool) InvokeOption {
	return func(o *InvocationOptions) {
		o.Parallelize = parallelize
	}
}

// WithInvocationOptions replaces every field at once.
func WithInvocationOptions(opts InvocationOptions) InvokeOption {
	return func(o *InvocationOptions) {
		*o = opts
	}
}

func resolveInvocationOptions(defaults *InvocationOptions, opts []InvokeOption) InvocationOptions {
	o := DefaultInvocationOptions()
	if defaults != nil {
		o = *defaults
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// OptionsFromConfig reads invocation defaults from a config.
// Keys: swallow_exceptions (bool), parallelize (bool).
func OptionsFromConfig(cfg config.Config) InvocationOptions {
	d := DefaultInvocationOptions()
	return InvocationOptions{
		SwallowExceptions: cfg.Bool("swallow_exceptions", d.SwallowExceptions),
		Parallelize:       cfg.Bool("parallelize", d.Parallelize),
	}
}

// eventConfig holds construction settings shared by Event and WeakEvent.
type eventConfig struct {
	name     string
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	defaults *InvocationOptions
	registry *WeakRegistry
}

// EventOption configures an Event or WeakEvent at construction.
type EventOption func(*eventConfig)

// WithName names the event in logs, metrics, spans and errors.
// Default: "event-" followed by the first 8 characters of the event ID.
func WithName(name string) EventOption {
	return func(c *eventConfig) {
		c.name = name
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) EventOption {
	return func(c *eventConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics using the global meter provider.
// Default: disabled
func WithMetrics(enabled bool) EventOption {
	return func(c *eventConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = nil
		}
	}
}

// WithMetricsRecorder sets a specific metrics recorder.
func WithMetricsRecorder(recorder observability.MetricsRecorder) EventOption {
	return func(c *eventConfig) {
		c.metrics = recorder
	}
}

// WithTracing enables OpenTelemetry spans using the global tracer provider.
// Default: disabled
func WithTracing(enabled bool) EventOption {
	return func(c *eventConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = nil
		}
	}
}

// WithSpanManager sets a specific span manager.
func WithSpanManager(spans observability.SpanManager) EventOption {
	return func(c *eventConfig) {
		c.spans = spans
	}
}

// WithDefaultInvocationOptions replaces the per-event defaults that
// InvokeOptions are applied over.
func WithDefaultInvocationOptions(opts InvocationOptions) EventOption {
	return func(c *eventConfig) {
		o := opts
		c.defaults = &o
	}
}

// WithWeakRegistry makes a WeakEvent use a private registry instead of
// DefaultWeakRegistry. Ignored by Event.
func WithWeakRegistry(registry *WeakRegistry) EventOption {
	return func(c *eventConfig) {
		c.registry = registry
	}
}

// EventOptionsFromSettings converts loaded settings into event options.
func EventOptionsFromSettings(s config.Settings) []EventOption {
	opts := []EventOption{
		WithDefaultInvocationOptions(InvocationOptions{
			SwallowExceptions: s.SwallowExceptions,
			Parallelize:       s.Parallelize,
		}),
		WithMetrics(s.Metrics),
		WithTracing(s.Tracing),
	}
	if s.EventName != "" {
		opts = append(opts, WithName(s.EventName))
	}
	return opts
}

func applyEventOptions(opts []EventOption) eventConfig {
	var c eventConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
