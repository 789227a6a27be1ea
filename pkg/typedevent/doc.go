/*
Package typedevent provides typed publish/subscribe events for in-process
fan-out.

# Overview

An event source is owned by whatever raises the event. Consumers attach
handlers; the owner invokes the event with a sender and an argument value and
every attached handler is called. Two flavours exist:

  - Event holds strong references to its handlers.
  - WeakEvent holds weak references; a handler that nothing else keeps alive
    is collected and silently detached, and HandlerFinalized reports it.

Handlers are values, not funcs, because Go funcs are not comparable:

	type Server struct{ Addr string }
	type Request struct{ Path string }

	requests := typedevent.NewEvent[*Server, Request](typedevent.WithName("request"))

	audit := typedevent.NewHandler(func(ctx context.Context, s *Server, r Request) error {
	    log.Printf("request %s", r.Path)
	    return nil
	}, typedevent.WithHandlerName("audit"))

	requests.Attach(audit)
	err := requests.Invoke(ctx, srv, Request{Path: "/"})
	requests.Detach(audit)

Owners usually expose only the TypedEvent side so consumers cannot raise it.

# Synchronous and Asynchronous Handlers

NewHandler wraps a function that is done when it returns. NewAsyncHandler
wraps one that returns an Awaitable, a channel that settles later; Async
turns a closure into one:

	upload := typedevent.NewAsyncHandler(func(ctx context.Context, s *Server, r Request) typedevent.Awaitable {
	    return typedevent.Async(func() error { return push(ctx, r) })
	})

Invoke calls every handler in attachment order on the caller's goroutine.
Async handlers are started but not awaited; a later failure is only logged.
InvokeAsync returns a *Completion that settles once every started handler
has settled. With Parallelize (the default) all handlers start at once; a
failure does not cancel the others and the first failure to settle is
reported. Without it handlers run one at a time and the first failure stops
the rest.

# Failures

A handler fails by returning an error, settling its Awaitable with one, or
panicking. Failures are contained per handler and surfaced as a
*HandlerError, unless SwallowExceptions is set:

	err := requests.Invoke(ctx, srv, req)
	var herr *typedevent.HandlerError
	if errors.As(err, &herr) {
	    log.Printf("handler %s failed: %v", herr.Handler, herr.Err)
	}

	var panicErr *typedevent.PanicError
	if errors.As(err, &panicErr) {
	    log.Printf("panic: %v\n%s", panicErr.Value, panicErr.Stack)
	}

# Weak Events

A weak event keeps its handlers only while something else does. Keep the
*Handler in the subscriber (a struct field is typical) for as long as the
subscription should last:

	resized, err := typedevent.NewWeakEvent[*Window, Size]()
	if err != nil {
	    return err // ErrCapabilityUnavailable
	}

	type Layout struct{ onResize *typedevent.Handler[*Window, Size] }
	l.onResize = typedevent.NewHandler(l.relayout)
	resized.Attach(l.onResize)

Reclamation is reported asynchronously on HandlerFinalized, with handler
failures always swallowed. The leakjournal subpackage records these
notifications. An explicit Detach never produces a notification.

# Observability

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ev := typedevent.NewEvent[*Server, Request](
	    typedevent.WithName("request"),
	    typedevent.WithLogger(logger),
	    typedevent.WithMetrics(true),
	    typedevent.WithTracing(true))

Logs include structured fields: event_id, event_name, handler, duration_ms.
OpenTelemetry metrics: typedevent.invocations, typedevent.handler.failures, etc.
OpenTelemetry tracing: one typedevent.invoke or typedevent.invoke_async span
per invocation.

# Thread Safety

  - Event and WeakEvent are safe for concurrent use
  - Invocations work on a snapshot taken when the call starts, so handlers
    may attach and detach, themselves included, while being invoked
  - Handler is immutable

# Subpackages

  - config: YAML/JSON settings for events
  - leakjournal: records reclaimed weak handlers (memory, SQLite)
  - observability: Logging, metrics, and tracing helpers
*/
package typedevent
