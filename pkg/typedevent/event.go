package typedevent

import (
	"context"
	"slices"
	"sync"
)

// TypedEvent is the consumer side of an event: it lets callers subscribe
// without being able to raise the event.
type TypedEvent[S, A any] interface {
	// Attach adds a handler. The same handler may be attached several times
	// and is then invoked once per attachment.
	Attach(h *Handler[S, A]) error

	// Detach removes one attachment of h, the earliest one. It returns false
	// and does nothing if h is not attached.
	Detach(h *Handler[S, A]) bool
}

// Source is the owner side of an event. Owners typically keep the Source and
// expose only the TypedEvent.
type Source[S, A any] interface {
	TypedEvent[S, A]

	// Invoke runs the handlers synchronously in attachment order.
	Invoke(ctx context.Context, sender S, args A, opts ...InvokeOption) error

	// InvokeAsync runs the handlers in the background and returns a signal
	// that settles when all started handlers have settled.
	InvokeAsync(ctx context.Context, sender S, args A, opts ...InvokeOption) *Completion
}

// Compile-time interface checks.
var (
	_ Source[any, any] = (*Event[any, any])(nil)
	_ Source[any, any] = (*WeakEvent[any, any])(nil)
)

// Event holds strong references to its handlers.
//
// Event is safe for concurrent use. Invocations work on a snapshot of the
// handler list taken when the call starts, so handlers may attach or detach
// (including themselves) while being invoked.
type Event[S, A any] struct {
	in       *instrumentation
	defaults *InvocationOptions

	mu       sync.Mutex
	handlers []*Handler[S, A]
}

// NewEvent creates an event with no handlers.
//
// Example:
//
//	ev := typedevent.NewEvent[*Server, Request](typedevent.WithName("request"))
//	ev.Attach(typedevent.NewHandler(func(ctx context.Context, s *Server, r Request) error {
//	    return nil
//	}))
//	err := ev.Invoke(ctx, srv, req)
func NewEvent[S, A any](opts ...EventOption) *Event[S, A] {
	cfg := applyEventOptions(opts)
	return newEvent[S, A](cfg)
}

func newEvent[S, A any](cfg eventConfig) *Event[S, A] {
	return &Event[S, A]{
		in:       newInstrumentation(cfg),
		defaults: cfg.defaults,
	}
}

// ID returns the event's unique identifier.
func (e *Event[S, A]) ID() string {
	return e.in.id
}

// Name returns the event's name.
func (e *Event[S, A]) Name() string {
	return e.in.name
}

// Attach implements TypedEvent.
func (e *Event[S, A]) Attach(h *Handler[S, A]) error {
	if !h.valid() {
		return ErrNilHandler
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
	return nil
}

// Detach implements TypedEvent.
func (e *Event[S, A]) Detach(h *Handler[S, A]) bool {
	if h == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.handlers {
		if existing == h {
			e.handlers = slices.Delete(e.handlers, i, i+1)
			return true
		}
	}
	return false
}

// Len returns the number of attachments.
func (e *Event[S, A]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}

func (e *Event[S, A]) snapshot() []*Handler[S, A] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handlers) == 0 {
		return nil
	}
	out := make([]*Handler[S, A], len(e.handlers))
	copy(out, e.handlers)
	return out
}

// Invoke implements Source. It returns the first handler failure as a
// *HandlerError, skipping the handlers after it, unless exceptions are
// swallowed.
func (e *Event[S, A]) Invoke(ctx context.Context, sender S, args A, opts ...InvokeOption) error {
	handlers := e.snapshot()
	if len(handlers) == 0 {
		return nil
	}
	o := resolveInvocationOptions(e.defaults, opts)
	return e.in.run(ctx, opInvoke, len(handlers), func(ctx context.Context) error {
		return invokeHandlers(ctx, e.in, handlers, sender, args, o)
	})
}

// InvokeAsync implements Source. The handler snapshot is taken before
// InvokeAsync returns.
func (e *Event[S, A]) InvokeAsync(ctx context.Context, sender S, args A, opts ...InvokeOption) *Completion {
	handlers := e.snapshot()
	if len(handlers) == 0 {
		return settled(nil)
	}
	o := resolveInvocationOptions(e.defaults, opts)
	return runAsync(ctx, e.in, handlers, sender, args, o)
}

func runAsync[S, A any](
	ctx context.Context,
	in *instrumentation,
	handlers []*Handler[S, A],
	sender S,
	args A,
	opts InvocationOptions,
) *Completion {
	c := newCompletion()
	go func() {
		c.resolve(in.run(ctx, opInvokeAsync, len(handlers), func(ctx context.Context) error {
			return invokeHandlersAsync(ctx, in, handlers, sender, args, opts)
		}))
	}()
	return c
}
