package typedevent

import (
	"context"
	"errors"
	"runtime/debug"
)

// InvocationMode tags how a handler completes.
type InvocationMode int

const (
	// ModeSync handlers are finished when their function returns.
	ModeSync InvocationMode = iota

	// ModeAsync handlers return an Awaitable that settles later.
	ModeAsync
)

// String returns the mode name.
func (m InvocationMode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Awaitable is the completion signal of an asynchronous handler.
// It settles when it delivers a value or is closed. A nil error, or a close
// without a value, means success. A nil Awaitable is already settled.
type Awaitable = <-chan error

// HandlerFunc is a handler that completes when it returns.
type HandlerFunc[S, A any] func(ctx context.Context, sender S, args A) error

// AsyncHandlerFunc is a handler that completes when its Awaitable settles.
type AsyncHandlerFunc[S, A any] func(ctx context.Context, sender S, args A) Awaitable

// Handler is an attachable event handler.
//
// Go function values are not comparable, so the *Handler is the identity an
// event uses for Detach and, for weak events, the object that is weakly held.
// Attaching the same *Handler twice yields two entries.
type Handler[S, A any] struct {
	name  string
	mode  InvocationMode
	fn    HandlerFunc[S, A]
	async AsyncHandlerFunc[S, A]
}

// HandlerOption configures a Handler.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	name string
}

// WithHandlerName names the handler in logs, metrics and errors.
func WithHandlerName(name string) HandlerOption {
	return func(o *handlerOptions) {
		o.name = name
	}
}

// NewHandler wraps a synchronous handler function.
func NewHandler[S, A any](fn HandlerFunc[S, A], opts ...HandlerOption) *Handler[S, A] {
	o := applyHandlerOptions(opts)
	return &Handler[S, A]{name: o.name, mode: ModeSync, fn: fn}
}

// NewAsyncHandler wraps an asynchronous handler function.
func NewAsyncHandler[S, A any](fn AsyncHandlerFunc[S, A], opts ...HandlerOption) *Handler[S, A] {
	o := applyHandlerOptions(opts)
	return &Handler[S, A]{name: o.name, mode: ModeAsync, async: fn}
}

func applyHandlerOptions(opts []HandlerOption) handlerOptions {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "anonymous"
	}
	return o
}

// Name returns the handler name.
func (h *Handler[S, A]) Name() string {
	return h.name
}

// Mode returns whether the handler is synchronous or asynchronous.
func (h *Handler[S, A]) Mode() InvocationMode {
	return h.mode
}

func (h *Handler[S, A]) valid() bool {
	if h == nil {
		return false
	}
	if h.mode == ModeAsync {
		return h.async != nil
	}
	return h.fn != nil
}

// call runs the handler function, returning the immediate error for sync
// handlers or the Awaitable for async ones. Panics propagate to the caller.
func (h *Handler[S, A]) call(ctx context.Context, sender S, args A) (Awaitable, error) {
	if h.mode == ModeAsync {
		return h.async(ctx, sender, args), nil
	}
	return nil, h.fn(ctx, sender, args)
}

// Async runs fn on a new goroutine and returns an Awaitable for its result.
// A panic in fn settles the Awaitable with a *PanicError.
func Async(fn func() error) Awaitable {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- &PanicError{Value: r, Stack: string(debug.Stack())}
			}
		}()
		ch <- fn()
	}()
	return ch
}

// Resolved returns an Awaitable that has already succeeded.
func Resolved() Awaitable {
	ch := make(chan error)
	close(ch)
	return ch
}

// Rejected returns an Awaitable that has already failed with err.
func Rejected(err error) Awaitable {
	if err == nil {
		err = errors.New("rejected with nil error")
	}
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
