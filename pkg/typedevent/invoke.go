package typedevent

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of invoking a single handler.
// Both SafeInvoke and SafeInvokeAsync produce it, so the fan-out code is
// written once against this type.
type Result struct {
	// Succeeded is true if the handler completed without error or panic.
	Succeeded bool
	// Err is the captured failure when Succeeded is false.
	Err error
	// Mode is the handler's mode.
	Mode InvocationMode
	// Duration covers the call and, for SafeInvokeAsync, the await.
	Duration time.Duration
}

// SafeInvoke calls a handler in the caller's goroutine and never panics.
//
// An async handler is started but not awaited. Its Awaitable is drained in
// the background and any late failure is dropped; events route it to their
// logger instead.
func SafeInvoke[S, A any](ctx context.Context, h *Handler[S, A], sender S, args A) Result {
	return safeInvoke(ctx, h, sender, args, nil)
}

// SafeInvokeAsync calls a handler and waits for it to settle. It never panics.
func SafeInvokeAsync[S, A any](ctx context.Context, h *Handler[S, A], sender S, args A) Result {
	start := time.Now()
	aw, res := callRecovered(ctx, h, sender, args)
	if !res.Succeeded || aw == nil {
		res.Duration = time.Since(start)
		return res
	}
	if err, ok := <-aw; ok && err != nil {
		res = Result{Succeeded: false, Err: err, Mode: res.Mode}
	}
	res.Duration = time.Since(start)
	return res
}

func safeInvoke[S, A any](ctx context.Context, h *Handler[S, A], sender S, args A, onLate func(error)) Result {
	start := time.Now()
	aw, res := callRecovered(ctx, h, sender, args)
	if res.Succeeded && aw != nil {
		go func() {
			if err, ok := <-aw; ok && err != nil && onLate != nil {
				onLate(err)
			}
		}()
	}
	res.Duration = time.Since(start)
	return res
}

// callRecovered runs h.call with panic recovery. A nil handler, or one with
// a nil func, fails with ErrNilHandler.
func callRecovered[S, A any](ctx context.Context, h *Handler[S, A], sender S, args A) (aw Awaitable, res Result) {
	if !h.valid() {
		res.Err = ErrNilHandler
		if h != nil {
			res.Mode = h.mode
		}
		return nil, res
	}
	res.Mode = h.mode
	defer func() {
		if r := recover(); r != nil {
			aw = nil
			res.Succeeded = false
			res.Err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	aw, err := h.call(ctx, sender, args)
	if err != nil {
		return nil, Result{Succeeded: false, Err: err, Mode: h.mode}
	}
	return aw, Result{Succeeded: true, Mode: h.mode}
}

// InvokeHandlers runs handlers one after another in slice order.
// The first failure is returned as a *HandlerError and the remaining handlers
// are skipped, unless opts.SwallowExceptions is set, in which case every
// handler runs and nil is returned.
func InvokeHandlers[S, A any](ctx context.Context, handlers []*Handler[S, A], sender S, args A, opts InvocationOptions) error {
	return invokeHandlers(ctx, nil, handlers, sender, args, opts)
}

// InvokeHandlersAsync runs handlers and waits for all of them to settle.
//
// With opts.Parallelize every handler starts at once on its own goroutine;
// nothing is cancelled when one fails, and the error returned is the first
// failure to settle. Without it handlers run one at a time and the first
// failure stops the rest from starting. opts.SwallowExceptions discards
// failures in both modes.
func InvokeHandlersAsync[S, A any](ctx context.Context, handlers []*Handler[S, A], sender S, args A, opts InvocationOptions) error {
	return invokeHandlersAsync(ctx, nil, handlers, sender, args, opts)
}

func invokeHandlers[S, A any](
	ctx context.Context,
	in *instrumentation,
	handlers []*Handler[S, A],
	sender S,
	args A,
	opts InvocationOptions,
) error {
	for i, h := range handlers {
		if h == nil {
			continue
		}
		res := safeInvoke(ctx, h, sender, args, in.lateFailureFunc(h.name))
		if res.Succeeded {
			continue
		}
		in.handlerFailed(ctx, h.name, i, res.Err, opts.SwallowExceptions)
		if !opts.SwallowExceptions {
			return in.wrap(h.name, i, res)
		}
	}
	return nil
}

func invokeHandlersAsync[S, A any](
	ctx context.Context,
	in *instrumentation,
	handlers []*Handler[S, A],
	sender S,
	args A,
	opts InvocationOptions,
) error {
	if !opts.Parallelize {
		for i, h := range handlers {
			if h == nil {
				continue
			}
			res := SafeInvokeAsync(ctx, h, sender, args)
			if res.Succeeded {
				continue
			}
			in.handlerFailed(ctx, h.name, i, res.Err, opts.SwallowExceptions)
			if !opts.SwallowExceptions {
				return in.wrap(h.name, i, res)
			}
		}
		return nil
	}

	// Plain Group, not WithContext: a failure must not cancel siblings.
	var g errgroup.Group
	for i, h := range handlers {
		if h == nil {
			continue
		}
		g.Go(func() error {
			res := SafeInvokeAsync(ctx, h, sender, args)
			if res.Succeeded {
				return nil
			}
			in.handlerFailed(ctx, h.name, i, res.Err, opts.SwallowExceptions)
			if opts.SwallowExceptions {
				return nil
			}
			return in.wrap(h.name, i, res)
		})
	}
	return g.Wait()
}
