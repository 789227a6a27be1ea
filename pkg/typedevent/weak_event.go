package typedevent

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"
	"weak"
)

// FinalizationNotice is delivered on WeakEvent.HandlerFinalized when an
// attached handler was reclaimed by the garbage collector.
type FinalizationNotice[S, A any] struct {
	// EventSource is the weak event the handler was attached to.
	EventSource *WeakEvent[S, A]
	// HandlerRef is the dead weak reference; its Value is always nil.
	HandlerRef weak.Pointer[Handler[S, A]]
	// HandlerName is the name the handler was created with.
	HandlerName string
	// ReclaimedAt is when the reclamation was observed.
	ReclaimedAt time.Time
}

// WeakEvent holds its handlers weakly. A handler that is no longer
// referenced anywhere else is collected and silently detached; subscribers
// of HandlerFinalized are told about it.
//
// Because Go cannot compare funcs, identity is the *Handler. Keep the
// *Handler alive for as long as the subscription should last.
//
// A handler that was explicitly detached never produces a notification, and
// a handler found dead during an invocation is dropped without one.
type WeakEvent[S, A any] struct {
	in        *instrumentation
	defaults  *InvocationOptions
	registry  *WeakRegistry
	finalized *Event[*WeakEvent[S, A], FinalizationNotice[S, A]]

	mu      sync.Mutex
	entries []*weakEntry[S, A]
}

// NewWeakEvent creates a weak event. It uses the process-wide registry unless
// WithWeakRegistry is given.
// Returns ErrCapabilityUnavailable if the runtime cannot report reclamation.
func NewWeakEvent[S, A any](opts ...EventOption) (*WeakEvent[S, A], error) {
	if !finalizationSupported() {
		return nil, ErrCapabilityUnavailable
	}

	cfg := applyEventOptions(opts)
	registry := cfg.registry
	if registry == nil {
		var err error
		registry, err = DefaultWeakRegistry()
		if err != nil {
			return nil, err
		}
	}

	in := newInstrumentation(cfg)

	finCfg := cfg
	finCfg.name = in.name + ".finalized"
	finCfg.defaults = &InvocationOptions{SwallowExceptions: true, Parallelize: true}

	return &WeakEvent[S, A]{
		in:        in,
		defaults:  cfg.defaults,
		registry:  registry,
		finalized: newEvent[*WeakEvent[S, A], FinalizationNotice[S, A]](finCfg),
	}, nil
}

// MustNewWeakEvent is like NewWeakEvent but panics on error.
func MustNewWeakEvent[S, A any](opts ...EventOption) *WeakEvent[S, A] {
	e, err := NewWeakEvent[S, A](opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// ID returns the event's unique identifier.
func (e *WeakEvent[S, A]) ID() string {
	return e.in.id
}

// Name returns the event's name.
func (e *WeakEvent[S, A]) Name() string {
	return e.in.name
}

// HandlerFinalized is raised asynchronously, with exceptions swallowed,
// each time an attached handler is reclaimed.
func (e *WeakEvent[S, A]) HandlerFinalized() *Event[*WeakEvent[S, A], FinalizationNotice[S, A]] {
	return e.finalized
}

// Attach implements TypedEvent. The event keeps only a weak reference to h.
func (e *WeakEvent[S, A]) Attach(h *Handler[S, A]) error {
	if !h.valid() {
		return ErrNilHandler
	}

	// Held across registration so a cleanup that fires immediately still
	// finds the entry in the list.
	e.mu.Lock()
	entry := registerWeak(e.registry, e, h)
	e.entries = append(e.entries, entry)
	e.mu.Unlock()

	runtime.KeepAlive(h)
	return nil
}

// Detach implements TypedEvent.
func (e *WeakEvent[S, A]) Detach(h *Handler[S, A]) bool {
	if h == nil {
		return false
	}
	entry := releaseWeak(e.registry, e, h)
	return e.remove(entry)
}

// Len returns the number of attachments, including any whose handler has
// been collected but not yet noticed.
func (e *WeakEvent[S, A]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *WeakEvent[S, A]) remove(entry *weakEntry[S, A]) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := slices.Index(e.entries, entry)
	if idx < 0 {
		return false
	}
	e.entries = slices.Delete(e.entries, idx, idx+1)
	return true
}

// liveHandlers resolves every entry and drops the dead ones.
// The returned handlers are strong references for the length of the call.
func (e *WeakEvent[S, A]) liveHandlers() []*Handler[S, A] {
	var (
		live []*Handler[S, A]
		dead []*weakEntry[S, A]
	)

	e.mu.Lock()
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if h := entry.ref.Value(); h != nil {
			live = append(live, h)
			kept = append(kept, entry)
			continue
		}
		dead = append(dead, entry)
	}
	clear(e.entries[len(kept):])
	e.entries = kept
	e.mu.Unlock()

	for _, entry := range dead {
		e.registry.unregisterRef(e, entry)
		e.in.foundDead(entry.name)
	}
	return live
}

// Invoke implements Source. Handlers already collected are detached and
// skipped.
func (e *WeakEvent[S, A]) Invoke(ctx context.Context, sender S, args A, opts ...InvokeOption) error {
	handlers := e.liveHandlers()
	if len(handlers) == 0 {
		return nil
	}
	o := resolveInvocationOptions(e.defaults, opts)
	return e.in.run(ctx, opInvoke, len(handlers), func(ctx context.Context) error {
		return invokeHandlers(ctx, e.in, handlers, sender, args, o)
	})
}

// InvokeAsync implements Source. Handlers already collected are detached and
// skipped.
func (e *WeakEvent[S, A]) InvokeAsync(ctx context.Context, sender S, args A, opts ...InvokeOption) *Completion {
	handlers := e.liveHandlers()
	if len(handlers) == 0 {
		return settled(nil)
	}
	o := resolveInvocationOptions(e.defaults, opts)
	return runAsync(ctx, e.in, handlers, sender, args, o)
}

// reclaim is called by the registry once a tracked handler is collected.
func (e *WeakEvent[S, A]) reclaim(reg registration) {
	entry, ok := reg.(*weakEntry[S, A])
	if !ok || !e.remove(entry) {
		return
	}

	e.in.reclaimed(entry.name)
	notice := FinalizationNotice[S, A]{
		EventSource: e,
		HandlerRef:  entry.ref,
		HandlerName: entry.name,
		ReclaimedAt: time.Now(),
	}
	e.finalized.InvokeAsync(context.Background(), e, notice, WithSwallowExceptions(true))
}
