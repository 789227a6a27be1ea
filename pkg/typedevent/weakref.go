package typedevent

import (
	"runtime"
	"slices"
	"sync"
	"weak"
)

// finalizationSupported reports whether the runtime can notify us when a
// weakly held handler is reclaimed. The Go runtime always can; the probe is
// a variable so the unavailable path stays reachable.
var finalizationSupported = func() bool { return true }

// reclaimer is the owner of weak entries, notified when one is reclaimed.
type reclaimer interface {
	reclaim(reg registration)
}

// registration is one tracked weak entry.
type registration interface {
	stop()
}

// heldValue is the cleanup argument. It must never reference the handler,
// or the handler would stay reachable forever.
type heldValue struct {
	owner reclaimer
	reg   registration
}

// weakEntry is a single weak attachment of a handler.
type weakEntry[S, A any] struct {
	ref     weak.Pointer[Handler[S, A]]
	name    string
	cleanup runtime.Cleanup
	armed   bool
}

func (e *weakEntry[S, A]) stop() {
	if e.armed {
		e.cleanup.Stop()
	}
}

// WeakRegistry binds weak handler entries to runtime cleanups and routes a
// fired cleanup back to the event that owns the entry.
//
// Every attached weak entry has exactly one live registration. Releasing or
// unregistering an entry stops its cleanup and untracks it, and a cleanup
// for an untracked entry is ignored, so explicit detach and reclamation are
// mutually exclusive.
//
// WeakRegistry is safe for concurrent use.
type WeakRegistry struct {
	mu      sync.Mutex
	tracked map[reclaimer][]registration
	count   int
}

// NewWeakRegistry creates an empty registry.
// Returns ErrCapabilityUnavailable if the runtime cannot report reclamation.
func NewWeakRegistry() (*WeakRegistry, error) {
	if !finalizationSupported() {
		return nil, ErrCapabilityUnavailable
	}
	return &WeakRegistry{
		tracked: make(map[reclaimer][]registration),
	}, nil
}

var (
	defaultRegistry     *WeakRegistry
	defaultRegistryOnce sync.Once
	defaultRegistryErr  error
)

// DefaultWeakRegistry returns the process-wide registry used by weak events
// that were not given one. It is created on first use and never reset.
func DefaultWeakRegistry() (*WeakRegistry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = NewWeakRegistry()
	})
	return defaultRegistry, defaultRegistryErr
}

// Tracked returns the number of live registrations.
func (r *WeakRegistry) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// registerWeak creates a weak entry for h, arms its cleanup and tracks it
// under owner.
func registerWeak[S, A any](r *WeakRegistry, owner reclaimer, h *Handler[S, A]) *weakEntry[S, A] {
	entry := &weakEntry[S, A]{
		ref:  weak.Make(h),
		name: h.name,
	}
	entry.cleanup = runtime.AddCleanup(h, r.fire, heldValue{owner: owner, reg: entry})
	entry.armed = true

	r.mu.Lock()
	r.tracked[owner] = append(r.tracked[owner], entry)
	r.count++
	r.mu.Unlock()

	runtime.KeepAlive(h)
	return entry
}

// releaseWeak finds the earliest entry of owner pointing at h, stops its
// cleanup and untracks it. If h is not tracked it returns a fresh entry that
// matches nothing the owner holds.
func releaseWeak[S, A any](r *WeakRegistry, owner reclaimer, h *Handler[S, A]) *weakEntry[S, A] {
	key := weak.Make(h)

	var found *weakEntry[S, A]
	r.mu.Lock()
	for i, reg := range r.tracked[owner] {
		if entry, ok := reg.(*weakEntry[S, A]); ok && entry.ref == key {
			found = entry
			r.untrackAtLocked(owner, i)
			break
		}
	}
	r.mu.Unlock()

	if found == nil {
		return &weakEntry[S, A]{ref: key, name: h.name}
	}
	found.stop()
	return found
}

// unregisterRef stops and untracks a specific entry, typically one whose
// handler was found already collected.
func (r *WeakRegistry) unregisterRef(owner reclaimer, reg registration) {
	r.untrack(owner, reg)
	reg.stop()
}

// fire runs on the runtime's cleanup goroutine once a handler is unreachable.
func (r *WeakRegistry) fire(v heldValue) {
	if !r.untrack(v.owner, v.reg) {
		return
	}
	v.owner.reclaim(v.reg)
}

func (r *WeakRegistry) untrack(owner reclaimer, reg registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.tracked[owner], reg)
	if idx < 0 {
		return false
	}
	r.untrackAtLocked(owner, idx)
	return true
}

// untrackAtLocked must be called with mu held.
func (r *WeakRegistry) untrackAtLocked(owner reclaimer, idx int) {
	regs := slices.Delete(r.tracked[owner], idx, idx+1)
	if len(regs) == 0 {
		delete(r.tracked, owner)
	} else {
		r.tracked[owner] = regs
	}
	r.count--
}
