package typedevent

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weakNotice = FinalizationNotice[*Widget, Changed]

// newTestWeakEvent builds a weak event on a private registry so counts are
// not shared with other tests.
func newTestWeakEvent(t *testing.T, opts ...EventOption) (*WeakEvent[*Widget, Changed], *WeakRegistry) {
	t.Helper()
	reg, err := NewWeakRegistry()
	require.NoError(t, err)
	ev, err := NewWeakEvent[*Widget, Changed](append([]EventOption{WithWeakRegistry(reg)}, opts...)...)
	require.NoError(t, err)
	return ev, reg
}

// watchFinalized forwards every finalization notice to the returned channel.
func watchFinalized(t *testing.T, ev *WeakEvent[*Widget, Changed]) <-chan weakNotice {
	t.Helper()
	ch := make(chan weakNotice, 16)
	require.NoError(t, ev.HandlerFinalized().Attach(NewHandler(
		func(_ context.Context, _ *WeakEvent[*Widget, Changed], n weakNotice) error {
			ch <- n
			return nil
		})))
	return ch
}

// attachTransient attaches a counting handler that nothing else references.
//
//go:noinline
func attachTransient(t *testing.T, ev *WeakEvent[*Widget, Changed], n *atomic.Int32, name string) {
	require.NoError(t, ev.Attach(counting(n, WithHandlerName(name))))
}

// awaitNotice runs the collector until a notice arrives or the deadline passes.
func awaitNotice(t *testing.T, ch <-chan weakNotice) weakNotice {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		select {
		case n := <-ch:
			return n
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("no finalization notice before deadline")
	return weakNotice{}
}

func TestWeakEvent_CounterScenario(t *testing.T) {
	ev, _ := newTestWeakEvent(t)
	ctx := context.Background()

	var n atomic.Int32
	h := counting(&n)

	require.NoError(t, ev.Attach(h))
	require.NoError(t, ev.Invoke(ctx, nil, Changed{}))
	assert.Equal(t, int32(1), n.Load())

	require.NoError(t, ev.Attach(h))
	require.NoError(t, ev.Attach(h))
	require.NoError(t, ev.Invoke(ctx, nil, Changed{}))
	assert.Equal(t, int32(4), n.Load())

	assert.True(t, ev.Detach(h))
	require.NoError(t, ev.Invoke(ctx, nil, Changed{}))
	assert.Equal(t, int32(6), n.Load())

	runtime.KeepAlive(h)
}

func TestWeakEvent_AttachDetachBookkeeping(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	var n atomic.Int32
	h := counting(&n)

	for range 3 {
		require.NoError(t, ev.Attach(h))
	}
	assert.Equal(t, 3, ev.Len())
	assert.Equal(t, 3, reg.Tracked())

	assert.True(t, ev.Detach(h))
	assert.Equal(t, 2, ev.Len())
	assert.Equal(t, 2, reg.Tracked())

	t.Run("never attached is a no-op", func(t *testing.T) {
		assert.False(t, ev.Detach(counting(&n)))
		assert.False(t, ev.Detach(nil))
		assert.Equal(t, 2, ev.Len())
		assert.Equal(t, 2, reg.Tracked())
	})

	t.Run("invalid handler", func(t *testing.T) {
		assert.ErrorIs(t, ev.Attach(nil), ErrNilHandler)
		assert.Equal(t, 2, reg.Tracked())
	})

	require.True(t, ev.Detach(h))
	require.True(t, ev.Detach(h))
	assert.False(t, ev.Detach(h))
	assert.Equal(t, 0, ev.Len())
	assert.Equal(t, 0, reg.Tracked())

	runtime.KeepAlive(h)
}

func TestWeakEvent_DetachIsScopedToTheEvent(t *testing.T) {
	reg, err := NewWeakRegistry()
	require.NoError(t, err)
	a, err := NewWeakEvent[*Widget, Changed](WithWeakRegistry(reg))
	require.NoError(t, err)
	b, err := NewWeakEvent[*Widget, Changed](WithWeakRegistry(reg))
	require.NoError(t, err)

	var n atomic.Int32
	h := counting(&n)
	require.NoError(t, b.Attach(h))
	require.NoError(t, a.Attach(h))

	assert.True(t, a.Detach(h))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, reg.Tracked())

	require.NoError(t, b.Invoke(context.Background(), &Widget{}, Changed{}))
	assert.Equal(t, int32(1), n.Load())

	runtime.KeepAlive(h)
}

func TestWeakEvent_InvokeSemantics(t *testing.T) {
	ctx := context.Background()

	t.Run("failure propagates unless swallowed", func(t *testing.T) {
		ev, _ := newTestWeakEvent(t, WithName("weak.saved"))
		rec := &recorder{}
		a, bad, c := tracking("a", rec), failing(errBoom), tracking("c", rec)
		for _, h := range []*Handler[*Widget, Changed]{a, bad, c} {
			require.NoError(t, ev.Attach(h))
		}

		var herr *HandlerError
		require.ErrorAs(t, ev.Invoke(ctx, &Widget{}, Changed{}), &herr)
		assert.Equal(t, "weak.saved", herr.EventName)
		assert.Equal(t, []string{"a"}, rec.get())

		require.NoError(t, ev.Invoke(ctx, &Widget{}, Changed{}, WithSwallowExceptions(true)))
		assert.Equal(t, []string{"a", "a", "c"}, rec.get())

		runtime.KeepAlive([]any{a, bad, c})
	})

	t.Run("async rejects with parallelize false", func(t *testing.T) {
		ev, _ := newTestWeakEvent(t)
		h := rejecting(errBoom)
		require.NoError(t, ev.Attach(h))

		assert.ErrorIs(t, ev.InvokeAsync(ctx, nil, Changed{}, WithParallelize(false)).Err(), errBoom)
		assert.NoError(t, ev.InvokeAsync(ctx, nil, Changed{}, WithSwallowExceptions(true)).Err())

		runtime.KeepAlive(h)
	})

	t.Run("async parallel runs siblings", func(t *testing.T) {
		ev, _ := newTestWeakEvent(t)
		var done atomic.Bool
		bad, slow := rejecting(errBoom), slowAsync(20*time.Millisecond, &done)
		require.NoError(t, ev.Attach(bad))
		require.NoError(t, ev.Attach(slow))

		assert.ErrorIs(t, ev.InvokeAsync(ctx, &Widget{}, Changed{}).Err(), errBoom)
		assert.True(t, done.Load())

		runtime.KeepAlive([]any{bad, slow})
	})

	t.Run("empty event", func(t *testing.T) {
		ev, _ := newTestWeakEvent(t)
		assert.NoError(t, ev.Invoke(ctx, &Widget{}, Changed{}))
		assert.True(t, ev.InvokeAsync(ctx, &Widget{}, Changed{}).Settled())
	})
}

func TestWeakEvent_ReclaimedHandler(t *testing.T) {
	ev, reg := newTestWeakEvent(t, WithName("window.resized"))
	notices := watchFinalized(t, ev)

	var n atomic.Int32
	attachTransient(t, ev, &n, "layout")
	require.Equal(t, 1, reg.Tracked())

	notice := awaitNotice(t, notices)

	assert.Same(t, ev, notice.EventSource)
	assert.Equal(t, "layout", notice.HandlerName)
	assert.Nil(t, notice.HandlerRef.Value())
	assert.False(t, notice.ReclaimedAt.IsZero())

	assert.Equal(t, 0, ev.Len())
	assert.Equal(t, 0, reg.Tracked())

	require.NoError(t, ev.Invoke(context.Background(), &Widget{}, Changed{}))
	assert.Equal(t, int32(0), n.Load())
}

func TestWeakEvent_DetachedHandlerIsNeverReported(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	notices := watchFinalized(t, ev)

	var n atomic.Int32
	detached := counting(&n, WithHandlerName("detached"))
	require.NoError(t, ev.Attach(detached))
	require.True(t, ev.Detach(detached))
	detached = nil

	// A second, transient handler proves that collections actually ran.
	attachTransient(t, ev, &n, "sentinel")
	notice := awaitNotice(t, notices)
	assert.Equal(t, "sentinel", notice.HandlerName)

	for range 3 {
		runtime.GC()
	}
	select {
	case extra := <-notices:
		t.Fatalf("unexpected notice for %q", extra.HandlerName)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, reg.Tracked())
	assert.Nil(t, detached)
}

func TestWeakEvent_FinalizedSubscriberFailureIsContained(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	require.NoError(t, ev.HandlerFinalized().Attach(NewHandler(
		func(context.Context, *WeakEvent[*Widget, Changed], weakNotice) error {
			panic("diagnostics bug")
		})))
	notices := watchFinalized(t, ev)

	var n atomic.Int32
	attachTransient(t, ev, &n, "first")
	awaitNotice(t, notices)

	attachTransient(t, ev, &n, "second")
	notice := awaitNotice(t, notices)
	assert.Equal(t, "second", notice.HandlerName)
	assert.Equal(t, 0, reg.Tracked())
}

// collectedRef returns a weak pointer whose target has been collected.
func collectedRef(t *testing.T) weak.Pointer[Handler[*Widget, Changed]] {
	t.Helper()
	ref := func() weak.Pointer[Handler[*Widget, Changed]] {
		return weak.Make(failing(errBoom))
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return ref.Value() == nil
	}, 10*time.Second, time.Millisecond)
	return ref
}

func TestWeakEvent_FoundDeadDuringInvoke(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	notices := watchFinalized(t, ev)

	rec := &recorder{}
	before, after := tracking("before", rec), tracking("after", rec)
	require.NoError(t, ev.Attach(before))

	// An entry whose handler is gone but whose cleanup has not run.
	ghost := &weakEntry[*Widget, Changed]{ref: collectedRef(t), name: "ghost"}
	ev.mu.Lock()
	ev.entries = append(ev.entries, ghost)
	ev.mu.Unlock()
	reg.mu.Lock()
	reg.tracked[ev] = append(reg.tracked[ev], ghost)
	reg.count++
	reg.mu.Unlock()

	require.NoError(t, ev.Attach(after))
	require.Equal(t, 3, ev.Len())
	require.Equal(t, 3, reg.Tracked())

	require.NoError(t, ev.Invoke(context.Background(), &Widget{}, Changed{}))

	assert.Equal(t, []string{"before", "after"}, rec.get())
	assert.Equal(t, 2, ev.Len())
	assert.Equal(t, 2, reg.Tracked())

	// A cleanup firing late for the dead entry is ignored.
	reg.fire(heldValue{owner: ev, reg: ghost})
	assert.Equal(t, 2, ev.Len())

	select {
	case n := <-notices:
		t.Fatalf("found-dead entry produced a notice for %q", n.HandlerName)
	case <-time.After(50 * time.Millisecond):
	}

	runtime.KeepAlive([]any{before, after})
}

func TestWeakRegistry_FireAfterDetachIsIgnored(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	notices := watchFinalized(t, ev)

	var n atomic.Int32
	h := counting(&n)
	require.NoError(t, ev.Attach(h))

	ev.mu.Lock()
	entry := ev.entries[0]
	ev.mu.Unlock()

	require.True(t, ev.Detach(h))
	reg.fire(heldValue{owner: ev, reg: entry})

	select {
	case <-notices:
		t.Fatal("detached entry produced a notice")
	case <-time.After(50 * time.Millisecond):
	}
	runtime.KeepAlive(h)
}

func TestWeakRegistry_ReleaseUntracked(t *testing.T) {
	ev, reg := newTestWeakEvent(t)
	var n atomic.Int32
	h := counting(&n)

	entry := releaseWeak(reg, ev, h)
	require.NotNil(t, entry)
	assert.Equal(t, weak.Make(h), entry.ref)
	assert.False(t, entry.armed)
	assert.False(t, ev.remove(entry))
	assert.Equal(t, 0, reg.Tracked())
}

func TestWeakEvent_DefaultRegistry(t *testing.T) {
	def, err := DefaultWeakRegistry()
	require.NoError(t, err)
	again, err := DefaultWeakRegistry()
	require.NoError(t, err)
	assert.Same(t, def, again)

	ev, err := NewWeakEvent[*Widget, Changed]()
	require.NoError(t, err)
	assert.Same(t, def, ev.registry)

	var n atomic.Int32
	h := counting(&n)
	before := def.Tracked()
	require.NoError(t, ev.Attach(h))
	assert.Equal(t, before+1, def.Tracked())
	require.True(t, ev.Detach(h))
	assert.Equal(t, before, def.Tracked())
}

func TestWeakEvent_FinalizedEventNaming(t *testing.T) {
	ev, _ := newTestWeakEvent(t, WithName("window.resized"))
	assert.Equal(t, "window.resized", ev.Name())
	assert.Equal(t, "window.resized.finalized", ev.HandlerFinalized().Name())
	assert.NotEqual(t, ev.ID(), ev.HandlerFinalized().ID())
}

func TestWeakEvent_CapabilityUnavailable(t *testing.T) {
	orig := finalizationSupported
	finalizationSupported = func() bool { return false }
	defer func() { finalizationSupported = orig }()

	_, err := NewWeakRegistry()
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	_, err = NewWeakEvent[*Widget, Changed]()
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	assert.PanicsWithValue(t, ErrCapabilityUnavailable, func() {
		MustNewWeakEvent[*Widget, Changed]()
	})
}
