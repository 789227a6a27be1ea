package typedevent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Test types used across tests

// Widget is a sender for testing.
type Widget struct {
	Name string
}

// Changed is an argument value for testing.
type Changed struct {
	Field string
	Value int
}

var errBoom = errors.New("boom")

// Helper handler constructors

// counting returns a handler that increments n.
func counting(n *atomic.Int32, opts ...HandlerOption) *Handler[*Widget, Changed] {
	return NewHandler(func(context.Context, *Widget, Changed) error {
		n.Add(1)
		return nil
	}, opts...)
}

// failing returns a handler that returns err.
func failing(err error, opts ...HandlerOption) *Handler[*Widget, Changed] {
	return NewHandler(func(context.Context, *Widget, Changed) error {
		return err
	}, opts...)
}

// rejecting returns an async handler whose Awaitable fails with err.
func rejecting(err error, opts ...HandlerOption) *Handler[*Widget, Changed] {
	return NewAsyncHandler(func(context.Context, *Widget, Changed) Awaitable {
		return Rejected(err)
	}, opts...)
}

// tracking returns a handler that appends name to the recorder.
func tracking(name string, rec *recorder) *Handler[*Widget, Changed] {
	return NewHandler(func(context.Context, *Widget, Changed) error {
		rec.add(name)
		return nil
	}, WithHandlerName(name))
}

// slowAsync returns an async handler that sleeps and then marks done.
func slowAsync(d time.Duration, done *atomic.Bool) *Handler[*Widget, Changed] {
	return NewAsyncHandler(func(context.Context, *Widget, Changed) Awaitable {
		return Async(func() error {
			time.Sleep(d)
			done.Store(true)
			return nil
		})
	})
}

// recorder collects names in call order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// testLogHandler captures log records for testing.
type testLogHandler struct {
	mu    *sync.Mutex
	buf   *bytes.Buffer
	attrs []slog.Attr
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{mu: &sync.Mutex{}, buf: &bytes.Buffer{}}
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{
		mu:    h.mu,
		buf:   h.buf,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *testLogHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *testLogHandler) getRecords() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

// findRecord returns the first record with the given message.
func (h *testLogHandler) findRecord(msg string) map[string]any {
	for _, r := range h.getRecords() {
		if r["msg"] == msg {
			return r
		}
	}
	return nil
}
