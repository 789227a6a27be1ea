package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordInvocation(ctx, "ev", "invoke", 1, time.Millisecond, nil)
		m.RecordInvocation(ctx, "ev", "invoke", 1, time.Millisecond, errors.New("x"))
		m.RecordHandlerFailure(ctx, "ev", "h", true)
		m.RecordHandlerReclaimed(ctx, "ev")
		m.RecordHandlerFoundDead(ctx, "")
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	t.Run("returns the context unchanged", func(t *testing.T) {
		newCtx, span := sm.StartInvokeSpan(ctx, "ev", "id", "invoke", 2)
		assert.Equal(t, ctx, newCtx)
		assert.NotNil(t, span)
		assert.False(t, span.IsRecording())
	})

	t.Run("does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_, span := sm.StartInvokeSpan(ctx, "ev", "id", "invoke", 2)
			sm.AddSpanEvent(ctx, "handler.failed", attribute.String("handler", "h"))
			sm.EndSpanWithError(span, errors.New("x"))
			sm.EndSpanWithError(nil, nil)
		})
	})
}
