package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics_AllMethodsSafe(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordEnqueue(ctx, "click")
		m.RecordDedup(ctx)
		m.RecordDelivery(ctx, "batch", 3, time.Millisecond, true)
		m.RecordOverflow(ctx, 2)
	})
}

func TestNoopSpanManager_AllMethodsSafe(t *testing.T) {
	m := NoopSpanManager{}

	ctx, span := m.StartFlushSpan(context.Background(), 1)
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	ctx2, span2 := m.StartDeliverySpan(ctx, "beacon")
	assert.Equal(t, ctx, ctx2, "noop span manager must not alter the context")

	assert.NotPanics(t, func() {
		m.EndSpan(span2, false)
		m.EndSpan(nil, true)
	})
}
