package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory exporter and restores the global
// provider afterwards. The package tracer is rebound to the test provider.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	originalTracer := tracer
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer("tracekit")

	t.Cleanup(func() {
		tracer = originalTracer
		otel.SetTracerProvider(originalProvider)
		_ = provider.Shutdown(context.Background())
	})

	return exporter
}

func TestSpanManager_FlushSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	manager := NewSpanManager()

	ctx, span := manager.StartFlushSpan(context.Background(), 3)
	require.NotNil(t, span)
	assert.True(t, span.IsRecording())

	_, child := manager.StartDeliverySpan(ctx, "batch")
	manager.EndSpan(child, true)
	manager.EndSpan(span, true)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "tracekit.delivery", spans[0].Name)
	assert.Equal(t, "tracekit.flush", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID(),
		"delivery span is a child of the flush span")
}

func TestSpanManager_EndSpanFailure(t *testing.T) {
	exporter := setupTracingTest(t)
	manager := NewSpanManager()

	_, span := manager.StartDeliverySpan(context.Background(), "immediate")
	manager.EndSpan(span, false)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestSpanManager_NilSpanSafe(t *testing.T) {
	manager := NewSpanManager()
	assert.NotPanics(t, func() {
		manager.EndSpan(nil, true)
	})
}
