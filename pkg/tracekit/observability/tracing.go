package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the tracekit tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("tracekit")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFlushSpan starts a span covering one flush (swap + delivery).
	StartFlushSpan(ctx context.Context, batchSize int) (context.Context, trace.Span)

	// StartDeliverySpan starts a span for one delivery attempt.
	// The delivery span should be a child of the flush span.
	StartDeliverySpan(ctx context.Context, mode string) (context.Context, trace.Span)

	// EndSpan completes a span, marking it failed when ok is false.
	EndSpan(span trace.Span, ok bool)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartFlushSpan starts a span covering one flush.
func (m *otelSpanManager) StartFlushSpan(ctx context.Context, batchSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tracekit.flush",
		trace.WithAttributes(
			attribute.Int("batch.size", batchSize),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDeliverySpan starts a span for one delivery attempt.
func (m *otelSpanManager) StartDeliverySpan(ctx context.Context, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tracekit.delivery",
		trace.WithAttributes(
			attribute.String("delivery.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan completes a span, marking it failed when ok is false.
func (m *otelSpanManager) EndSpan(span trace.Span, ok bool) {
	if span == nil {
		return
	}
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "delivery failed")
	}
	span.End()
}
