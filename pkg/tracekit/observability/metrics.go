package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEnqueue records an event entering the pending queue.
	RecordEnqueue(ctx context.Context, kind string)

	// RecordDedup records a page view suppressed by the dedup filter.
	RecordDedup(ctx context.Context)

	// RecordDelivery records one delivery attempt with its batch size,
	// mode, duration, and outcome.
	RecordDelivery(ctx context.Context, mode string, batchSize int, duration time.Duration, success bool)

	// RecordOverflow records events handed to the durable overflow.
	RecordOverflow(ctx context.Context, count int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	enqueued        metric.Int64Counter
	deduped         metric.Int64Counter
	deliveries      metric.Int64Counter
	batchSize       metric.Int64Histogram
	deliveryLatency metric.Float64Histogram
	overflowed      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tracekit")

	enqueued, err := meter.Int64Counter("tracekit.events.enqueued",
		metric.WithDescription("Number of events accepted into the pending queue"),
	)
	if err != nil {
		return nil, err
	}

	deduped, err := meter.Int64Counter("tracekit.events.deduped",
		metric.WithDescription("Number of page views suppressed by the dedup filter"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("tracekit.delivery.attempts",
		metric.WithDescription("Number of delivery attempts"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("tracekit.flush.batch_size",
		metric.WithDescription("Events per flushed batch"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("tracekit.delivery.latency_ms",
		metric.WithDescription("Delivery attempt latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	overflowed, err := meter.Int64Counter("tracekit.overflow.events",
		metric.WithDescription("Events handed to the durable overflow"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		enqueued:        enqueued,
		deduped:         deduped,
		deliveries:      deliveries,
		batchSize:       batchSize,
		deliveryLatency: deliveryLatency,
		overflowed:      overflowed,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEnqueue records an event entering the pending queue.
func (m *otelMetrics) RecordEnqueue(ctx context.Context, kind string) {
	m.enqueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordDedup records a suppressed page view.
func (m *otelMetrics) RecordDedup(ctx context.Context) {
	m.deduped.Add(ctx, 1)
}

// RecordDelivery records one delivery attempt.
func (m *otelMetrics) RecordDelivery(ctx context.Context, mode string, batchSize int, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.batchSize.Record(ctx, int64(batchSize), metric.WithAttributes(attrs...))
	m.deliveryLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordOverflow records events handed to the durable overflow.
func (m *otelMetrics) RecordOverflow(ctx context.Context, count int) {
	m.overflowed.Add(ctx, int64(count))
}
