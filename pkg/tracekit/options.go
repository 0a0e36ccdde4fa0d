package tracekit

import (
	"log/slog"
	"time"

	"github.com/tracekit/tracekit/pkg/tracekit/buffer"
	"github.com/tracekit/tracekit/pkg/tracekit/delivery"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
	"github.com/tracekit/tracekit/pkg/tracekit/observability"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMode sets the queueing policy's delivery mode.
// Default: delivery.ModeBatch.
func WithMode(mode delivery.Mode) PipelineOption {
	return func(p *Pipeline) {
		p.mode = mode
	}
}

// WithBatch sets the size threshold and deferred-flush interval used in
// batch mode. Non-positive values keep the defaults (10 events, 5s).
func WithBatch(size int, interval time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if interval > 0 {
			p.batchInterval = interval
		}
	}
}

// WithRestoreDelay sets the delay before the first flush of a restored
// overflow batch. Default: DefaultRestoreDelay.
func WithRestoreDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.restoreDelay = d
		}
	}
}

// WithPipelineLogger sets the structured logger for pipeline diagnostics.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineMetrics sets the metrics recorder.
// Default: observability.NoopMetrics.
func WithPipelineMetrics(metrics observability.MetricsRecorder) PipelineOption {
	return func(p *Pipeline) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithPipelineSpans sets the span manager.
// Default: observability.NoopSpanManager.
func WithPipelineSpans(spans observability.SpanManager) PipelineOption {
	return func(p *Pipeline) {
		if spans != nil {
			p.spans = spans
		}
	}
}

// Option configures a Tracker.
type Option func(*trackerConfig)

type trackerConfig struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	store   buffer.Store
	sender  delivery.Sender
	beacon  delivery.BeaconFunc
	meta    event.Meta
	restore time.Duration
}

// WithLogger sets the structured logger used across the tracker, pipeline,
// and durable buffer. Without it, diagnostics are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *trackerConfig) {
		cfg.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics via the given recorder.
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(cfg *trackerConfig) {
		cfg.metrics = metrics
	}
}

// WithSpans enables OpenTelemetry tracing via the given span manager.
func WithSpans(spans observability.SpanManager) Option {
	return func(cfg *trackerConfig) {
		cfg.spans = spans
	}
}

// WithStore overrides the durable store. The caller keeps ownership:
// Close leaves an injected store open so it can outlive the tracker.
func WithStore(store buffer.Store) Option {
	return func(cfg *trackerConfig) {
		cfg.store = store
	}
}

// WithSender overrides the delivery sender. Useful for tests and custom
// transports.
func WithSender(sender delivery.Sender) Option {
	return func(cfg *trackerConfig) {
		cfg.sender = sender
	}
}

// WithBeacon injects the fire-and-forget send primitive used at teardown.
func WithBeacon(beacon delivery.BeaconFunc) Option {
	return func(cfg *trackerConfig) {
		cfg.beacon = beacon
	}
}

// WithBaseMeta sets the contextual metadata (user agent, screen
// resolution) stamped into every event. Platform from the config takes
// precedence over meta.Platform.
func WithBaseMeta(meta event.Meta) Option {
	return func(cfg *trackerConfig) {
		cfg.meta = meta
	}
}

// WithTrackerRestoreDelay overrides the restored-overflow flush delay.
func WithTrackerRestoreDelay(d time.Duration) Option {
	return func(cfg *trackerConfig) {
		cfg.restore = d
	}
}
