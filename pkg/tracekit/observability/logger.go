// Package observability provides logging, metrics, and tracing helpers for
// the telemetry pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds pipeline context to a logger.
// Returns a new logger with session_id and delivery mode fields.
func EnrichLogger(logger *slog.Logger, sessionID, mode string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("mode", mode),
	)
}

// LogPipelineStart logs pipeline startup, including how many events were
// restored from the durable overflow.
func LogPipelineStart(logger *slog.Logger, sessionID string, restored int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline started",
		slog.String("session_id", sessionID),
		slog.Int("restored_events", restored),
	)
}

// LogEnqueue logs a single event entering the pending queue.
func LogEnqueue(logger *slog.Logger, kind, name string, queueLen int) {
	if logger == nil {
		return
	}
	logger.Debug("event enqueued",
		slog.String("kind", kind),
		slog.String("name", name),
		slog.Int("queue_len", queueLen),
	)
}

// LogFlush logs the outcome of one flush attempt.
func LogFlush(logger *slog.Logger, batchSize int, success bool, durationMs float64) {
	if logger == nil {
		return
	}
	if success {
		logger.Debug("flush delivered",
			slog.Int("batch_size", batchSize),
			slog.Float64("duration_ms", durationMs),
		)
		return
	}
	logger.Warn("flush failed, batch re-buffered",
		slog.Int("batch_size", batchSize),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDroppedEvent logs an event rejected before enqueue (dedup or a
// stopped pipeline).
func LogDroppedEvent(logger *slog.Logger, kind, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("event dropped",
		slog.String("kind", kind),
		slog.String("reason", reason),
	)
}

// LogTeardown logs the teardown drain: the beacon attempt outcome and the
// safety-net write.
func LogTeardown(logger *slog.Logger, pending int, sent bool) {
	if logger == nil {
		return
	}
	logger.Info("teardown drain",
		slog.Int("pending", pending),
		slog.Bool("beacon_sent", sent),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
