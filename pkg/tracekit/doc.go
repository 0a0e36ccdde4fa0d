// Package tracekit is a client-side telemetry pipeline: it collects
// behavioral events, batches them according to a configurable delivery
// policy, ships them to an HTTP collector, and spills undelivered batches
// into a durable buffer so offline periods lose nothing.
//
// The package is organized around three layers:
//
//   - Tracker: the public capture API. It owns session and user identity,
//     page context, and page-view duplicate suppression, and turns capture
//     calls into events.
//   - Pipeline: the queueing core. It applies the delivery policy
//     (immediate, batch, or teardown-only), arms at most one deferred-flush
//     timer, and swaps the pending queue out for delivery so capture calls
//     never block on the network.
//   - Buffer: the durable layer. Failed batches, the session identifier,
//     and the user identity persist across process restarts; every storage
//     fault degrades to a logged no-op.
//
// Basic usage:
//
//	cfg := config.Config{
//		Endpoint: "https://collector.example.com/events",
//		AppID:    "my-app",
//		Mode:     config.ModeBatch,
//	}
//	tracker, err := tracekit.New(cfg, tracekit.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer tracker.Close()
//
//	tracker.PageView("https://example.com/home", "Home", nil)
//	tracker.Click("signup_button", map[string]any{"variant": "b"})
//
// Capture methods never return errors and never panic. Delivery failures
// are absorbed by the durable buffer and retried on the next start.
package tracekit
