// Package delivery performs the network send of event batches and reports
// success or failure. It owns the per-attempt timeout; it never decides
// what happens to a failed batch - that is the pipeline's job.
package delivery

import (
	"context"

	"github.com/tracekit/tracekit/pkg/tracekit/event"
)

// Mode selects the transport policy for a send.
type Mode string

const (
	// ModeImmediate sends a batch as one reliable POST.
	ModeImmediate Mode = "immediate"

	// ModeBatch is identical to ModeImmediate on the wire; it exists so
	// callers can express the queueing policy they configured.
	ModeBatch Mode = "batch"

	// ModeBeacon uses the unreliable-but-persistent fire-and-forget
	// primitive. Used only during teardown.
	ModeBeacon Mode = "beacon"
)

// Sender delivers a batch of events. Implementations never return an
// error and never panic: any failure (network error, timeout, non-2xx
// status, beacon rejection) reports false.
type Sender interface {
	Send(ctx context.Context, events []event.Event, mode Mode) bool
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, events []event.Event, mode Mode) bool

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, events []event.Event, mode Mode) bool {
	return f(ctx, events, mode)
}

// BeaconFunc is the injected unreliable-but-persistent send primitive:
// fire-and-forget, expected to survive process teardown, no response
// observable beyond an accepted/rejected boolean.
type BeaconFunc func(url string, body []byte) bool
