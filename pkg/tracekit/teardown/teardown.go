// Package teardown gives pending telemetry a last chance to leave the
// process. On a termination signal (or an explicit Trigger) it sends a
// copy of the pending queue over the fire-and-forget transport and, in
// parallel, persists the same events durably. Whichever path survives the
// process exit wins; the collector deduplicates by event ID.
package teardown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tracekit/tracekit/pkg/tracekit/delivery"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
	"github.com/tracekit/tracekit/pkg/tracekit/observability"
)

// Queue is the pending-event source drained at teardown.
type Queue interface {
	Snapshot() []event.Event
}

// Spiller persists events that may not make it out before exit.
type Spiller interface {
	AppendOverflow(events []event.Event)
}

// Handler watches for termination signals and runs the teardown sequence.
// After the sequence, this handler stops listening and re-raises the
// signal, so the process's remaining handlers (or the default disposition,
// if there are none) take over.
type Handler struct {
	queue   Queue
	spill   Spiller
	sender  delivery.Sender
	logger  *slog.Logger
	signals []os.Signal

	reraise func(os.Signal)

	mu      sync.Mutex
	ch      chan os.Signal
	done    chan struct{}
	started bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSignals overrides the watched signals.
// Default: SIGINT and SIGTERM.
func WithSignals(signals ...os.Signal) HandlerOption {
	return func(h *Handler) {
		if len(signals) > 0 {
			h.signals = signals
		}
	}
}

// WithLogger sets the structured logger for teardown diagnostics.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a teardown handler draining queue through sender,
// with spill as the durable fallback. Call Start to begin watching.
func NewHandler(queue Queue, spill Spiller, sender delivery.Sender, opts ...HandlerOption) *Handler {
	h := &Handler{
		queue:   queue,
		spill:   spill,
		sender:  sender,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		reraise: reraiseSignal,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start registers the signal watcher. Starting twice is a no-op.
func (h *Handler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return
	}
	h.started = true
	h.ch = make(chan os.Signal, 1)
	h.done = make(chan struct{})
	signal.Notify(h.ch, h.signals...)

	go h.watch(h.ch, h.done)
}

// Stop unregisters the signal watcher. Safe to call without Start.
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	h.started = false
	signal.Stop(h.ch)
	close(h.done)
}

func (h *Handler) watch(ch chan os.Signal, done chan struct{}) {
	select {
	case sig := <-ch:
		h.Trigger()
		signal.Stop(ch)
		h.reraise(sig)
	case <-done:
	}
}

// Trigger runs the teardown sequence once, immediately: snapshot the
// pending queue, attempt a fire-and-forget send of the copy, and persist
// the same events durably regardless of the send's apparent outcome. The
// events stay queued; Trigger never consumes them.
//
// Trigger may be called any number of times, including while the queue is
// still live. An empty queue is a no-op.
func (h *Handler) Trigger() {
	pending := h.queue.Snapshot()
	if len(pending) == 0 {
		observability.LogTeardown(h.logger, 0, false)
		return
	}

	// The durable write comes first: the send below may be cut off
	// mid-flight by process exit.
	h.spill.AppendOverflow(pending)

	sent := h.sender.Send(context.Background(), pending, delivery.ModeBeacon)
	observability.LogTeardown(h.logger, len(pending), sent)
}

// reraiseSignal delivers sig to the current process again after this
// handler has stopped listening for it. Other signal.Notify registrations
// in the process still see the re-raised signal; only when none exist does
// the default disposition apply.
func reraiseSignal(sig os.Signal) {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		os.Exit(1)
	}
	_ = proc.Signal(sig)
}
