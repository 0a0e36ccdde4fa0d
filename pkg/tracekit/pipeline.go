package tracekit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tracekit/tracekit/pkg/tracekit/buffer"
	"github.com/tracekit/tracekit/pkg/tracekit/delivery"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
	"github.com/tracekit/tracekit/pkg/tracekit/observability"
)

// DefaultRestoreDelay is how long a restored overflow batch waits before
// its first delivery attempt. The delay avoids a retry storm at every
// startup while the network is persistently down.
const DefaultRestoreDelay = time.Second

// pipelineState tracks the Uninitialized -> Running -> Stopped lifecycle.
type pipelineState int

const (
	stateUninitialized pipelineState = iota
	stateRunning
	stateStopped // terminal; construct a new Pipeline to restart
)

// Pipeline accepts events, applies the queueing policy, and hands batches
// to the delivery Sender. Failed batches go to the durable Buffer; on the
// next Start they are restored and retried.
//
// All operations are safe for concurrent use. Enqueue never blocks on an
// outstanding network send: a triggered flush swaps the pending queue out
// under the lock and delivers the swapped batch on its own goroutine, so
// events enqueued during an in-flight send land in a fresh queue.
type Pipeline struct {
	sender  delivery.Sender
	buffer  *buffer.Buffer
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	mode          delivery.Mode
	batchSize     int
	batchInterval time.Duration
	restoreDelay  time.Duration

	mu       sync.Mutex
	state    pipelineState
	queue    []event.Event
	timer    *time.Timer
	timerGen uint64 // bumped on every arm; lets a stale fired callback detect replacement

	inflight sync.WaitGroup
}

// NewPipeline creates a pipeline delivering through sender and spilling
// failed batches into buf. Call Start before enqueueing.
func NewPipeline(sender delivery.Sender, buf *buffer.Buffer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sender:        sender,
		buffer:        buf,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
		mode:          delivery.ModeBatch,
		batchSize:     10,
		batchInterval: 5 * time.Second,
		restoreDelay:  DefaultRestoreDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start transitions the pipeline to Running, restores any durable overflow
// into the pending queue, and schedules a delayed first flush for the
// restored events. Starting twice, or starting a stopped pipeline, is
// logged and ignored.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateUninitialized {
		p.misuse("start ignored: pipeline already started")
		return
	}
	p.state = stateRunning

	restored := p.buffer.DrainOverflow()
	if len(restored) > 0 {
		p.queue = append(p.queue, restored...)
		p.armTimerLocked(p.restoreDelay)
	}
	observability.LogPipelineStart(p.logger, p.buffer.SessionID(), len(restored))
}

// Enqueue appends an event to the pending queue and applies the active
// queueing policy. Enqueueing on a pipeline that is not running is logged
// and ignored so instrumentation can never crash the host.
func (p *Pipeline) Enqueue(evt event.Event) {
	p.mu.Lock()

	if p.state != stateRunning {
		p.mu.Unlock()
		observability.LogDroppedEvent(p.logger, string(evt.Kind), "pipeline not running")
		return
	}

	p.queue = append(p.queue, evt)
	queueLen := len(p.queue)
	p.metrics.RecordEnqueue(context.Background(), string(evt.Kind))
	observability.LogEnqueue(p.logger, string(evt.Kind), evt.Name, queueLen)

	switch p.mode {
	case delivery.ModeImmediate:
		p.mu.Unlock()
		p.dispatchFlush()
	case delivery.ModeBatch:
		if queueLen >= p.batchSize {
			p.mu.Unlock()
			p.dispatchFlush()
			return
		}
		p.armTimerLocked(p.batchInterval)
		p.mu.Unlock()
	default:
		// Teardown-only: no auto-flush; an explicit Flush or the
		// teardown handler drains the queue.
		p.mu.Unlock()
	}
}

// Flush cancels any armed timer, swaps the pending queue for an empty one,
// and delivers the swapped batch. A failed delivery hands the whole batch
// to the durable buffer in its original order. Flushing an empty queue is
// a no-op. Concurrent Flush calls are permitted: each delivers only the
// batch it swapped out.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	p.cancelTimerLocked()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	p.deliver(batch)
}

// Snapshot returns a copy of the pending queue without removing anything.
// The teardown handler uses it to send a parallel copy while the events
// stay queued.
func (p *Pipeline) Snapshot() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}
	snapshot := make([]event.Event, len(p.queue))
	copy(snapshot, p.queue)
	return snapshot
}

// Len returns the current pending queue length.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stop transitions to Stopped, cancels any armed timer, and performs one
// opportunistic flush of whatever remains. The flush may not complete
// before the process exits; the teardown handler's durable write is the
// safety net. A stopped pipeline cannot be restarted.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.state == stateStopped {
		p.mu.Unlock()
		return
	}
	p.state = stateStopped
	p.cancelTimerLocked()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	if len(batch) > 0 {
		p.deliver(batch)
	}
}

// Wait blocks until all asynchronously dispatched flushes have finished.
// Intended for orderly shutdown after Stop.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// dispatchFlush runs Flush on its own goroutine so the triggering Enqueue
// returns without waiting on the network.
func (p *Pipeline) dispatchFlush() {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.Flush()
	}()
}

// armTimerLocked arms the single deferred-flush timer. Arming is
// idempotent: at most one timer is ever armed. Each armed timer carries a
// generation so a fired-but-not-yet-run callback of a cancelled timer
// cannot clobber its replacement.
func (p *Pipeline) armTimerLocked(d time.Duration) {
	if p.timer != nil {
		return
	}
	p.timerGen++
	gen := p.timerGen
	p.timer = time.AfterFunc(d, func() {
		p.timerFired(gen)
	})
}

// timerFired is the deferred-flush callback. A timer can fire and then
// lose p.mu to a Flush that cancels it and an Enqueue that arms a fresh
// timer; the generation check turns that stale callback into a no-op so
// the fresh timer keeps its full interval.
func (p *Pipeline) timerFired(gen uint64) {
	p.mu.Lock()
	if p.timer == nil || gen != p.timerGen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()
	p.Flush()
}

func (p *Pipeline) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// deliver sends one swapped-out batch and re-buffers it on failure.
func (p *Pipeline) deliver(batch []event.Event) {
	ctx := context.Background()
	done := observability.TimedOperation()

	ctx, flushSpan := p.spans.StartFlushSpan(ctx, len(batch))
	sendCtx, deliverySpan := p.spans.StartDeliverySpan(ctx, string(p.sendMode()))

	ok := p.sender.Send(sendCtx, batch, p.sendMode())

	p.spans.EndSpan(deliverySpan, ok)
	p.spans.EndSpan(flushSpan, ok)

	elapsed := done()
	p.metrics.RecordDelivery(ctx, string(p.sendMode()), len(batch), time.Duration(elapsed)*time.Millisecond, ok)
	observability.LogFlush(p.logger, len(batch), ok, elapsed)

	if !ok {
		p.buffer.AppendOverflow(batch)
		p.metrics.RecordOverflow(ctx, len(batch))
	}
}

// sendMode maps the queueing policy to the wire transport mode. Beacon is
// reserved for the teardown handler; a regular flush under a teardown-only
// policy still uses the reliable transport.
func (p *Pipeline) sendMode() delivery.Mode {
	if p.mode == delivery.ModeImmediate {
		return delivery.ModeImmediate
	}
	return delivery.ModeBatch
}

func (p *Pipeline) misuse(msg string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg)
}
