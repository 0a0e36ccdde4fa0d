package tracekit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tracekit/tracekit/pkg/tracekit/buffer"
	"github.com/tracekit/tracekit/pkg/tracekit/config"
	"github.com/tracekit/tracekit/pkg/tracekit/delivery"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
	"github.com/tracekit/tracekit/pkg/tracekit/observability"
)

// Tracker is the capture API of the telemetry pipeline. It assembles
// events from the durable buffer's session and user identity plus the
// current page context, applies page-view dedup, and feeds the pipeline.
//
// Each Tracker is an independent instance: two trackers in one process
// share no hidden state. Capture methods never return errors and never
// panic; instrumentation must not be able to crash the host application.
type Tracker struct {
	cfg      config.Config
	store    buffer.Store
	ownStore bool
	buffer   *buffer.Buffer
	sender   delivery.Sender
	pipeline *Pipeline
	filter   *event.PageViewFilter
	metrics  observability.MetricsRecorder
	logger   *slog.Logger

	mu        sync.Mutex
	baseMeta  event.Meta
	pageURL   string
	pageTitle string
}

// New creates and starts a Tracker for the given configuration.
// The returned tracker is ready to capture; call Close to stop it.
func New(cfg config.Config, opts ...Option) (*Tracker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}

	tc := &trackerConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(tc)
	}

	// Diagnostics for delivery and storage failures are debug-only.
	diagLogger := tc.logger
	if !cfg.Debug {
		diagLogger = nil
	}

	store := tc.store
	ownStore := tc.store == nil
	if store == nil {
		if cfg.StorePath != "" {
			sqlStore, err := buffer.NewSQLiteStore(cfg.StorePath)
			if err != nil {
				// Storage unavailable degrades to in-memory buffering
				// rather than refusing to start.
				if tc.logger != nil {
					tc.logger.Warn("durable store unavailable, falling back to memory",
						slog.String("path", cfg.StorePath),
						slog.String("error", err.Error()),
					)
				}
				store = buffer.NewMemoryStore()
			} else {
				store = sqlStore
			}
		} else {
			store = buffer.NewMemoryStore()
		}
	}

	buf := buffer.New(store, diagLogger)

	sender := tc.sender
	if sender == nil {
		retry := delivery.NoRetry
		if cfg.RetryMaxAttempts > 1 {
			retry = delivery.DefaultRetry
			retry.MaxAttempts = cfg.RetryMaxAttempts
		}
		httpSender, err := delivery.NewHTTPSender(delivery.HTTPSenderConfig{
			Endpoint: cfg.Endpoint,
			AppID:    cfg.AppID,
			Headers:  cfg.Headers,
			Timeout:  cfg.RequestTimeout(),
			Beacon:   tc.beacon,
			Retry:    retry,
			Logger:   diagLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("delivery sender: %w", err)
		}
		sender = httpSender
	}

	restoreDelay := tc.restore
	if restoreDelay <= 0 {
		restoreDelay = DefaultRestoreDelay
	}

	pipeline := NewPipeline(sender, buf,
		WithMode(pipelineMode(cfg.Mode)),
		WithBatch(cfg.BatchSize, cfg.BatchInterval()),
		WithRestoreDelay(restoreDelay),
		WithPipelineLogger(tc.logger),
		WithPipelineMetrics(tc.metrics),
		WithPipelineSpans(tc.spans),
	)

	baseMeta := tc.meta
	if cfg.Platform != "" {
		baseMeta.Platform = cfg.Platform
	}

	t := &Tracker{
		cfg:      cfg,
		store:    store,
		ownStore: ownStore,
		buffer:   buf,
		sender:   sender,
		pipeline: pipeline,
		filter:   event.NewPageViewFilter(cfg.DedupWindow()),
		metrics:  tc.metrics,
		logger:   tc.logger,
		baseMeta: baseMeta,
	}

	pipeline.Start()
	return t, nil
}

// pipelineMode maps a config mode string to the pipeline's delivery mode.
func pipelineMode(mode string) delivery.Mode {
	switch mode {
	case config.ModeImmediate:
		return delivery.ModeImmediate
	case config.ModeBeacon:
		return delivery.ModeBeacon
	default:
		return delivery.ModeBatch
	}
}

// SetPage records the current page context stamped into subsequent events.
func (t *Tracker) SetPage(url, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageURL = url
	t.pageTitle = title
}

// PageView captures a page view for the given URL, updating the current
// page context. A page view for the same normalized URL within the dedup
// window is silently discarded before any event is created.
func (t *Tracker) PageView(url, title string, props map[string]any) {
	t.SetPage(url, title)

	if !t.filter.Allow(url) {
		t.metrics.RecordDedup(context.Background())
		observability.LogDroppedEvent(t.logger, string(event.KindPageView), "duplicate page view")
		return
	}
	t.capture(event.KindPageView, "page_view", props)
}

// Click captures a click interaction.
func (t *Tracker) Click(name string, props map[string]any) {
	t.capture(event.KindClick, name, props)
}

// Custom captures an application-defined event.
func (t *Tracker) Custom(name string, props map[string]any) {
	t.capture(event.KindCustom, name, props)
}

// UserAction captures a higher-level user action.
func (t *Tracker) UserAction(name string, props map[string]any) {
	t.capture(event.KindUserAction, name, props)
}

// TrackError captures an application error. A nil error is ignored.
func (t *Tracker) TrackError(err error, props map[string]any) {
	if err == nil {
		return
	}
	merged := map[string]any{"error_message": err.Error()}
	for k, v := range props {
		if k == "error_message" {
			continue
		}
		merged[k] = v
	}
	t.capture(event.KindError, "error", merged)
}

// Performance captures a named performance measurement in milliseconds.
func (t *Tracker) Performance(name string, valueMS float64, props map[string]any) {
	merged := map[string]any{"value_ms": valueMS}
	for k, v := range props {
		if k == "value_ms" {
			continue
		}
		merged[k] = v
	}
	t.capture(event.KindPerformance, name, merged)
}

// APIPerformance captures one outbound API call's latency and status.
// Satisfies instrument.Reporter.
func (t *Tracker) APIPerformance(method, url string, status int, latency time.Duration) {
	t.capture(event.KindAPIPerformance, "api_call", map[string]any{
		"method":      method,
		"url":         url,
		"status_code": status,
		"latency_ms":  float64(latency.Milliseconds()),
	})
}

// PageDuration captures how long a page was active.
func (t *Tracker) PageDuration(url string, d time.Duration) {
	t.capture(event.KindPageDuration, "page_duration", map[string]any{
		"url":         url,
		"duration_ms": float64(d.Milliseconds()),
	})
}

// capture builds an event from the tracker's identity and page context
// and enqueues it.
func (t *Tracker) capture(kind event.Kind, name string, props map[string]any) {
	opts := []event.Option{
		event.WithProps(props),
		event.WithMeta(t.currentMeta()),
	}
	if userID, ok := t.buffer.UserID(); ok {
		opts = append(opts, event.WithUserID(userID))
	}

	t.pipeline.Enqueue(event.New(kind, name, t.buffer.SessionID(), opts...))
}

func (t *Tracker) currentMeta() event.Meta {
	t.mu.Lock()
	defer t.mu.Unlock()

	meta := t.baseMeta
	if t.pageURL != "" {
		meta.PageURL = t.pageURL
	}
	if t.pageTitle != "" {
		meta.PageTitle = t.pageTitle
	}
	return meta
}

// SessionID returns the current session identifier, creating one if needed.
func (t *Tracker) SessionID() string {
	return t.buffer.SessionID()
}

// RenewSession rotates the session identifier. All subsequent events carry
// the new identifier.
func (t *Tracker) RenewSession() string {
	return t.buffer.RenewSession()
}

// Identify binds a user identity to subsequent events and mirrors it to
// durable storage.
func (t *Tracker) Identify(userID string) {
	t.buffer.SetUserID(userID)
}

// ClearIdentity removes the user identity from memory and storage.
func (t *Tracker) ClearIdentity() {
	t.buffer.ClearUserID()
}

// Reset clears all persisted state, rotates the session, and resets the
// page-view dedup pointer. Pending events are not discarded.
func (t *Tracker) Reset() {
	t.buffer.ResetAll()
	t.filter.Reset()
}

// Flush attempts one delivery of the current pending queue.
func (t *Tracker) Flush() {
	t.pipeline.Flush()
}

// Pipeline exposes the underlying pipeline, primarily for wiring the
// teardown handler.
func (t *Tracker) Pipeline() *Pipeline {
	return t.pipeline
}

// Buffer exposes the durable buffer, primarily for wiring the teardown
// handler.
func (t *Tracker) Buffer() *buffer.Buffer {
	return t.buffer
}

// Sender exposes the delivery sender, primarily for wiring the teardown
// handler.
func (t *Tracker) Sender() delivery.Sender {
	return t.sender
}

// Close stops the pipeline with one opportunistic flush, waits for any
// in-flight deliveries, and closes the store if the tracker owns it.
func (t *Tracker) Close() error {
	t.pipeline.Stop()
	t.pipeline.Wait()
	if t.ownStore {
		return t.store.Close()
	}
	return nil
}
