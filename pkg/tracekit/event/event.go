// Package event defines the telemetry event model, wire formatting, and
// duplicate suppression applied before events enter the pipeline.
//
// Events are immutable once created - any modification creates a new event.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a telemetry event.
type Kind string

// Event kinds understood by the collector.
const (
	KindPageView       Kind = "page_view"
	KindClick          Kind = "click"
	KindCustom         Kind = "custom"
	KindError          Kind = "error"
	KindPerformance    Kind = "performance"
	KindUserAction     Kind = "user_action"
	KindAPIPerformance Kind = "api_performance"
	KindPageDuration   Kind = "page_duration"
)

// Valid reports whether k is a recognized event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPageView, KindClick, KindCustom, KindError,
		KindPerformance, KindUserAction, KindAPIPerformance, KindPageDuration:
		return true
	}
	return false
}

// Meta carries the contextual page/device metadata captured with an event.
type Meta struct {
	PageURL          string `json:"page_url,omitempty"`
	PageTitle        string `json:"page_title,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	Platform         string `json:"platform,omitempty"`
}

// Event is one discrete behavioral fact to be recorded.
//
// Timestamp, SessionID, and UserID are fixed at creation. An Event that has
// entered the pending queue is never mutated in place.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Name      string         `json:"name"`
	Props     map[string]any `json:"props,omitempty"`
	Timestamp int64          `json:"timestamp"` // ms since epoch
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Meta      Meta           `json:"meta"`
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id        string
	timestamp int64
	userID    string
	props     map[string]any
	meta      Meta
}

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithTimestamp sets a specific creation time (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t.UnixMilli()
	}
}

// WithUserID attaches the user identity known at creation time.
func WithUserID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.userID = id
	}
}

// WithProps sets the custom property mapping. The map is copied so later
// caller mutations cannot reach a queued event.
func WithProps(props map[string]any) Option {
	return func(cfg *eventConfig) {
		if len(props) == 0 {
			return
		}
		cfg.props = make(map[string]any, len(props))
		for k, v := range props {
			cfg.props[k] = v
		}
	}
}

// WithMeta sets the contextual page/device metadata.
func WithMeta(meta Meta) Option {
	return func(cfg *eventConfig) {
		cfg.meta = meta
	}
}

// New creates an event of the given kind and name bound to a session.
func New(kind Kind, name, sessionID string, opts ...Option) Event {
	cfg := &eventConfig{
		id:        uuid.NewString(),
		timestamp: time.Now().UnixMilli(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return Event{
		ID:        cfg.id,
		Kind:      kind,
		Name:      name,
		Props:     cfg.props,
		Timestamp: cfg.timestamp,
		SessionID: sessionID,
		UserID:    cfg.userID,
		Meta:      cfg.meta,
	}
}

// Marshal serializes events for durable overflow storage.
func Marshal(events []Event) ([]byte, error) {
	return json.Marshal(events)
}

// Unmarshal restores events previously serialized with Marshal.
func Unmarshal(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}
