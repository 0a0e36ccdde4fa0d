// Package config defines the configuration surface consumed by the
// telemetry pipeline and a loader for YAML/JSON config files.
package config

import (
	"fmt"
	"time"
)

// Delivery modes accepted by Config.Mode.
const (
	ModeImmediate = "immediate"
	ModeBatch     = "batch"
	ModeBeacon    = "beacon"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultBatchSize        = 10
	DefaultBatchIntervalMS  = 5000
	DefaultRequestTimeoutMS = 5000
	DefaultDedupWindowMS    = 100
)

// Config holds the values (not mechanisms) the pipeline core consumes.
// Intervals are plain milliseconds so the same document round-trips
// through YAML and JSON unchanged.
type Config struct {
	// Endpoint is the report collector URL. Required.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// AppID identifies the reporting application. Required.
	AppID string `yaml:"app_id" json:"app_id"`

	// Mode selects the delivery policy: immediate, batch, or beacon.
	// Default: batch.
	Mode string `yaml:"mode" json:"mode"`

	// BatchSize is the queue length that triggers an immediate flush in
	// batch mode. Default: 10.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BatchIntervalMS is the deferred-flush delay in batch mode.
	// Default: 5000.
	BatchIntervalMS int `yaml:"batch_interval_ms" json:"batch_interval_ms"`

	// RequestTimeoutMS bounds one delivery attempt. Default: 5000.
	RequestTimeoutMS int `yaml:"request_timeout_ms" json:"request_timeout_ms"`

	// RetryMaxAttempts enables in-process delivery retries when > 1.
	// Default: 1 (a failed batch goes straight to the durable overflow).
	RetryMaxAttempts int `yaml:"retry_max_attempts" json:"retry_max_attempts"`

	// Debug enables diagnostic logging of delivery and storage failures.
	Debug bool `yaml:"debug" json:"debug"`

	// Headers are extra request headers sent with every delivery.
	Headers map[string]string `yaml:"headers" json:"headers"`

	// Platform is the device class stamped into events:
	// desktop, mobile, or tablet.
	Platform string `yaml:"platform" json:"platform"`

	// StorePath is the SQLite file backing the durable buffer.
	// Empty selects the in-memory store (no offline resilience).
	StorePath string `yaml:"store_path" json:"store_path"`

	// DedupWindowMS is the page-view duplicate suppression window.
	// Default: 100.
	DedupWindowMS int `yaml:"dedup_window_ms" json:"dedup_window_ms"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeBatch
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchIntervalMS <= 0 {
		c.BatchIntervalMS = DefaultBatchIntervalMS
	}
	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 1
	}
	if c.DedupWindowMS <= 0 {
		c.DedupWindowMS = DefaultDedupWindowMS
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	switch c.Mode {
	case ModeImmediate, ModeBatch, ModeBeacon:
	default:
		return fmt.Errorf("unknown delivery mode %q", c.Mode)
	}
	switch c.Platform {
	case "", "desktop", "mobile", "tablet":
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	return nil
}

// BatchInterval returns the deferred-flush delay as a duration.
func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-attempt timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// DedupWindow returns the page-view suppression window as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMS) * time.Millisecond
}
