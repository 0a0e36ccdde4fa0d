// Package buffer provides durable local buffering for the telemetry
// pipeline: session and user identity lifecycle plus an overflow queue of
// events that failed delivery or were captured at teardown.
package buffer

import "errors"

// Store is the durable key-value store the buffer persists into.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key.
	// Returns ErrNotFound if the key doesn't exist.
	Get(key string) (string, error)

	// Set stores a value under a key, overwriting any previous value.
	Set(key, value string) error

	// Delete removes a key. Returns nil if the key doesn't exist.
	Delete(key string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a key doesn't exist.
	ErrNotFound = errors.New("key not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// Persisted state keys.
const (
	keySessionID = "tracekit.session_id"
	keyUserID    = "tracekit.user_id"
	keyOverflow  = "tracekit.overflow"
)
