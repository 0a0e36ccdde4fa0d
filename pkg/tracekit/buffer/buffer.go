package buffer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
)

// Buffer wraps a Store with session-identifier lifecycle, user-identifier
// lifecycle, and the durable overflow queue of undelivered events.
//
// Every store fault degrades to a logged no-op: nothing raises past the
// Buffer boundary, so a disabled or quota-exhausted store can never crash
// the host application.
type Buffer struct {
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	userID    string
	hasUserID bool
}

// New creates a Buffer over the given store.
// A nil logger disables degradation warnings.
func New(store Store, logger *slog.Logger) *Buffer {
	return &Buffer{
		store:  store,
		logger: logger,
	}
}

// SessionID returns the persisted session identifier, generating and
// persisting a new one if none exists.
func (b *Buffer) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sessionID != "" {
		return b.sessionID
	}

	if id, err := b.store.Get(keySessionID); err == nil && id != "" {
		b.sessionID = id
		return id
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		b.warn("read session id", err)
	}

	return b.renewSessionLocked()
}

// RenewSession unconditionally generates, persists, and returns a new
// session identifier, discarding the old one. The effect is immediate:
// all subsequent event creation sees the new identifier.
func (b *Buffer) RenewSession() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renewSessionLocked()
}

func (b *Buffer) renewSessionLocked() string {
	id := uuid.NewString()
	b.sessionID = id
	if err := b.store.Set(keySessionID, id); err != nil {
		b.warn("persist session id", err)
	}
	return id
}

// SetUserID stores the user identity in memory and mirrors it durably.
func (b *Buffer) SetUserID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.userID = id
	b.hasUserID = true
	if err := b.store.Set(keyUserID, id); err != nil {
		b.warn("persist user id", err)
	}
}

// UserID returns the user identity and whether one is set. The in-memory
// value is authoritative while the process is alive; the store is only
// consulted before the first SetUserID or ClearUserID.
func (b *Buffer) UserID() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasUserID {
		return b.userID, b.userID != ""
	}

	id, err := b.store.Get(keyUserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.warn("read user id", err)
		}
		return "", false
	}

	b.userID = id
	b.hasUserID = true
	return id, id != ""
}

// ClearUserID removes the user identity from memory and the store.
func (b *Buffer) ClearUserID() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.userID = ""
	b.hasUserID = true
	if err := b.store.Delete(keyUserID); err != nil {
		b.warn("clear user id", err)
	}
}

// AppendOverflow appends events to the end of the persisted overflow
// sequence via a read-modify-write of the full sequence.
func (b *Buffer) AppendOverflow(events []event.Event) {
	if len(events) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.readOverflowLocked()
	combined := append(existing, events...)

	data, err := event.Marshal(combined)
	if err != nil {
		b.warn("serialize overflow", err)
		return
	}
	if err := b.store.Set(keyOverflow, string(data)); err != nil {
		b.warn("persist overflow", err)
	}
}

// DrainOverflow returns and clears the entire overflow sequence.
func (b *Buffer) DrainOverflow() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.readOverflowLocked()
	if len(events) == 0 {
		return nil
	}
	if err := b.store.Delete(keyOverflow); err != nil {
		b.warn("clear overflow", err)
	}
	return events
}

// DropOverflowPrefix removes the first n entries of the overflow sequence,
// used after a partial successful delivery. Consuming the whole sequence
// removes the persisted key entirely.
func (b *Buffer) DropOverflowPrefix(n int) {
	if n <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.readOverflowLocked()
	if len(events) == 0 {
		return
	}

	if n >= len(events) {
		if err := b.store.Delete(keyOverflow); err != nil {
			b.warn("clear overflow", err)
		}
		return
	}

	data, err := event.Marshal(events[n:])
	if err != nil {
		b.warn("serialize overflow", err)
		return
	}
	if err := b.store.Set(keyOverflow, string(data)); err != nil {
		b.warn("persist overflow", err)
	}
}

// OverflowLen returns the number of persisted overflow events.
func (b *Buffer) OverflowLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readOverflowLocked())
}

// ResetAll clears every persisted key and regenerates a fresh session
// identifier. The user identity is not regenerated; it is cleared along
// with everything else.
func (b *Buffer) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range []string{keySessionID, keyUserID, keyOverflow} {
		if err := b.store.Delete(key); err != nil {
			b.warn("reset store", err)
		}
	}
	b.userID = ""
	b.hasUserID = false
	b.renewSessionLocked()
}

func (b *Buffer) readOverflowLocked() []event.Event {
	data, err := b.store.Get(keyOverflow)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.warn("read overflow", err)
		}
		return nil
	}

	events, err := event.Unmarshal([]byte(data))
	if err != nil {
		b.warn("decode overflow", err)
		return nil
	}
	return events
}

func (b *Buffer) warn(op string, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Warn("durable buffer degraded",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
