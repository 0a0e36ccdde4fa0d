package buffer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracekit/tracekit/pkg/tracekit/buffer"
	"github.com/tracekit/tracekit/pkg/tracekit/event"
)

func makeEvents(sessionID string, names ...string) []event.Event {
	events := make([]event.Event, 0, len(names))
	for _, name := range names {
		events = append(events, event.New(event.KindCustom, name, sessionID))
	}
	return events
}

func TestBuffer_SessionID_Lazy(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	id := buf.SessionID()
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "session id should be UUID-shaped")

	// Stable across calls
	assert.Equal(t, id, buf.SessionID())

	// Persisted: a fresh buffer over the same store sees it
	fresh := buffer.New(store, nil)
	assert.Equal(t, id, fresh.SessionID())
}

func TestBuffer_RenewSession(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	first := buf.SessionID()
	renewed := buf.RenewSession()

	assert.NotEqual(t, first, renewed)
	assert.Equal(t, renewed, buf.SessionID(), "renewal is immediately visible")

	fresh := buffer.New(store, nil)
	assert.Equal(t, renewed, fresh.SessionID(), "renewal is persisted")
}

func TestBuffer_UserID_Lifecycle(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	_, ok := buf.UserID()
	assert.False(t, ok)

	buf.SetUserID("user-1")
	id, ok := buf.UserID()
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)

	// Mirrored to the store
	fresh := buffer.New(store, nil)
	id, ok = fresh.UserID()
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)

	buf.ClearUserID()
	_, ok = buf.UserID()
	assert.False(t, ok)

	// Cleared in the store too
	cleared := buffer.New(store, nil)
	_, ok = cleared.UserID()
	assert.False(t, ok)
}

func TestBuffer_Overflow_AppendAndDrain(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	buf.AppendOverflow(makeEvents("sess-1", "a", "b"))
	buf.AppendOverflow(makeEvents("sess-1", "c"))
	assert.Equal(t, 3, buf.OverflowLen())

	drained := buf.DrainOverflow()
	require.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].Name)
	assert.Equal(t, "b", drained[1].Name)
	assert.Equal(t, "c", drained[2].Name)

	// Drain clears in one logical step
	assert.Equal(t, 0, buf.OverflowLen())
	assert.Nil(t, buf.DrainOverflow())
}

func TestBuffer_Overflow_DropPrefix(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	buf.AppendOverflow(makeEvents("sess-1", "a", "b", "c"))

	buf.DropOverflowPrefix(2)
	remaining := buf.DrainOverflow()
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].Name)
}

func TestBuffer_Overflow_DropWholeSequenceRemovesKey(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	buf.AppendOverflow(makeEvents("sess-1", "a", "b"))
	buf.DropOverflowPrefix(5)

	assert.Equal(t, 0, buf.OverflowLen())
	assert.Equal(t, 0, store.Len(), "emptied overflow key is removed, not left as an empty container")
}

func TestBuffer_Overflow_AppendEmptyNoop(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	buf.AppendOverflow(nil)
	assert.Equal(t, 0, store.Len())
}

func TestBuffer_ResetAll(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	buf := buffer.New(store, nil)

	first := buf.SessionID()
	buf.SetUserID("user-1")
	buf.AppendOverflow(makeEvents("sess-1", "a"))

	buf.ResetAll()

	assert.NotEqual(t, first, buf.SessionID(), "fresh session id after reset")
	_, ok := buf.UserID()
	assert.False(t, ok)
	assert.Equal(t, 0, buf.OverflowLen())
}

func TestBuffer_StoreFaultDegradesToNoop(t *testing.T) {
	store := buffer.NewMemoryStore()
	defer store.Close()
	store.FailWrites = true
	buf := buffer.New(store, nil)

	// None of these may panic or surface an error
	assert.NotPanics(t, func() {
		id := buf.SessionID()
		assert.NotEmpty(t, id, "session id is still served from memory")
		buf.SetUserID("user-1")
		buf.AppendOverflow(makeEvents("sess-1", "a"))
		buf.DropOverflowPrefix(1)
		buf.ResetAll()
	})
}

func TestBuffer_ClosedStoreDegradesToNoop(t *testing.T) {
	store := buffer.NewMemoryStore()
	require.NoError(t, store.Close())
	buf := buffer.New(store, nil)

	assert.NotPanics(t, func() {
		assert.NotEmpty(t, buf.SessionID())
		buf.SetUserID("user-1")
		_, _ = buf.UserID()
		buf.ClearUserID()
		buf.AppendOverflow(makeEvents("sess-1", "a"))
		assert.Nil(t, buf.DrainOverflow())
		buf.ResetAll()
	})
}
