package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/serializers"
	"market-pulse/src/store"
)

// -----------------------------------------------------------------------------

type recordedEvent struct {
	Event   string
	Payload []byte
}

// chanEmitter hands every event to the test over a channel.
type chanEmitter struct {
	events chan recordedEvent
	err    error
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{events: make(chan recordedEvent, 64)}
}

func (e *chanEmitter) Emit(event string, payload []byte) error {
	if e.err != nil {
		return e.err
	}
	e.events <- recordedEvent{Event: event, Payload: append([]byte{}, payload...)}
	return nil
}

func (e *chanEmitter) next(t *testing.T) recordedEvent {
	t.Helper()
	select {
	case ev := <-e.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return recordedEvent{}
	}
}

func decodeBatch(t *testing.T, payload []byte) []models.MQuoteSnapshot {
	t.Helper()
	var batch []models.MQuoteSnapshot
	require.NoError(t, json.Unmarshal(payload, &batch))
	return batch
}

// -----------------------------------------------------------------------------

func newSessionForTest(quoteStore *store.QuoteStore, symbols ...string) *Session {
	session := NewSession(quoteStore, serializers.NewJSONSerializer(), logger.NewNopLogger(), symbols)
	session.PollInterval = time.Millisecond
	session.IdleHeartbeat = 3
	return session
}

// -----------------------------------------------------------------------------

func TestSessionSnapshotThenDeltaThenHeartbeat(t *testing.T) {
	quoteStore := store.NewQuoteStore(20, time.Minute)
	quoteStore.Put("AAPL", 190.0, 100, 1)
	quoteStore.Put("MSFT", 420.0, 200, 2)

	session := newSessionForTest(quoteStore, "AAPL", "MSFT")
	emitter := newChanEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx, emitter) }()

	// Initial snapshot carries both symbols, each with its sparkline.
	snapshot := emitter.next(t)
	require.Equal(t, EventSnapshot, snapshot.Event)
	batch := decodeBatch(t, snapshot.Payload)
	require.Len(t, batch, 2)
	assert.Equal(t, "AAPL", batch[0].Symbol)
	assert.NotEmpty(t, batch[0].Sparkline)

	// Only the changed symbol appears in the update; MSFT stayed put and the
	// snapshot already established its price.
	quoteStore.Put("AAPL", 191.0, 110, 3)
	update := emitter.next(t)
	for update.Event == EventHeartbeat {
		update = emitter.next(t)
	}
	require.Equal(t, EventUpdate, update.Event)
	batch = decodeBatch(t, update.Payload)
	require.Len(t, batch, 1)
	assert.Equal(t, "AAPL", batch[0].Symbol)
	assert.Equal(t, 191.0, batch[0].Price)

	// Nothing changes after that, so the next event is a heartbeat.
	heartbeat := emitter.next(t)
	assert.Equal(t, EventHeartbeat, heartbeat.Event)

	cancel()
	require.NoError(t, <-done)
}

func TestSessionEmptySnapshotForUnknownSymbols(t *testing.T) {
	quoteStore := store.NewQuoteStore(20, time.Minute)

	session := newSessionForTest(quoteStore, "ZZZZ")
	emitter := newChanEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx, emitter) }()

	snapshot := emitter.next(t)
	require.Equal(t, EventSnapshot, snapshot.Event)
	assert.Equal(t, "[]", string(snapshot.Payload))

	cancel()
	require.NoError(t, <-done)
}

func TestSessionPicksUpLateData(t *testing.T) {
	quoteStore := store.NewQuoteStore(20, time.Minute)

	session := newSessionForTest(quoteStore, "AAPL")
	emitter := newChanEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx, emitter) }()

	snapshot := emitter.next(t)
	require.Equal(t, EventSnapshot, snapshot.Event)

	// First tick for the symbol arrives after the stream started.
	quoteStore.Put("AAPL", 190.0, 100, 1)

	for {
		ev := emitter.next(t)
		if ev.Event == EventHeartbeat {
			continue
		}
		require.Equal(t, EventUpdate, ev.Event)
		batch := decodeBatch(t, ev.Payload)
		require.Len(t, batch, 1)
		assert.Equal(t, "AAPL", batch[0].Symbol)
		break
	}

	cancel()
	require.NoError(t, <-done)
}

func TestSessionStopsWhenEmitterFails(t *testing.T) {
	quoteStore := store.NewQuoteStore(20, time.Minute)
	quoteStore.Put("AAPL", 190.0, 100, 1)

	session := newSessionForTest(quoteStore, "AAPL")
	emitter := newChanEmitter()
	emitter.err = errors.New("client went away")

	err := session.Run(context.Background(), emitter)
	assert.Error(t, err)
}

func TestSessionCanonicalizesSymbols(t *testing.T) {
	quoteStore := store.NewQuoteStore(20, time.Minute)
	session := NewSession(quoteStore, serializers.NewJSONSerializer(), logger.NewNopLogger(),
		[]string{" aapl ", "MSFT", ""})

	assert.Equal(t, []string{"AAPL", "MSFT"}, session.Symbols())
	assert.NotEmpty(t, session.ID)
}
