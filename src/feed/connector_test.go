package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/src/brokers"
	"market-pulse/src/config"
	"market-pulse/src/logger"
	"market-pulse/src/store"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

// fakeClient scripts connection outcomes: each Connect consumes the next entry
// of connectErrs (nil means success). ReadMessage returns queued messages,
// then blocks until Disconnect.
type fakeClient struct {
	mu          sync.Mutex
	connectErrs []error
	connects    int
	sent        [][]byte
	messages    [][]byte
	closed      chan struct{}
	closeOnce   sync.Once
}

func newFakeClient(connectErrs ...error) *fakeClient {
	return &fakeClient{connectErrs: connectErrs, closed: make(chan struct{})}
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.connects
	f.connects++
	if idx < len(f.connectErrs) {
		return f.connectErrs[idx]
	}
	return errors.New("no more scripted connects")
}

func (f *fakeClient) Disconnect() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeClient) IsRunning() bool { return true }
func (f *fakeClient) GetName() string { return "fake" }
func (f *fakeClient) GetType() string { return "fake" }

func (f *fakeClient) SendMessage(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeClient) ReadMessage() ([]byte, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-f.closed
	return nil, errors.New("connection closed")
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// -----------------------------------------------------------------------------

// fakeSeeder counts seed calls per symbol.
type fakeSeeder struct {
	mu      sync.Mutex
	symbols map[string]int
}

func newFakeSeeder() *fakeSeeder {
	return &fakeSeeder{symbols: make(map[string]int)}
}

func (f *fakeSeeder) SeedSymbol(ctx context.Context, symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols[symbol]++
}

func (f *fakeSeeder) SeedAll(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		f.SeedSymbol(ctx, symbol)
	}
}

func (f *fakeSeeder) count(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.symbols[symbol]
}

// -----------------------------------------------------------------------------

// sleepRecorder records the backoff duration of every sleep, allowing a
// scripted number of sleeps before it stops the loop.
type sleepRecorder struct {
	mu      sync.Mutex
	slept   []time.Duration
	allowed int
	done    chan struct{}
}

func newSleepRecorder(allowed int) *sleepRecorder {
	return &sleepRecorder{allowed: allowed, done: make(chan struct{})}
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	if len(r.slept) >= r.allowed {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
		return false
	}
	return true
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration{}, r.slept...)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func newTestConnector(t *testing.T, client *fakeClient, seeder *fakeSeeder, symbols ...string) (*Connector, *store.QuoteStore) {
	t.Helper()

	cfg := config.NewDefaultConfig("connector-test")
	cfg.Feed.APIKey = "test-key"
	cfg.Feed.Symbols = symbols

	broker, err := brokers.NewFinnhub(&cfg.Feed, logger.NewNopLogger(), "finnhub")
	require.NoError(t, err)

	quoteStore := store.NewQuoteStore(20, time.Minute)

	c := &Connector{
		Name:   "FeedConnector",
		config: cfg,
		logger: logger.NewNopLogger(),
		store:  quoteStore,
		subs:   NewSubscriptionRegistry(),
		state:  StateDisconnected,
		mode:   ModeLive,
		broker: broker,
		client: client,
		seeder: seeder,
		sleep:  sleepCtx,
	}
	return c, quoteStore
}

func waitFor(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestBackoffDoublesToCeiling(t *testing.T) {
	connectErr := errors.New("dial refused")
	client := newFakeClient(
		connectErr, connectErr, connectErr, connectErr,
		connectErr, connectErr, connectErr,
	)
	recorder := newSleepRecorder(7)

	c, _ := newTestConnector(t, client, newFakeSeeder(), "AAPL")
	c.sleep = recorder.sleep

	require.NoError(t, c.Start())
	waitFor(t, recorder.done, "reconnect loop never exhausted its sleeps")
	c.Stop()

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, recorder.recorded())
}

func TestBackoffResetsAfterSuccessfulConnect(t *testing.T) {
	connectErr := errors.New("dial refused")
	// Two failures, one success (whose read loop ends immediately on a queued
	// error path), then two more failures.
	client := newFakeClient(connectErr, connectErr, nil, connectErr, connectErr)
	client.closeOnce.Do(func() { close(client.closed) }) // reads fail instantly
	recorder := newSleepRecorder(5)

	c, _ := newTestConnector(t, client, newFakeSeeder(), "AAPL")
	c.sleep = recorder.sleep

	require.NoError(t, c.Start())
	waitFor(t, recorder.done, "reconnect loop never exhausted its sleeps")
	c.Stop()

	// The sleep after the dropped successful connection is back at the floor.
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}, recorder.recorded())
}

func TestResubscribeOnConnect(t *testing.T) {
	client := newFakeClient(nil)
	recorder := newSleepRecorder(1)

	c, _ := newTestConnector(t, client, newFakeSeeder(), "AAPL", "MSFT", "TSLA")
	c.sleep = recorder.sleep

	require.NoError(t, c.Start())

	// One subscribe command per symbol once connected.
	require.Eventually(t, func() bool {
		return client.sentCount() == 3
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
}

func TestSubscribeIsIdempotentAndSeedsOnce(t *testing.T) {
	client := newFakeClient()
	seeder := newFakeSeeder()

	c, _ := newTestConnector(t, client, seeder, "AAPL")

	c.Subscribe("nvda")
	c.Subscribe("NVDA")
	c.Subscribe(" nvda ")

	assert.True(t, c.subs.Has("NVDA"))
	assert.Equal(t, 1, seeder.count("NVDA"))
}

func TestSubscribeSkipsSeedWhenCached(t *testing.T) {
	client := newFakeClient()
	seeder := newFakeSeeder()

	c, quoteStore := newTestConnector(t, client, seeder, "AAPL")
	quoteStore.Put("NVDA", 800.0, 10, 1)

	c.Subscribe("NVDA")

	assert.Equal(t, 0, seeder.count("NVDA"))
}

func TestUnsubscribeKeepsCacheEntry(t *testing.T) {
	client := newFakeClient()
	c, quoteStore := newTestConnector(t, client, newFakeSeeder(), "AAPL")
	quoteStore.Put("AAPL", 190.0, 10, 1)
	c.subs.Add("AAPL")

	c.Unsubscribe("AAPL")

	assert.False(t, c.subs.Has("AAPL"))
	_, ok := quoteStore.Get("AAPL")
	assert.True(t, ok)
}

func TestEnsureSubscribedAddsOnlyMissing(t *testing.T) {
	client := newFakeClient()
	seeder := newFakeSeeder()
	c, _ := newTestConnector(t, client, seeder, "AAPL")
	c.subs.Add("AAPL")

	c.EnsureSubscribed([]string{"AAPL", "MSFT"})

	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, c.subs.List())
	assert.Equal(t, 0, seeder.count("AAPL"))
	assert.Equal(t, 1, seeder.count("MSFT"))
}

func TestStopIsCleanAndIdempotent(t *testing.T) {
	connectErr := errors.New("dial refused")
	client := newFakeClient(connectErr, connectErr, connectErr, connectErr)

	c, _ := newTestConnector(t, client, newFakeSeeder(), "AAPL")

	require.NoError(t, c.Start())
	c.Stop()
	c.Stop() // second stop is a no-op

	assert.Equal(t, StateStopped, c.State())
}

func TestReadLoopWritesTicksToStore(t *testing.T) {
	client := newFakeClient(nil)
	client.messages = [][]byte{
		[]byte(`{"type":"ping"}`),
		[]byte(`not json at all`),
		[]byte(`{"type":"trade","data":[{"s":"AAPL","p":190.5,"t":1700000000000,"v":12}]}`),
	}
	recorder := newSleepRecorder(1)

	c, quoteStore := newTestConnector(t, client, newFakeSeeder(), "AAPL")
	c.sleep = recorder.sleep

	require.NoError(t, c.Start())

	require.Eventually(t, func() bool {
		quote, ok := quoteStore.Get("AAPL")
		return ok && quote.Price == 190.5
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()

	quote, _ := quoteStore.Get("AAPL")
	assert.Equal(t, int64(12), quote.Volume)
	assert.Equal(t, int64(1700000000000), quote.Timestamp)
}

func TestSimulatedModeWiring(t *testing.T) {
	cfg := config.NewDefaultConfig("connector-test")
	cfg.Feed.APIKey = ""
	cfg.Feed.Symbols = []string{"AAPL"}

	quoteStore := store.NewQuoteStore(20, time.Minute)
	c, err := NewConnector(cfg, logger.NewNopLogger(), quoteStore)
	require.NoError(t, err)

	status := c.Status()
	assert.Equal(t, ModeSimulated, status.Mode)
	assert.Equal(t, "(simulated)", status.Endpoint)
	assert.False(t, status.Running)
}

func TestStatusMasksCredential(t *testing.T) {
	client := newFakeClient()
	c, _ := newTestConnector(t, client, newFakeSeeder(), "AAPL")

	status := c.Status()
	assert.Equal(t, ModeLive, status.Mode)
	assert.NotContains(t, status.Endpoint, "test-key")
}
