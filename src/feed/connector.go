package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-pulse/src/brokers"
	"market-pulse/src/config"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/transports"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------
// Connection state machine
// -----------------------------------------------------------------------------

// ConnState is the feed connector's connection state. It is owned exclusively
// by the connector and observable only through Status.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateStopped      ConnState = "stopped"
)

// Feed modes, decided once at Start.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// -----------------------------------------------------------------------------
// Connector
// -----------------------------------------------------------------------------

// Connector owns the single upstream streaming connection: it dials,
// subscribes, reads ticks into the quote store, and survives connection drops
// with capped exponential backoff. When no upstream credential is configured
// it runs the simulated feed instead; from the store's perspective the two
// modes are indistinguishable.
type Connector struct {
	Name string

	// Reconnect backoff bounds. Defaulted from config in Start.
	BackoffFloor time.Duration
	BackoffCeil  time.Duration

	config *config.Config
	logger *logger.Logger
	store  interfaces.IQuoteSink
	subs   *SubscriptionRegistry

	mode   string
	broker interfaces.IBroker
	client interfaces.IConnectionClient
	seeder interfaces.ISeeder
	sim    *SimulatedFeed

	mu      sync.Mutex
	state   ConnState
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// sleep between reconnect attempts, overridable in tests
	sleep func(ctx context.Context, d time.Duration) bool
}

// -----------------------------------------------------------------------------

// NewConnector creates the feed connector for the configured mode. In live
// mode the broker codec is resolved from the registry and validated; in
// simulated mode no upstream pieces are built at all.
func NewConnector(cfg *config.Config, log *logger.Logger, store interfaces.IQuoteSink) (*Connector, error) {
	c := &Connector{
		Name:   "FeedConnector",
		config: cfg,
		logger: log,
		store:  store,
		subs:   NewSubscriptionRegistry(),
		state:  StateDisconnected,
		sleep:  sleepCtx,
	}

	if !cfg.LiveMode() {
		c.mode = ModeSimulated
		c.sim = NewSimulatedFeed(&cfg.Feed, log, store, c.subs)
		return c, nil
	}

	c.mode = ModeLive

	constructor, err := brokers.GetConstructor(cfg.Feed.Broker)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broker '%s': %w", cfg.Feed.Broker, err)
	}

	broker, err := constructor(&cfg.Feed, log, cfg.Feed.Broker)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker '%s': %w", cfg.Feed.Broker, err)
	}
	if err := broker.ValidateConfiguration(); err != nil {
		return nil, fmt.Errorf("broker '%s' configuration invalid: %w", cfg.Feed.Broker, err)
	}

	c.broker = broker
	c.client = transports.NewWebSocketClient(broker.GetEndpointWithCredentials(), log, cfg.Feed.Broker)
	c.seeder = NewSnapshotSeeder(&cfg.Feed, log, store)

	return c, nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start subscribes the configured default symbols and launches the background
// feed task: the reconnect loop in live mode, the generator in simulated mode.
func (c *Connector) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("%s is already running", c.Name)
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	ctx := c.ctx
	c.mu.Unlock()

	if c.BackoffFloor == 0 {
		c.BackoffFloor = time.Duration(c.config.Feed.BackoffFloorSec) * time.Second
	}
	if c.BackoffCeil == 0 {
		c.BackoffCeil = time.Duration(c.config.Feed.BackoffCeilSec) * time.Second
	}

	for _, symbol := range c.config.Feed.Symbols {
		c.subs.Add(utils.CanonicalSymbol(symbol))
	}

	if c.mode == ModeSimulated {
		c.logger.Warning("%s : no upstream credential configured, running with simulated data", c.Name)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.sim.Run(ctx)
		}()
		return nil
	}

	// Seed the cache in the background so it doesn't block startup, then run
	// the reconnect loop.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.seeder.SeedAll(ctx, c.subs.List())
	}()

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("%s : started in %s mode with %d symbols", c.Name, c.mode, c.subs.Len())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the background task to exit, closes any open connection and
// waits for everything to finish. No ticks are written after Stop returns.
func (c *Connector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()

	// Closing the connection unblocks the read loop; a close error during
	// shutdown is expected and swallowed.
	if c.client != nil {
		_ = c.client.Disconnect()
	}

	c.wg.Wait()
	c.setState(StateStopped)
	c.logger.Info("%s : stopped", c.Name)
}

// -----------------------------------------------------------------------------
// Subscription management
// -----------------------------------------------------------------------------

// Subscribe adds a symbol to the subscribed set. Idempotent. If connected, the
// upstream subscribe command is sent best-effort (the next reconnect re-issues
// every subscription anyway); the first subscription of a symbol with no
// cached quote also triggers a one-shot snapshot seed.
func (c *Connector) Subscribe(symbol string) {
	symbol = utils.CanonicalSymbol(symbol)
	if symbol == "" {
		return
	}

	first := c.subs.Add(symbol)
	if first {
		c.logger.Info("%s : subscribed to %s", c.Name, symbol)
	}

	if c.mode != ModeLive {
		return
	}

	if c.State() == StateConnected {
		if msg, err := c.broker.AddSubscription(symbol); err == nil {
			if err := c.client.SendMessage(msg); err != nil {
				c.logger.Warning("%s : failed to send subscribe command for %s: %v", c.Name, symbol, err)
			}
		}
	}

	if first {
		if _, cached := c.store.Get(symbol); !cached {
			c.seeder.SeedSymbol(c.context(), symbol)
		}
	}
}

// -----------------------------------------------------------------------------

// Unsubscribe removes a symbol from the subscribed set, sending the upstream
// unsubscribe command best-effort. The cached quote for the symbol is left in
// place.
func (c *Connector) Unsubscribe(symbol string) {
	symbol = utils.CanonicalSymbol(symbol)
	if !c.subs.Remove(symbol) {
		return
	}
	c.logger.Info("%s : unsubscribed from %s", c.Name, symbol)

	if c.mode == ModeLive && c.State() == StateConnected {
		if msg, err := c.broker.RemoveSubscription(symbol); err == nil {
			if err := c.client.SendMessage(msg); err != nil {
				c.logger.Warning("%s : failed to send unsubscribe command for %s: %v", c.Name, symbol, err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// EnsureSubscribed subscribes every symbol not already in the subscribed set.
// Called whenever a client stream starts.
func (c *Connector) EnsureSubscribed(symbols []string) {
	for _, symbol := range symbols {
		symbol = utils.CanonicalSymbol(symbol)
		if symbol != "" && !c.subs.Has(symbol) {
			c.Subscribe(symbol)
		}
	}
}

// -----------------------------------------------------------------------------
// Status
// -----------------------------------------------------------------------------

// State returns the current connection state.
func (c *Connector) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// -----------------------------------------------------------------------------

// Status reports the connector's mode, state and subscription set.
func (c *Connector) Status() models.MFeedStatus {
	c.mu.Lock()
	running := c.running
	state := c.state
	c.mu.Unlock()

	endpoint := "(simulated)"
	if c.broker != nil {
		endpoint = utils.MaskAPIKey(c.broker.GetEndPoint())
	}

	return models.MFeedStatus{
		Mode:     c.mode,
		State:    string(state),
		Running:  running,
		Endpoint: endpoint,
		Symbols:  c.subs.List(),
	}
}

// -----------------------------------------------------------------------------
// Reconnect and read loops
// -----------------------------------------------------------------------------

// runLoop is the connection supervisor: dial, resubscribe, read until the
// connection drops, back off, retry. Repeated failures never terminate the
// loop; it exits only when a stop is requested.
func (c *Connector) runLoop(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.BackoffFloor

	for ctx.Err() == nil {
		c.setState(StateConnecting)

		if err := c.client.Connect(ctx); err != nil {
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				break
			}
			c.logger.Warning("%s : connect failed: %v (retrying in %s)", c.Name, err, backoff)
			if !c.sleep(ctx, backoff) {
				break
			}
			backoff = minDuration(backoff*2, c.BackoffCeil)
			continue
		}

		c.setState(StateConnected)
		backoff = c.BackoffFloor
		c.resubscribe()

		err := c.readLoop(ctx)
		_ = c.client.Disconnect()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			break
		}
		c.logger.Warning("%s : feed disconnected: %v (reconnecting in %s)", c.Name, err, backoff)
		if !c.sleep(ctx, backoff) {
			break
		}
		backoff = minDuration(backoff*2, c.BackoffCeil)
	}

	c.setState(StateStopped)
}

// -----------------------------------------------------------------------------

// resubscribe re-issues the subscribe command for every symbol in the
// subscribed set, recovering the upstream's view after a (re)connect.
func (c *Connector) resubscribe() {
	symbols := c.subs.List()
	for _, symbol := range symbols {
		msg, err := c.broker.AddSubscription(symbol)
		if err != nil {
			c.logger.Error("%s : failed to build subscribe command for %s: %v", c.Name, symbol, err)
			continue
		}
		if err := c.client.SendMessage(msg); err != nil {
			c.logger.Warning("%s : failed to send subscribe command for %s: %v", c.Name, symbol, err)
			return
		}
	}
	c.logger.Info("%s : re-issued subscriptions for %d symbols", c.Name, len(symbols))
}

// -----------------------------------------------------------------------------

// readLoop consumes inbound messages until the connection errors. Malformed
// messages are logged and skipped, never fatal to the connection.
func (c *Connector) readLoop(ctx context.Context) error {
	for {
		message, err := c.client.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ticks, err := c.broker.ParseMessage(message)
		if err != nil {
			c.logger.Warning("%s : skipping malformed message: %v", c.Name, err)
			continue
		}

		for _, tick := range ticks {
			c.store.Put(tick.Symbol, tick.Price, tick.Volume, tick.Timestamp)
		}
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (c *Connector) setState(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Connector) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// sleepCtx sleeps for d, returning false if the context was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
