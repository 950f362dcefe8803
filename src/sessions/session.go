package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------

// Stream event kinds.
const (
	EventSnapshot  = "snapshot"
	EventUpdate    = "update"
	EventHeartbeat = "heartbeat"
)

// -----------------------------------------------------------------------------

// Session is one client's long-lived subscription to price updates. It polls
// the quote store at a fixed cadence, computes a per-symbol delta against its
// own last-seen prices, and emits only changed quotes plus periodic idle
// heartbeats. Sessions only take read snapshots: they never block the store's
// writer or each other.
type Session struct {
	ID   string
	Name string

	// PollInterval is the delta-poll cadence; IdleHeartbeat the number of
	// consecutive empty polls before a heartbeat. Defaulted in Run.
	PollInterval  time.Duration
	IdleHeartbeat int

	symbols    []string
	store      interfaces.IQuoteReader
	serializer interfaces.ISerializer
	logger     *logger.Logger
}

// -----------------------------------------------------------------------------

// NewSession creates a session for the given symbols, canonicalized to
// uppercase.
func NewSession(store interfaces.IQuoteReader, serializer interfaces.ISerializer, log *logger.Logger, symbols []string) *Session {
	canonical := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if s := utils.CanonicalSymbol(symbol); s != "" {
			canonical = append(canonical, s)
		}
	}

	return &Session{
		ID:         uuid.NewString(),
		Name:       "DistributionSession",
		symbols:    canonical,
		store:      store,
		serializer: serializer,
		logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Symbols returns the session's canonicalized symbol list.
func (s *Session) Symbols() []string {
	return append([]string{}, s.symbols...)
}

// -----------------------------------------------------------------------------

// Run drives the session until the context is cancelled (client disconnect)
// or the emitter reports a dead transport. It first emits one snapshot event
// for every requested symbol with data (an empty snapshot is valid), then
// polls for deltas. The emitter is called from this goroutine only.
func (s *Session) Run(ctx context.Context, emitter interfaces.IEventEmitter) error {
	if s.PollInterval == 0 {
		s.PollInterval = 500 * time.Millisecond
	}
	if s.IdleHeartbeat == 0 {
		s.IdleHeartbeat = 30
	}

	s.logger.Info("%s : session %s started for %d symbols", s.Name, s.ID, len(s.symbols))

	lastPrices := make(map[string]float64, len(s.symbols))

	snapshot := s.collect(func(models.MQuote) bool { return true })
	for _, entry := range snapshot {
		lastPrices[entry.Symbol] = entry.Price
	}
	if err := s.emit(emitter, EventSnapshot, snapshot); err != nil {
		return err
	}

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	idle := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("%s : session %s closed by client", s.Name, s.ID)
			return nil
		case <-ticker.C:
		}

		updates := s.collect(func(quote models.MQuote) bool {
			last, seen := lastPrices[quote.Symbol]
			return !seen || last != quote.Price
		})

		if len(updates) > 0 {
			for _, entry := range updates {
				lastPrices[entry.Symbol] = entry.Price
			}
			if err := s.emit(emitter, EventUpdate, updates); err != nil {
				return err
			}
			idle = 0
			continue
		}

		idle++
		if idle >= s.IdleHeartbeat {
			if err := emitter.Emit(EventHeartbeat, nil); err != nil {
				s.logger.Debug("%s : session %s emitter closed: %v", s.Name, s.ID, err)
				return err
			}
			idle = 0
		}
	}
}

// -----------------------------------------------------------------------------

// collect reads the current quote for every requested symbol and returns the
// ones that have data and pass the filter, each carrying a fresh sparkline
// snapshot.
func (s *Session) collect(include func(models.MQuote) bool) []models.MQuoteSnapshot {
	entries := make([]models.MQuoteSnapshot, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		quote, ok := s.store.Get(symbol)
		if !ok || !include(quote) {
			continue
		}
		entries = append(entries, models.MQuoteSnapshot{
			Symbol:    quote.Symbol,
			Price:     quote.Price,
			Volume:    quote.Volume,
			Timestamp: quote.Timestamp,
			Sparkline: s.store.Sparkline(symbol),
		})
	}
	return entries
}

// -----------------------------------------------------------------------------

// emit marshals a batch and hands it to the emitter. An emitter error means
// the client transport is gone and the session should stop.
func (s *Session) emit(emitter interfaces.IEventEmitter, event string, batch []models.MQuoteSnapshot) error {
	payload, err := s.serializer.Marshal(batch)
	if err != nil {
		s.logger.Error("%s : session %s failed to marshal %s event: %v", s.Name, s.ID, event, err)
		return nil
	}
	if err := emitter.Emit(event, payload); err != nil {
		s.logger.Debug("%s : session %s emitter closed: %v", s.Name, s.ID, err)
		return err
	}
	return nil
}
