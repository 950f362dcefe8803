package store

import (
	"sync"
	"time"

	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// QuoteStore: the process-wide quote cache plus per-symbol sparklines
// -----------------------------------------------------------------------------

// QuoteStore maps each symbol to its latest quote and a bounded, time-decimated
// price series. It is the only shared mutable state between the feed connector
// (writer) and the distribution sessions (readers): every read returns a
// snapshot copy, and the quote and its sparkline are always updated under the
// same lock so a reader never observes one without the other.
type QuoteStore struct {
	mu         sync.RWMutex
	quotes     map[string]models.MQuote
	sparklines map[string][]float64
	lastSample map[string]time.Time

	capacity int           // sparkline capacity bound
	interval time.Duration // min elapsed time between appended samples

	// now is the sampling clock, overridable in tests
	now func() time.Time
}

// -----------------------------------------------------------------------------

// NewQuoteStore creates an empty store with the given sparkline capacity and
// sampling interval. Zero values fall back to 20 samples / 60s.
func NewQuoteStore(capacity int, interval time.Duration) *QuoteStore {
	if capacity <= 0 {
		capacity = 20
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}

	return &QuoteStore{
		quotes:     make(map[string]models.MQuote),
		sparklines: make(map[string][]float64),
		lastSample: make(map[string]time.Time),
		capacity:   capacity,
		interval:   interval,
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// Put upserts the latest quote for a symbol and applies the sampling policy:
// the first tick initializes the series; within the sampling interval the last
// sample is updated in place; once the interval has elapsed the tick is
// appended as a new sample, evicting the oldest beyond capacity. The series is
// a decimated view of the price, not a strict tick history.
func (s *QuoteStore) Put(symbol string, price float64, volume int64, timestampMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[symbol] = models.MQuote{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: timestampMs,
	}

	now := s.now()
	series, ok := s.sparklines[symbol]
	switch {
	case !ok:
		s.sparklines[symbol] = []float64{price}
		s.lastSample[symbol] = now
	case now.Sub(s.lastSample[symbol]) >= s.interval:
		s.sparklines[symbol] = s.appendBounded(series, price)
		s.lastSample[symbol] = now
	case len(series) > 0:
		series[len(series)-1] = price
	}
}

// -----------------------------------------------------------------------------

// Seed cold-seeds a symbol from a one-shot snapshot. When a previous close is
// known it is appended ahead of the current price, so the series has two
// points for an immediate delta.
func (s *QuoteStore) Seed(symbol string, price float64, prevClose float64, volume int64, timestampMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[symbol] = models.MQuote{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: timestampMs,
	}

	series := s.sparklines[symbol]
	if prevClose > 0 {
		series = s.appendBounded(series, prevClose)
	}
	s.sparklines[symbol] = s.appendBounded(series, price)
	s.lastSample[symbol] = s.now()
}

// -----------------------------------------------------------------------------

// Prime replaces a symbol's quote and sparkline wholesale. Used by the
// simulated feed to install its synthetic warm-up series.
func (s *QuoteStore) Prime(symbol string, quote models.MQuote, sparkline []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sparkline) > s.capacity {
		sparkline = sparkline[len(sparkline)-s.capacity:]
	}

	s.quotes[symbol] = quote
	s.sparklines[symbol] = append([]float64{}, sparkline...)
	s.lastSample[symbol] = s.now()
}

// -----------------------------------------------------------------------------

// Get returns the latest quote for a symbol. The second return value is false
// when no tick or seed has ever arrived for the symbol.
func (s *QuoteStore) Get(symbol string) (models.MQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[symbol]
	return quote, ok
}

// -----------------------------------------------------------------------------

// Sparkline returns a snapshot copy of the symbol's price series, oldest
// first. Mutations to the store after the call do not affect the returned
// slice.
func (s *QuoteStore) Sparkline(symbol string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.sparklines[symbol]
	if !ok {
		return []float64{}
	}
	return append([]float64{}, series...)
}

// -----------------------------------------------------------------------------

// All returns a snapshot of the full cache, for diagnostics and bulk
// initial-state responses.
func (s *QuoteStore) All() map[string]models.MQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]models.MQuote, len(s.quotes))
	for symbol, quote := range s.quotes {
		all[symbol] = quote
	}
	return all
}

// -----------------------------------------------------------------------------

// Len returns the number of symbols with cached data.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

// -----------------------------------------------------------------------------

// SetClock overrides the sampling clock. Tests only.
func (s *QuoteStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// -----------------------------------------------------------------------------

// appendBounded appends a sample, evicting the oldest beyond capacity.
// Callers must hold the write lock.
func (s *QuoteStore) appendBounded(series []float64, price float64) []float64 {
	series = append(series, price)
	if len(series) > s.capacity {
		series = series[len(series)-s.capacity:]
	}
	return series
}
