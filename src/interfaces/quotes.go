package interfaces

import "market-pulse/src/models"

// -----------------------------------------------------------------------------

// IQuoteSink is the writer side of the quote cache, consumed by the feed
// connector, the simulated feed and the snapshot seeder.
type IQuoteSink interface {
	// Put upserts the latest quote for a symbol and applies the sparkline
	// sampling policy atomically with the quote update.
	Put(symbol string, price float64, volume int64, timestampMs int64)

	// Seed cold-seeds a symbol from a one-shot snapshot, appending the
	// previous close (when known) ahead of the current price.
	Seed(symbol string, price float64, prevClose float64, volume int64, timestampMs int64)

	// Prime replaces a symbol's quote and sparkline wholesale. Used by the
	// simulated feed to install its synthetic warm-up series.
	Prime(symbol string, quote models.MQuote, sparkline []float64)

	// Get returns the latest quote, if any tick or seed has ever arrived.
	Get(symbol string) (models.MQuote, bool)
}

// -----------------------------------------------------------------------------

// IQuoteReader is the read-only view of the quote cache, consumed by
// distribution sessions and by the synchronous REST endpoints. All methods
// are non-blocking and return snapshot copies.
type IQuoteReader interface {
	// Get returns the latest quote, if any tick or seed has ever arrived.
	Get(symbol string) (models.MQuote, bool)

	// Sparkline returns a snapshot copy of the symbol's bounded price series,
	// oldest first. Possibly empty.
	Sparkline(symbol string) []float64

	// All returns a snapshot of the full cache.
	All() map[string]models.MQuote
}
