package interfaces

import "context"

// -----------------------------------------------------------------------------

// ISeeder pre-populates the quote cache with a one-shot snapshot per symbol,
// so a symbol has some data before the first streaming tick arrives.
// Implementations swallow failures: seeding is best-effort.
type ISeeder interface {
	// SeedSymbol fetches and caches a single symbol's snapshot
	SeedSymbol(ctx context.Context, symbol string)

	// SeedAll seeds every given symbol, respecting upstream rate limits
	SeedAll(ctx context.Context, symbols []string)
}
