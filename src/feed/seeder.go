package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------

// finnhubQuoteResponse is the one-shot quote endpoint's response shape.
type finnhubQuoteResponse struct {
	Current   float64 `json:"c"`  // current price
	PrevClose float64 `json:"pc"` // previous close
	Timestamp int64   `json:"t"`  // unix seconds
	Volume    float64 `json:"v"`
}

// -----------------------------------------------------------------------------

// SnapshotSeeder pre-populates the quote store with a one-shot REST quote per
// symbol, so symbols have some data before the first streaming tick arrives.
// All failures are logged and swallowed: seeding is best-effort and must never
// block or fail the caller.
type SnapshotSeeder struct {
	Name string

	config *models.MFeedConfig
	logger *logger.Logger
	store  interfaces.IQuoteSink
	client *http.Client
}

// -----------------------------------------------------------------------------

// NewSnapshotSeeder creates a seeder against the configured quote endpoint.
func NewSnapshotSeeder(feedCfg *models.MFeedConfig, log *logger.Logger, store interfaces.IQuoteSink) *SnapshotSeeder {
	return &SnapshotSeeder{
		Name:   "SnapshotSeeder",
		config: feedCfg,
		logger: log,
		store:  store,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// -----------------------------------------------------------------------------

// SeedSymbol fetches and caches a single symbol's snapshot. The previous
// close, when reported, goes into the sparkline ahead of the current price so
// an immediate delta is available.
func (s *SnapshotSeeder) SeedSymbol(ctx context.Context, symbol string) {
	if s.config.APIKey == "" {
		return
	}

	endpoint := fmt.Sprintf("%s?%s", s.config.QuoteEndpoint, url.Values{
		"symbol": {symbol},
		"token":  {s.config.APIKey},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.logger.Debug("%s : failed to build seed request for %s: %v", s.Name, symbol, err)
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("%s : failed to seed %s: %v", s.Name, symbol, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("%s : seed request for %s returned status %d", s.Name, symbol, resp.StatusCode)
		return
	}

	var quote finnhubQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		s.logger.Debug("%s : failed to decode seed response for %s: %v", s.Name, symbol, err)
		return
	}

	if quote.Current <= 0 {
		return
	}

	timestamp := quote.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	s.store.Seed(symbol, quote.Current, quote.PrevClose, int64(quote.Volume), timestamp*1000)
	s.logger.Debug("%s : seeded %s @ %.2f (pc=%.2f)", s.Name, symbol, quote.Current, quote.PrevClose)
}

// -----------------------------------------------------------------------------

// SeedAll seeds every given symbol with a small gap between requests to
// respect the upstream rate limit (60/min).
func (s *SnapshotSeeder) SeedAll(ctx context.Context, symbols []string) {
	if s.config.APIKey == "" {
		return
	}

	seeded := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		s.SeedSymbol(ctx, symbol)
		if _, ok := s.store.Get(symbol); ok {
			seeded++
		}
		if !sleepCtx(ctx, 100*time.Millisecond) {
			return
		}
	}

	s.logger.Info("%s : seeded cache with %d of %d symbols", s.Name, seeded, len(symbols))
}
