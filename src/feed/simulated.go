package feed

import (
	"context"
	"math/rand"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------

// simulatedBasePrices anchors the random walk of each default symbol near a
// plausible level. Symbols without an entry start at simulatedDefaultBase.
var simulatedBasePrices = map[string]float64{
	"DIA": 420.0, "SPY": 530.0, "QQQ": 460.0, "IWM": 220.0,
	"JPM": 195.0, "GS": 480.0, "V": 280.0, "JNJ": 155.0, "WMT": 170.0,
	"AAPL": 190.0, "MSFT": 420.0, "GOOGL": 175.0, "AMZN": 185.0, "META": 510.0,
	"TSLA": 250.0, "NVDA": 800.0, "BRK.B": 410.0, "UNH": 520.0, "XOM": 105.0,
}

const simulatedDefaultBase = 100.0

// -----------------------------------------------------------------------------

// SimulatedFeed generates synthetic price data when no upstream credential is
// configured. Every subscribed symbol gets a base quote and a random-walk
// warm-up series, then a small bounded perturbation on each interval, all
// flowing through the same quote sink as the real connector.
type SimulatedFeed struct {
	Name string

	// Interval between perturbation rounds. Defaulted in Run.
	Interval time.Duration

	config *models.MFeedConfig
	logger *logger.Logger
	store  interfaces.IQuoteSink
	subs   *SubscriptionRegistry
	rng    *rand.Rand
}

// -----------------------------------------------------------------------------

// NewSimulatedFeed creates the generator. It shares the connector's
// subscription registry so late subscriptions are picked up on the next round.
func NewSimulatedFeed(feedCfg *models.MFeedConfig, log *logger.Logger, store interfaces.IQuoteSink, subs *SubscriptionRegistry) *SimulatedFeed {
	return &SimulatedFeed{
		Name:   "SimulatedFeed",
		config: feedCfg,
		logger: log,
		store:  store,
		subs:   subs,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// -----------------------------------------------------------------------------

// Run seeds every subscribed symbol and then perturbs prices on a fixed
// interval until the context is cancelled.
func (s *SimulatedFeed) Run(ctx context.Context) {
	if s.Interval == 0 {
		s.Interval = 1500 * time.Millisecond
	}

	for _, symbol := range s.subs.List() {
		s.initSymbol(symbol)
	}
	s.logger.Info("%s : initialized %d symbols", s.Name, s.subs.Len())

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// -----------------------------------------------------------------------------

// initSymbol installs a base quote and a synthetic random-walk sparkline.
func (s *SimulatedFeed) initSymbol(symbol string) {
	base, ok := simulatedBasePrices[symbol]
	if !ok {
		base = simulatedDefaultBase
	}

	samples := s.config.SparklineSamples
	if samples <= 0 {
		samples = 20
	}

	walk := make([]float64, 0, samples)
	price := base
	for i := 0; i < samples; i++ {
		price = utils.Round2(price * (1 + s.uniform(-0.002, 0.002)))
		walk = append(walk, price)
	}

	s.store.Prime(symbol, models.MQuote{
		Symbol:    symbol,
		Price:     base,
		Volume:    int64(s.rng.Intn(4_900_001) + 100_000),
		Timestamp: time.Now().UnixMilli(),
	}, walk)
}

// -----------------------------------------------------------------------------

// tick perturbs every subscribed symbol's price by a small bounded random
// percentage and bumps its volume. Symbols subscribed after warm-up are
// initialized here on their first round.
func (s *SimulatedFeed) tick() {
	now := time.Now().UnixMilli()

	for _, symbol := range s.subs.List() {
		quote, ok := s.store.Get(symbol)
		if !ok {
			s.initSymbol(symbol)
			continue
		}

		change := quote.Price * s.uniform(-0.003, 0.003)
		price := utils.Round2(quote.Price + change)
		volume := quote.Volume + int64(s.rng.Intn(4901)+100)

		s.store.Put(symbol, price, volume, now)
	}
}

// -----------------------------------------------------------------------------

func (s *SimulatedFeed) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
