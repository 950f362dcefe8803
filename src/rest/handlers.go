package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"market-pulse/src/models"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------
// Index proxies
// -----------------------------------------------------------------------------

// indexProxy maps an ETF ticker to the index it tracks and the scaling factor
// converting the ETF price to an approximate index value. DIA and SPY ratios
// are stable by ETF design; QQQ and IWM drift over time.
type indexProxy struct {
	Symbol string
	Name   string
	Factor float64
}

var indexProxies = []indexProxy{
	{Symbol: "DIA", Name: "DOW 30", Factor: 100},
	{Symbol: "SPY", Name: "S&P 500", Factor: 10},
	{Symbol: "QQQ", Name: "NASDAQ 100", Factor: 34},
	{Symbol: "IWM", Name: "Russell 2000", Factor: 8.7},
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// handleLatestQuotes serves GET /api/quotes/latest?symbols=A,B,C with each
// cached quote plus its sparkline. Symbols with no cached data are skipped.
func (s *Server) handleLatestQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := utils.SplitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		s.writeError(w, http.StatusBadRequest, "query parameter 'symbols' is required")
		return
	}

	results := make([]models.MQuoteSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		quote, ok := s.store.Get(symbol)
		if !ok {
			continue
		}
		results = append(results, models.MQuoteSnapshot{
			Symbol:    quote.Symbol,
			Price:     quote.Price,
			Volume:    quote.Volume,
			Timestamp: quote.Timestamp,
			Sparkline: s.store.Sparkline(symbol),
		})
	}

	s.writeJSON(w, http.StatusOK, results)
}

// -----------------------------------------------------------------------------
// Market indices
// -----------------------------------------------------------------------------

// handleMarketIndices serves GET /api/market/indices: index values derived
// from cached ETF quotes, with change computed against the sparkline head.
// Uncached proxies fall back to a one-shot upstream quote call; a proxy that
// cannot be resolved either way is omitted.
func (s *Server) handleMarketIndices(w http.ResponseWriter, r *http.Request) {
	results := make([]models.MIndexQuote, 0, len(indexProxies))

	for _, proxy := range indexProxies {
		quote, ok := s.store.Get(proxy.Symbol)
		if ok {
			sparkline := s.store.Sparkline(proxy.Symbol)
			prev := quote.Price
			if len(sparkline) > 1 {
				prev = sparkline[0]
			}
			price := quote.Price * proxy.Factor
			prevScaled := prev * proxy.Factor
			change := price - prevScaled
			changePct := 0.0
			if prevScaled != 0 {
				changePct = change / prevScaled * 100
			}
			results = append(results, models.MIndexQuote{
				Symbol:        proxy.Symbol,
				Name:          proxy.Name,
				Price:         utils.Round2(price),
				Change:        utils.Round2(change),
				ChangePercent: utils.Round2(changePct),
			})
			continue
		}

		if index, ok := s.fetchIndexQuote(r.Context(), proxy); ok {
			results = append(results, index)
		}
	}

	s.writeJSON(w, http.StatusOK, results)
}

// upstreamQuote mirrors the one-shot quote endpoint's payload, including the
// precomputed change fields only that endpoint provides.
type upstreamQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
}

// fetchIndexQuote resolves an index proxy through the one-shot quote endpoint
// when the ETF has no cached quote yet. Failures are logged and the proxy is
// dropped from the response.
func (s *Server) fetchIndexQuote(ctx context.Context, proxy indexProxy) (models.MIndexQuote, bool) {
	if !s.config.LiveMode() {
		return models.MIndexQuote{}, false
	}

	params := url.Values{}
	params.Set("symbol", proxy.Symbol)
	params.Set("token", s.config.Feed.APIKey)
	endpoint := s.config.Feed.QuoteEndpoint + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.MIndexQuote{}, false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.logger.Debug("%s : failed to fetch index proxy %s: %v", s.Name, proxy.Symbol, err)
		return models.MIndexQuote{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("%s : index proxy %s returned status %d", s.Name, proxy.Symbol, resp.StatusCode)
		return models.MIndexQuote{}, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.MIndexQuote{}, false
	}
	var quote upstreamQuote
	if err := s.serializer.Unmarshal(body, &quote); err != nil {
		s.logger.Debug("%s : failed to decode index proxy %s: %v", s.Name, proxy.Symbol, err)
		return models.MIndexQuote{}, false
	}

	return models.MIndexQuote{
		Symbol:        proxy.Symbol,
		Name:          proxy.Name,
		Price:         utils.Round2(quote.Current * proxy.Factor),
		Change:        utils.Round2(quote.Change * proxy.Factor),
		ChangePercent: utils.Round2(quote.ChangePercent),
	}, true
}

// -----------------------------------------------------------------------------
// Market status
// -----------------------------------------------------------------------------

// handleMarketStatus serves GET /api/market/status. With a credential the
// upstream market-status endpoint is authoritative; without one (or when the
// upstream call fails) a naive US-hours weekday/time check answers instead.
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	if !s.config.LiveMode() {
		s.writeJSON(w, http.StatusOK, naiveMarketStatus(time.Now()))
		return
	}

	status, err := s.fetchMarketStatus(r.Context())
	if err != nil {
		s.logger.Error("%s : market status check failed: %v", s.Name, err)
		s.writeJSON(w, http.StatusOK, naiveMarketStatus(time.Now()))
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) fetchMarketStatus(ctx context.Context) (models.MMarketStatus, error) {
	params := url.Values{}
	params.Set("exchange", "US")
	params.Set("token", s.config.Feed.APIKey)
	endpoint := s.config.Feed.StatusEndpoint + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.MMarketStatus{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.MMarketStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.MMarketStatus{}, fmt.Errorf("market status endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.MMarketStatus{}, err
	}
	var payload struct {
		IsOpen  bool   `json:"isOpen"`
		Holiday string `json:"holiday"`
	}
	if err := s.serializer.Unmarshal(body, &payload); err != nil {
		return models.MMarketStatus{}, err
	}

	return models.MMarketStatus{IsOpen: payload.IsOpen, Holiday: payload.Holiday}, nil
}

// naiveMarketStatus approximates US market hours: weekdays 09:30 to 16:00
// Eastern. Holidays are not modeled on this path.
func naiveMarketStatus(now time.Time) models.MMarketStatus {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return models.MMarketStatus{IsOpen: false}
	}
	now = now.In(loc)

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return models.MMarketStatus{IsOpen: false}
	}

	mins := now.Hour()*60 + now.Minute()
	return models.MMarketStatus{IsOpen: mins >= 570 && mins < 960}
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// handleSubscribe serves POST /api/subscriptions/{symbol}.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	symbol := utils.CanonicalSymbol(mux.Vars(r)["symbol"])
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	s.feed.Subscribe(symbol)
	s.writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "subscribed"})
}

// handleUnsubscribe serves DELETE /api/subscriptions/{symbol}.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	symbol := utils.CanonicalSymbol(mux.Vars(r)["symbol"])
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	s.feed.Unsubscribe(symbol)
	s.writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "unsubscribed"})
}

// -----------------------------------------------------------------------------
// Feed status
// -----------------------------------------------------------------------------

// handleFeedStatus serves GET /api/feed/status.
func (s *Server) handleFeedStatus(w http.ResponseWriter, r *http.Request) {
	status := s.feed.Status()
	status.CachedSymbols = s.store.Len()
	s.writeJSON(w, http.StatusOK, status)
}

// -----------------------------------------------------------------------------
// Response helpers
// -----------------------------------------------------------------------------

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := s.serializer.Marshal(payload)
	if err != nil {
		s.logger.Error("%s : failed to marshal response: %v", s.Name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
