package models

// -----------------------------------------------------------------------------

// MQuote is the latest known state of a single symbol. One MQuote exists per
// symbol in the quote store; each tick overwrites it in place.
type MQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds, feed-reported or wall clock
}

// -----------------------------------------------------------------------------

// MTick is a single parsed price update from the upstream feed, before it is
// applied to the quote store.
type MTick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// -----------------------------------------------------------------------------

// MQuoteSnapshot is the per-symbol shape carried by stream snapshot/update
// events and by the bulk quote endpoint: the quote plus its sparkline.
type MQuoteSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp int64     `json:"timestamp"`
	Sparkline []float64 `json:"sparkline"`
}

// -----------------------------------------------------------------------------

// MIndexQuote is an index value derived from an ETF proxy quote.
type MIndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// -----------------------------------------------------------------------------

// MMarketStatus reports whether the US market is currently open.
type MMarketStatus struct {
	IsOpen  bool   `json:"is_open"`
	Holiday string `json:"holiday,omitempty"`
}
