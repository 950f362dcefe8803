package utils

import (
	"math"
	"net/url"
	"strings"
)

// -----------------------------------------------------------------------------

// CanonicalSymbol normalizes a ticker symbol to its canonical uppercase form.
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// -----------------------------------------------------------------------------

// SplitSymbols parses a comma separated symbol list (as accepted by the REST
// and stream endpoints) into canonical symbols, dropping empty entries.
func SplitSymbols(csv string) []string {
	parts := strings.Split(csv, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if symbol := CanonicalSymbol(part); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// -----------------------------------------------------------------------------

// MaskAPIKey hides credential query parameters in an endpoint URL so it can be
// logged safely.
func MaskAPIKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}

	q := u.Query()
	for _, param := range []string{"token", "api_key", "apikey"} {
		if q.Has(param) {
			q.Set(param, "****")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// -----------------------------------------------------------------------------

// Round2 rounds a price to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
