package models

// -----------------------------------------------------------------------------

// MFeedStatus represents the runtime status of the feed connector.
// It aggregates the connector's mode, connection state and subscription set.
type MFeedStatus struct {
	Mode          string   `json:"mode"`  // "live" or "simulated"
	State         string   `json:"state"` // disconnected, connecting, connected, stopped
	Running       bool     `json:"running"`
	Endpoint      string   `json:"endpoint"` // credential-masked upstream endpoint
	Symbols       []string `json:"symbols"`  // currently subscribed symbols
	CachedSymbols int      `json:"cached_symbols"`
}
