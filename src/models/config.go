package models

// -----------------------------------------------------------------------------

// MConfig is the top-level application configuration, loaded from YAML.
type MConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	GRPC_Host string `yaml:"grpc_host"`
	GRPC_Port int    `yaml:"grpc_port"`
	LogLevel  string `yaml:"log_level"`

	Feed MFeedConfig `yaml:"feed"`
}

// -----------------------------------------------------------------------------

// MFeedConfig configures the upstream market data feed.
// APIKey may be left empty to run against the simulated feed instead of the
// live upstream; it can also be supplied via the FINNHUB_API_KEY env var.
type MFeedConfig struct {
	Broker         string   `yaml:"broker"` // broker codec name, e.g. "finnhub"
	APIKey         string   `yaml:"api_key"`
	Endpoint       string   `yaml:"endpoint"`        // streaming endpoint (wss://...)
	QuoteEndpoint  string   `yaml:"quote_endpoint"`  // one-shot quote REST endpoint
	StatusEndpoint string   `yaml:"status_endpoint"` // market status REST endpoint
	Symbols        []string `yaml:"symbols"`         // default subscription set

	// Sparkline sampling policy.
	SparklineSamples     int `yaml:"sparkline_samples"`      // bounded series capacity
	SparklineIntervalSec int `yaml:"sparkline_interval_sec"` // seconds between appended samples

	// Reconnect backoff bounds for the live connector, in seconds.
	BackoffFloorSec int `yaml:"backoff_floor_sec"`
	BackoffCeilSec  int `yaml:"backoff_ceil_sec"`
}
