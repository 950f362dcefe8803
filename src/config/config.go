package config

import (
	"fmt"
	"os"
	"strings"

	"market-pulse/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// DefaultSymbols is the static subscription set used when the config does not
// name its own: the index ETF proxies plus a spread of large caps.
var DefaultSymbols = []string{
	// Index ETFs
	"DIA", "SPY", "QQQ", "IWM",
	// NYSE
	"JPM", "GS", "V", "JNJ", "WMT",
	// NASDAQ
	"AAPL", "MSFT", "GOOGL", "AMZN", "META",
	// S&P 500
	"TSLA", "NVDA", "BRK.B", "UNH", "XOM",
}

// apiKeyPlaceholder is treated the same as an absent credential.
const apiKeyPlaceholder = "your_finnhub_api_key_here"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// NewDefaultConfig creates a Config without a file, using defaults throughout.
func NewDefaultConfig(name string) *Config {
	config := &Config{MConfig: &models.MConfig{Name: name, Port: 8080, GRPC_Port: 50051}}
	config.applyDefaults()
	return config
}

// -----------------------------------------------------------------------------

// applyDefaults fills in the parts of the config that may be omitted from the
// YAML file. The environment overrides the file for the API credential.
func (c *Config) applyDefaults() {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.Feed.APIKey = key
	}
	if c.Feed.Broker == "" {
		c.Feed.Broker = "finnhub"
	}
	if c.Feed.Endpoint == "" {
		c.Feed.Endpoint = "wss://ws.finnhub.io"
	}
	if c.Feed.QuoteEndpoint == "" {
		c.Feed.QuoteEndpoint = "https://finnhub.io/api/v1/quote"
	}
	if c.Feed.StatusEndpoint == "" {
		c.Feed.StatusEndpoint = "https://finnhub.io/api/v1/stock/market-status"
	}
	if len(c.Feed.Symbols) == 0 {
		c.Feed.Symbols = append([]string{}, DefaultSymbols...)
	}
	if c.Feed.SparklineSamples == 0 {
		c.Feed.SparklineSamples = 20
	}
	if c.Feed.SparklineIntervalSec == 0 {
		c.Feed.SparklineIntervalSec = 60
	}
	if c.Feed.BackoffFloorSec == 0 {
		c.Feed.BackoffFloorSec = 1
	}
	if c.Feed.BackoffCeilSec == 0 {
		c.Feed.BackoffCeilSec = 30
	}
	if c.GRPC_Host == "" {
		c.GRPC_Host = "0.0.0.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation of ports and feed settings.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	// Validate application ports (using c.Port directly due to embedding)
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid application port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GRPC_Port <= 1024 || c.GRPC_Port > 65535 {
		return fmt.Errorf("invalid gRPC port number: %d (must be between 1025 and 65535)", c.GRPC_Port)
	}

	// Validate feed settings
	if c.Feed.Endpoint == "" {
		return fmt.Errorf("feed endpoint cannot be empty")
	}
	if !strings.HasPrefix(c.Feed.Endpoint, "wss://") && !strings.HasPrefix(c.Feed.Endpoint, "ws://") {
		return fmt.Errorf("feed endpoint must be a websocket URL: %s", c.Feed.Endpoint)
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed symbols list cannot be empty")
	}
	if c.Feed.SparklineSamples < 2 {
		return fmt.Errorf("sparkline_samples must be at least 2, got %d", c.Feed.SparklineSamples)
	}
	if c.Feed.BackoffFloorSec > c.Feed.BackoffCeilSec {
		return fmt.Errorf("backoff floor %ds exceeds ceiling %ds", c.Feed.BackoffFloorSec, c.Feed.BackoffCeilSec)
	}

	return nil
}

// -----------------------------------------------------------------------------

// LiveMode reports whether a usable upstream credential is configured. When
// false the connector runs the simulated feed instead; this is a designed
// fallback, not an error.
func (c *Config) LiveMode() bool {
	return c.Feed.APIKey != "" && c.Feed.APIKey != apiKeyPlaceholder
}
