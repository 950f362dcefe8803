package brokers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/serializers"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------
// STRUCT DEFINITION
// -----------------------------------------------------------------------------

// Finnhub implements interfaces.IBroker for the Finnhub streaming feed.
type Finnhub struct {
	Name       string
	Logger     *logger.Logger
	Config     *models.MFeedConfig
	Serializer interfaces.ISerializer
}

// -----------------------------------------------------------------------------
// WIRE SHAPES
// -----------------------------------------------------------------------------

// finnhubTrade is one trade entry inside an inbound trade message.
type finnhubTrade struct {
	Symbol    string  `json:"s"` // symbol
	Price     float64 `json:"p"` // last price
	Timestamp int64   `json:"t"` // unix milliseconds
	Volume    float64 `json:"v"` // trade volume, may be fractional
}

// finnhubMessage is the envelope of every inbound message.
type finnhubMessage struct {
	Type string         `json:"type"`
	Data []finnhubTrade `json:"data"`
}

// finnhubControl is the subscribe/unsubscribe control message shape.
type finnhubControl struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// -----------------------------------------------------------------------------
// CONSTRUCTOR AND REGISTRATION
// -----------------------------------------------------------------------------

func init() {
	// Register the broker with the name "finnhub" for dynamic creation
	if err := Register("finnhub", NewFinnhub); err != nil {
		fmt.Printf("Error registering Finnhub broker: %v\n", err)
	}
}

// -----------------------------------------------------------------------------

// NewFinnhub creates a new Finnhub broker instance.
// Matches the interfaces.IBrokerConstructor signature: (feed config, logger, name) -> (IBroker, error)
func NewFinnhub(feed *models.MFeedConfig, logger *logger.Logger, name string) (interfaces.IBroker, error) {
	if feed == nil {
		return nil, fmt.Errorf("feed config for broker '%s' is nil", name)
	}

	return &Finnhub{
		Name:       name,
		Logger:     logger,
		Config:     feed,
		Serializer: serializers.NewJSONSerializer(),
	}, nil
}

// -----------------------------------------------------------------------------
// IBroker IMPLEMENTATION
// -----------------------------------------------------------------------------

// GetName returns the broker name
func (f *Finnhub) GetName() string {
	return f.Name
}

// -----------------------------------------------------------------------------

// GetEndPoint returns the streaming endpoint URL without credentials
func (f *Finnhub) GetEndPoint() string {
	return f.Config.Endpoint
}

// -----------------------------------------------------------------------------

// GetEndpointWithCredentials returns the streaming endpoint with the API key
// attached; Finnhub authenticates the socket via a token query parameter.
func (f *Finnhub) GetEndpointWithCredentials() string {
	return fmt.Sprintf("%s?token=%s", f.Config.Endpoint, f.Config.APIKey)
}

// -----------------------------------------------------------------------------

// AddSubscription creates the subscription message for a single symbol.
func (f *Finnhub) AddSubscription(symbol string) ([]byte, error) {
	msg, err := f.Serializer.Marshal(finnhubControl{
		Type:   "subscribe",
		Symbol: utils.CanonicalSymbol(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize subscription message for %s: %w", symbol, err)
	}
	return msg, nil
}

// -----------------------------------------------------------------------------

// RemoveSubscription creates the unsubscription message for a single symbol.
func (f *Finnhub) RemoveSubscription(symbol string) ([]byte, error) {
	msg, err := f.Serializer.Marshal(finnhubControl{
		Type:   "unsubscribe",
		Symbol: utils.CanonicalSymbol(symbol),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize unsubscription message for %s: %w", symbol, err)
	}
	return msg, nil
}

// -----------------------------------------------------------------------------

// ParseMessage processes an inbound Finnhub message. Trade messages carry a
// batch of trades and yield one tick each; pings and other envelope types
// yield nothing. A malformed payload is an error for the caller to log and
// skip, never fatal to the connection.
func (f *Finnhub) ParseMessage(message []byte) ([]models.MTick, error) {
	var envelope finnhubMessage
	if err := json.Unmarshal(message, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if envelope.Type != "trade" || len(envelope.Data) == 0 {
		// ping, subscription ack, or an empty batch
		return nil, nil
	}

	ticks := make([]models.MTick, 0, len(envelope.Data))
	for _, trade := range envelope.Data {
		if trade.Symbol == "" {
			continue
		}

		timestamp := trade.Timestamp
		if timestamp == 0 {
			timestamp = time.Now().UnixMilli()
		}

		ticks = append(ticks, models.MTick{
			Symbol:    strings.ToUpper(trade.Symbol),
			Price:     trade.Price,
			Volume:    int64(trade.Volume),
			Timestamp: timestamp,
		})
	}

	return ticks, nil
}

// -----------------------------------------------------------------------------

// ValidateConfiguration validates the Finnhub feed configuration
func (f *Finnhub) ValidateConfiguration() error {
	if f.Config.Endpoint == "" {
		return fmt.Errorf("finnhub endpoint cannot be empty")
	}

	// Finnhub-specific validation: enforce secure websocket protocol
	if !strings.HasPrefix(f.Config.Endpoint, "wss://") {
		return fmt.Errorf("finnhub endpoint must use wss:// protocol")
	}

	if f.Config.APIKey == "" {
		return fmt.Errorf("finnhub API key cannot be empty")
	}

	return nil
}
