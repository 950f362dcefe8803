package interfaces

import (
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------

// IBrokerConstructor defines the function signature for creating a new IBroker instance.
type IBrokerConstructor func(feed *models.MFeedConfig, logger *logger.Logger, name string) (IBroker, error)

// -----------------------------------------------------------------------------

// IBroker defines the wire codec for one upstream feed provider: how to build
// its control messages and how to parse its inbound tick messages.
type IBroker interface {
	// GetName returns the broker name
	GetName() string

	// GetEndPoint returns the streaming endpoint of the broker (for display/logging)
	GetEndPoint() string

	// GetEndpointWithCredentials returns the full endpoint with credentials for the connection
	GetEndpointWithCredentials() string

	// AddSubscription creates the upstream subscribe message for a symbol
	AddSubscription(symbol string) ([]byte, error)

	// RemoveSubscription creates the upstream unsubscribe message for a symbol
	RemoveSubscription(symbol string) ([]byte, error)

	// ParseMessage processes an inbound message into zero or more ticks.
	// Non-tick messages (pings, acks) yield no ticks and no error.
	ParseMessage(message []byte) ([]models.MTick, error)

	// ValidateConfiguration checks the broker's feed configuration
	ValidateConfiguration() error
}
