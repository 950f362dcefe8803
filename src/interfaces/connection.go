package interfaces

import (
	"context"
)

// -----------------------------------------------------------------------------

// IConnectionClient defines the transport for the upstream streaming
// connection. Reconnect policy lives in the feed connector, not here: a
// client represents at most one open connection at a time.
type IConnectionClient interface {
	// Connect dials the upstream endpoint
	Connect(ctx context.Context) error

	// Disconnect closes the connection
	Disconnect() error

	// IsRunning returns the connection status
	IsRunning() bool

	// GetName returns the client name
	GetName() string

	// GetType returns the transport type
	GetType() string

	// SendMessage sends a control message over the open connection
	SendMessage(message []byte) error

	// ReadMessage blocks until the next inbound message or a connection error
	ReadMessage() ([]byte, error)
}
