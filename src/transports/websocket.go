package transports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-pulse/src/logger"
	"market-pulse/src/utils"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

// WebSocketClient implements interfaces.IConnectionClient using Gorilla WebSocket.
// It holds at most one open connection; the feed connector re-dials it from its
// reconnect loop, so there is no retry logic at this layer.
type WebSocketClient struct {
	name     string
	endpoint string
	logger   *logger.Logger

	mu        sync.Mutex // guards conn and isRunning
	writeMu   sync.Mutex // serializes writes to the connection
	conn      *websocket.Conn
	isRunning bool
}

// -----------------------------------------------------------------------------

// NewWebSocketClient creates a new WebSocket client for the given endpoint.
// The endpoint may carry credentials; it is masked before logging.
func NewWebSocketClient(endpoint string, logger *logger.Logger, name string) *WebSocketClient {
	return &WebSocketClient{
		name:     name,
		endpoint: endpoint,
		logger:   logger,
	}
}

// -----------------------------------------------------------------------------

// Connect establishes the WebSocket connection. Any previous connection is
// closed first.
func (w *WebSocketClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", utils.MaskAPIKey(w.endpoint), err)
	}

	w.conn = conn
	w.isRunning = true

	w.logger.Info("%s : WebSocket connected to %s", w.name, utils.MaskAPIKey(w.endpoint))
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection. Closing also unblocks any pending
// ReadMessage call, which is how the connector interrupts its read loop.
func (w *WebSocketClient) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}
	w.isRunning = false

	if w.conn != nil {
		err := w.conn.Close()
		w.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close connection to %s: %w", utils.MaskAPIKey(w.endpoint), err)
		}
	}

	w.logger.Info("%s : WebSocket disconnected from %s", w.name, utils.MaskAPIKey(w.endpoint))
	return nil
}

// -----------------------------------------------------------------------------

// GetName returns the client name
func (w *WebSocketClient) GetName() string {
	return w.name
}

// -----------------------------------------------------------------------------

// GetType returns the transport type
func (w *WebSocketClient) GetType() string {
	return "websocket"
}

// -----------------------------------------------------------------------------

// IsRunning returns the connection status
func (w *WebSocketClient) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// -----------------------------------------------------------------------------

// SendMessage sends a text message over the open connection.
func (w *WebSocketClient) SendMessage(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ReadMessage blocks until the next text message arrives or the connection
// errors. Non-text frames are skipped.
func (w *WebSocketClient) ReadMessage() ([]byte, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read message error: %w", err)
		}
		if messageType == websocket.TextMessage {
			return message, nil
		}
	}
}
