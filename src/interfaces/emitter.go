package interfaces

// -----------------------------------------------------------------------------

// IEventEmitter delivers one stream event to a connected client. A returned
// error means the client transport is gone and the session should stop.
type IEventEmitter interface {
	// Emit sends a single event. Payload may be empty (heartbeats).
	Emit(event string, payload []byte) error
}
