package interfaces

// -----------------------------------------------------------------------------

// ISerializer defines the contract for marshaling and unmarshaling data.
// This interface keeps the stream and REST layers agnostic about the actual wire format.
type ISerializer interface {
	// Marshal converts a Go object (struct) into a byte slice.
	Marshal(obj interface{}) ([]byte, error)

	// Unmarshal converts a byte slice back into a Go object.
	Unmarshal(data []byte, obj interface{}) error
}
