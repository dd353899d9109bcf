package types

// Message defines the type of message sent between parties. Every
// protocol message must implement this interface to be registered in
// the message registry.
type Message interface {
	// NewEmpty returns a new empty message of the same concrete type,
	// used by the registry to unmarshal an incoming payload.
	NewEmpty() Message

	// Name returns the unique name of the message type, used as the
	// dispatch key on the wire.
	Name() string

	// String returns a human readable form of the message.
	String() string
}
