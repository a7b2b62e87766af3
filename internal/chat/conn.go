package chat

// Conn is one live transport connection. The interface value itself is the
// connection handle used as the registry key, so implementations must be
// comparable (pointer receivers) and never reused.
type Conn interface {
	// ReadFrame blocks until the next inbound frame arrives. Any error ends
	// the session.
	ReadFrame() ([]byte, error)

	// Send queues one serialized event for delivery. It must not block on
	// the network and must be safe for concurrent use. Failures are
	// reported wrapped in ErrDeliveryFailed.
	Send(payload []byte) error

	// Close releases the connection. It must be safe to call more than once.
	Close() error

	// RemoteAddr identifies the peer in logs.
	RemoteAddr() string
}
