package chat

import "errors"

var (
	// ErrMalformedMessage is returned for inbound frames that are not valid
	// JSON objects or lack a required field.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrNotFound is returned by registry lookups for a connection that is not
	// (or no longer) registered.
	ErrNotFound = errors.New("connection not registered")

	// ErrDeliveryFailed wraps transport failures when sending to a single
	// connection.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrDuplicateHandle means a connection was registered twice. It points
	// at a bug in the transport layer.
	ErrDuplicateHandle = errors.New("connection already registered")
)
