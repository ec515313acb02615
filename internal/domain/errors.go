package domain

import "github.com/pkg/errors"

// Error kinds reported at the boundary of the event they arose in.
var (
	// ErrValidation marks a mutation request missing a required field.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks a durable write that failed; in-memory state was not advanced.
	ErrPersistence = errors.New("persistence error")
	// ErrProtocol marks an unparseable payload or an unrecognised event type.
	ErrProtocol = errors.New("protocol error")
	// ErrTransport marks a failed delivery to a single connection.
	ErrTransport = errors.New("transport error")
)
