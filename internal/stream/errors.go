package stream

import "errors"

var (
	// ErrAlreadyClosed is returned when connecting through a client that was
	// closed.
	ErrAlreadyClosed = errors.New("client already closed")

	// ErrStreamEnded signals that the server closed an established stream.
	ErrStreamEnded = errors.New("event stream ended")
)
