// pattern: Functional Core
package stream

import "time"

// State is the connection state of the event stream.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the wire-level name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// reconnectDelay computes the exponential backoff delay for the given
// attempt number (0-based). The first retry waits base, then doubles up
// to max.
func reconnectDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
