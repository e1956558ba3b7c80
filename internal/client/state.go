package client

import "time"

// State is the connection lifecycle state
type State string

const (
	StateDisconnected    State = "disconnected"
	StateConnecting      State = "connecting"
	StateConnected       State = "connected"
	StateReconnecting    State = "reconnecting"
	StateReconnectFailed State = "reconnect_failed"
	StateError           State = "error"
	StateKicked          State = "kicked"
)

// IsTerminal reports whether the state needs an explicit Retry or Close
func (s State) IsTerminal() bool {
	return s == StateReconnectFailed || s == StateError || s == StateKicked
}

const (
	// DefaultBaseDelay is the first reconnect delay
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the reconnect delay
	DefaultMaxDelay = 10 * time.Second

	// DefaultMaxAttempts is how many failed dials end in a terminal state
	DefaultMaxAttempts = 8
)

// Backoff returns the delay before retry number attempt (starting at 1):
// base doubled per attempt, capped at max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
