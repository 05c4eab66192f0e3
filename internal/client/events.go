package client

import "time"

// Synthetic event types emitted by the manager itself. These never travel
// over the wire; every other event type mirrors the "type" field of the
// server frame it carries.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// Event is what listeners receive: either a server frame (Type from the wire
// discriminator, Data holding the raw frame) or a manager-local lifecycle
// notification (nil Data; Err set for transport errors).
type Event struct {
	Type string
	Data []byte
	Err  error
}

// Listener receives every event. Listeners are invoked synchronously on the
// manager's read goroutine and should hand off long work.
type Listener func(Event)

// State is the connection lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Config holds connection manager tuning.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	BackoffBase      time.Duration // first reconnect delay
	BackoffMax       time.Duration // delay cap
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		BackoffBase:      time.Second,
		BackoffMax:       30 * time.Second,
	}
}

// BackoffDelay returns the reconnect delay for the given failure count:
// base doubled per attempt, capped at BackoffMax.
func (c Config) BackoffDelay(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 0; i < attempt && d < c.BackoffMax; i++ {
		d *= 2
	}
	if d > c.BackoffMax {
		d = c.BackoffMax
	}
	return d
}
