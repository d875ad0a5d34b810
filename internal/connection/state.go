// Package connection maintains the single logical channel to the host and
// exposes its liveness as a strict connection state machine. It owns the
// reconnect-with-backoff policy and hides the transport (streaming socket
// or relay polling) behind one interface.
package connection

import (
	"fmt"
	"time"
)

// Status is the connection lifecycle state.
type Status string

const (
	// StatusDisconnected means no channel exists and none is wanted.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected means the channel is live.
	StatusConnected Status = "connected"
	// StatusReconnecting means the channel failed and a retry timer is
	// pending.
	StatusReconnecting Status = "reconnecting"
)

// State is one snapshot of the connection state machine.
//
// Attempt and NextRetryIn are meaningful only while Status is
// StatusReconnecting; they are zero otherwise.
type State struct {
	// Status is the lifecycle state.
	Status Status
	// Attempt is the 1-based count of consecutive failed attempts. It
	// resets after any successful connection.
	Attempt int
	// NextRetryIn is the delay before the next attempt fires.
	NextRetryIn time.Duration
}

// String renders the state for logs.
func (s State) String() string {
	if s.Status == StatusReconnecting {
		return fmt.Sprintf("%s(attempt=%d, retry in %s)", s.Status, s.Attempt, s.NextRetryIn.Round(time.Millisecond))
	}
	return string(s.Status)
}

// Live reports whether the channel is usable for sending.
func (s State) Live() bool { return s.Status == StatusConnected }
