package domain

import "time"

// ConnState is the Venue Stream Client's state machine position.
type ConnState string

const (
	ConnDisabled     ConnState = "DISABLED"
	ConnIdle         ConnState = "IDLE"
	ConnConnecting   ConnState = "CONNECTING"
	ConnConnected    ConnState = "CONNECTED"
	ConnReconnecting ConnState = "RECONNECTING"
	ConnError        ConnState = "ERROR"
)

// ConnectionStatus is the externally observable state of one Venue Stream
// Client. It is written only by the owning client and read freely by
// everything else (heartbeat, diagnostics).
type ConnectionStatus struct {
	Venue           Venue
	State           ConnState
	LastMessageAt   time.Time
	SubscribedCount int
	ErrorMessage    string
}
