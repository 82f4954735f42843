// Package voice provides the connection lifecycle machine: it sequences
// rejoin, backoff and destroy decisions over an external voice connection.
package voice

// State represents the connection state.
type State int

const (
	StateSignalling State = iota // Negotiating session details
	StateConnecting              // Transport handshake in progress
	StateReady                   // Connection is live
	StateDisconnected
	StateDestroyed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateSignalling:
		return "signalling"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// CloseCode is the transport close code carried on a Disconnected
// transition. Zero means no code was reported.
type CloseCode int

// Transition is a connection state change reported by the transport
// adapter.
type Transition struct {
	To   State
	Code CloseCode // set on Disconnected
}
