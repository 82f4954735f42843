// Package playback provides the player lifecycle machine.
package playback

// State represents the player state.
type State int

const (
	StateIdle      State = iota // No track playing
	StateBuffering              // Resource accepted, audio not yet flowing
	StatePlaying                // Track is playing
	StatePaused                 // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Transition is a player state change reported by the transport adapter.
type Transition struct {
	From State
	To   State
}
