package playback

import "github.com/ot0ch/playdeck/internal/domain/track"

// Player is the external audio player bound to one connection. Adapters
// report state changes and errors back through the Machine.
type Player interface {
	State() State
	Play(res *track.Resource) error
	Stop() error
	Pause() error
	Resume() error
	SetGain(gain float64) error
}
