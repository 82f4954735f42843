package playback

import (
	zlog "github.com/rs/zerolog/log"
)

// Queue is the slice of the session the machine is allowed to touch:
// rotation/removal of the queue head and re-triggering the processor.
// Only this machine decides removal or rotation of the head.
type Queue interface {
	Loop() bool
	Rotate()   // move head to tail (round-robin repeat)
	DropHead() // remove head permanently
	Len() int
	HasActive() bool // a resource from the just-finished track is still held
	Trigger()        // kick the queue processor
	AnnounceNowPlaying()
}

// Machine reacts to player state transitions and errors. It owns the
// idle -> next-track and error-skip policy; the queue itself lives in
// the session.
type Machine struct {
	queue Queue
}

// NewMachine creates a player lifecycle machine over the given queue.
func NewMachine(q Queue) *Machine {
	return &Machine{queue: q}
}

// HandleTransition dispatches one player state transition.
func (m *Machine) HandleTransition(t Transition) {
	zlog.Debug().Msgf("player transition: from=%s to=%s", t.From, t.To)

	switch {
	case t.To == StateIdle && t.From != StateIdle:
		m.onFinished()

	case t.From == StateBuffering && t.To == StatePlaying:
		m.queue.AnnounceNowPlaying()
	}
}

// HandleError treats a player error like an unsuccessful track: the head
// is rotated or dropped exactly as on a normal finish, then the processor
// runs again. Errors never end the session.
func (m *Machine) HandleError(err error) {
	zlog.Error().Msgf("player error, skipping track: %v", err)

	m.rotateOrDrop()
	m.queue.Trigger()
}

// onFinished handles the "track finished or was stopped" signal.
func (m *Machine) onFinished() {
	m.rotateOrDrop()

	// The HasActive condition covers a resource that was created while
	// playback never logically started; without it the track would be
	// stranded.
	if m.queue.Len() > 0 || m.queue.HasActive() {
		m.queue.Trigger()
	}
}

func (m *Machine) rotateOrDrop() {
	if m.queue.Loop() && m.queue.Len() > 0 {
		m.queue.Rotate()
		return
	}
	m.queue.DropHead()
}
