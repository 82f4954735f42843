package mumble

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"layeh.com/gumble/gumbleffmpeg"
	_ "layeh.com/gumble/opus"

	"github.com/ot0ch/playdeck/internal/app/playback"
	"github.com/ot0ch/playdeck/internal/domain/track"
)

// Player implements playback.Player over gumbleffmpeg streams. One
// stream is live at a time; finish detection runs off stream.Wait.
type Player struct {
	mu     sync.Mutex
	conn   *Connection
	stream *gumbleffmpeg.Stream
	state  playback.State
	gain   float64

	handle func(playback.Transition)
}

// NewPlayer creates a player bound to the given connection.
func NewPlayer(conn *Connection) *Player {
	return &Player{
		conn:  conn,
		state: playback.StateIdle,
		gain:  1,
	}
}

// OnTransition registers the state transition handler. Set before Play.
func (p *Player) OnTransition(fn func(playback.Transition)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = fn
}

// State returns the current player state.
func (p *Player) State() playback.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Play starts a new stream for the resource. ffmpeg reads local paths
// and remote URLs through the same source.
func (p *Player) Play(res *track.Resource) error {
	client := p.conn.Client()
	if client == nil {
		return errors.New("no live connection")
	}

	p.mu.Lock()
	if p.stream != nil && p.stream.State() != gumbleffmpeg.StateStopped {
		p.mu.Unlock()
		return errors.New("player is busy")
	}

	input := res.Path
	if input == "" {
		input = res.StreamURL
	}
	stream := gumbleffmpeg.New(client, gumbleffmpeg.SourceFile(input))
	stream.Volume = float32(p.gain)
	p.stream = stream
	p.mu.Unlock()

	p.setState(playback.StateBuffering)

	if err := stream.Play(); err != nil {
		p.mu.Lock()
		p.stream = nil
		// Revert silently: the error return carries the failure, and an
		// Idle transition here would advance the queue a second time.
		p.state = playback.StateIdle
		p.mu.Unlock()
		return errors.Wrap(err, "failed to start stream")
	}

	zlog.Debug().Msgf("stream started: %s", res.Meta.DisplayTitle())
	p.setState(playback.StatePlaying)

	go p.awaitFinish(stream)
	return nil
}

// awaitFinish blocks until the stream drains or is stopped, then
// reports Idle unless a newer stream already replaced this one.
func (p *Player) awaitFinish(stream *gumbleffmpeg.Stream) {
	stream.Wait()

	p.mu.Lock()
	stale := p.stream != stream
	if !stale {
		p.stream = nil
	}
	p.mu.Unlock()

	if !stale {
		p.setState(playback.StateIdle)
	}
}

// Stop halts the live stream. A stopped player is a no-op.
func (p *Player) Stop() error {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	if stream == nil || stream.State() == gumbleffmpeg.StateStopped {
		return nil
	}
	return stream.Stop()
}

// Pause pauses the live stream.
func (p *Player) Pause() error {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	if stream == nil {
		return errors.New("nothing playing")
	}
	if err := stream.Pause(); err != nil {
		return errors.Wrap(err, "failed to pause stream")
	}
	p.setState(playback.StatePaused)
	return nil
}

// Resume resumes a paused stream.
func (p *Player) Resume() error {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	if stream == nil {
		return errors.New("nothing playing")
	}
	if err := stream.Resume(); err != nil {
		return errors.Wrap(err, "failed to resume stream")
	}
	p.setState(playback.StatePlaying)
	return nil
}

// SetGain applies the effective gain to the live stream and remembers
// it for the next one.
func (p *Player) SetGain(gain float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gain = gain
	if p.stream != nil {
		p.stream.Volume = float32(gain)
	}
	return nil
}

// setState records the new state and reports the transition with no
// lock held, so the machine is free to call back into the player.
func (p *Player) setState(to playback.State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	fn := p.handle
	p.mu.Unlock()

	if fn != nil && from != to {
		fn(playback.Transition{From: from, To: to})
	}
}
