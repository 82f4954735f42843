package session

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ot0ch/playdeck/internal/app/notify"
	"github.com/ot0ch/playdeck/internal/app/playback"
	"github.com/ot0ch/playdeck/internal/domain/track"
)

// fakePlayer records plays and gains; state is driven by the test.
type fakePlayer struct {
	mu      sync.Mutex
	state   playback.State
	plays   []string
	gains   []float64
	stops   int
	playErr error
}

func (p *fakePlayer) State() playback.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) setState(s playback.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *fakePlayer) Play(res *track.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.plays = append(p.plays, res.Meta.ID)
	p.state = playback.StatePlaying
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.state = playback.StateIdle
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = playback.StatePaused
	return nil
}

func (p *fakePlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = playback.StatePlaying
	return nil
}

func (p *fakePlayer) SetGain(gain float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gains = append(p.gains, gain)
	return nil
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.plays))
	copy(out, p.plays)
	return out
}

func (p *fakePlayer) lastGain() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.gains) == 0 {
		return 0, false
	}
	return p.gains[len(p.gains)-1], true
}

// fakeTrack produces a resource after an optional delay, or fails.
type fakeTrack struct {
	id    string
	delay time.Duration
	err   error
}

func (f *fakeTrack) Meta() track.Meta {
	return track.Meta{ID: f.id, Title: f.id}
}

func (f *fakeTrack) MakeResource(ctx context.Context) (*track.Resource, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &track.Resource{
		Meta:     f.Meta(),
		Path:     "/music/" + f.id,
		OpenedAt: time.Now(),
	}, nil
}

func queued(tracks ...track.Track) []track.QueuedTrack {
	items := make([]track.QueuedTrack, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, track.QueuedTrack{
			Track:     t,
			Requester: track.Requester{ID: "u1", Name: "alice", Type: track.RequesterTypeUser},
			AddedAt:   time.Now(),
		})
	}
	return items
}

func newTestSession(t *testing.T, cfg Config) (*Session, *fakePlayer, *notify.Memory) {
	t.Helper()

	if cfg.DefaultVolume == 0 {
		cfg.DefaultVolume = 50
	}
	if cfg.WindowFallback == 0 {
		cfg.WindowFallback = time.Minute
	}

	player := &fakePlayer{state: playback.StateIdle}
	channel := notify.NewMemory()
	sess := New(cfg, Deps{Player: player, Channel: channel})
	sess.Start()
	t.Cleanup(sess.Close)

	return sess, player, channel
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 2*time.Millisecond)
}

// finish simulates the active track ending: the player goes idle and
// the machine reacts exactly as the adapter-driven path would.
func finish(sess *Session, player *fakePlayer) {
	machine := playback.NewMachine(sess)
	player.setState(playback.StateIdle)
	machine.HandleTransition(playback.Transition{From: playback.StatePlaying, To: playback.StateIdle})
}

func TestSession_FirstEnqueueStartsPlayback(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)

	eventually(t, func() bool { return len(player.played()) == 1 })
	assert.Equal(t, []string{"a"}, player.played())
	assert.True(t, sess.HasActive())
	assert.Equal(t, 1, sess.Len(), "head stays queued while playing")
}

func TestSession_SinglePlayUnderConcurrentTriggers(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "slow", delay: 50 * time.Millisecond})...)

	// Hammer the processor while resource creation is in flight.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sess.Trigger()
			}
		}()
	}
	wg.Wait()

	eventually(t, func() bool { return len(player.played()) == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"slow"}, player.played(), "exactly one play per track")
}

func TestSession_LoopRotatesRoundRobin(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})
	sess.ToggleLoop()

	a, b := &fakeTrack{id: "a"}, &fakeTrack{id: "b"}
	sess.Enqueue(queued(a, b)...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	finish(sess, player)
	eventually(t, func() bool { return len(player.played()) == 2 })

	finish(sess, player)
	eventually(t, func() bool { return len(player.played()) == 3 })

	assert.Equal(t, []string{"a", "b", "a"}, player.played())
	assert.Equal(t, 2, sess.Len(), "loop never shrinks the queue")
}

func TestSession_DrainStopsAndNotifies(t *testing.T) {
	sess, player, channel := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	finish(sess, player)

	eventually(t, func() bool {
		for _, m := range channel.Messages() {
			if m.Content() == "Queue finished." {
				return true
			}
		}
		return false
	})
	assert.Equal(t, 0, sess.Len())
	assert.False(t, sess.HasActive())
	assert.False(t, sess.Loop())
}

func TestSession_PruneSkipsEndOfQueueNotice(t *testing.T) {
	sess, player, channel := newTestSession(t, Config{Prune: true, PruneDelay: time.Millisecond})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	finish(sess, player)
	eventually(t, func() bool { return sess.Len() == 0 && !sess.HasActive() })

	time.Sleep(20 * time.Millisecond)
	for _, m := range channel.Messages() {
		assert.NotEqual(t, "Queue finished.", m.Content())
	}
}

func TestSession_FailedResourceDropsHead(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	bad := &fakeTrack{id: "bad", err: errors.New("no stream")}
	good := &fakeTrack{id: "good"}
	sess.Enqueue(queued(bad, good)...)

	eventually(t, func() bool { return len(player.played()) == 1 })
	assert.Equal(t, []string{"good"}, player.played())
	assert.Equal(t, 1, sess.Len(), "failing head was dropped, not retried")
}

func TestSession_PlayErrorDropsHead(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})
	player.playErr = errors.New("transport refused")

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)

	eventually(t, func() bool { return sess.Len() == 0 })
	assert.Empty(t, player.played())
}

func TestSession_SkipStopsPlayer(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	require.NoError(t, sess.Skip())
	assert.Equal(t, 1, player.stops)
}

func TestSession_PauseResume(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool { return sess.Playing() })

	require.NoError(t, sess.Pause())
	assert.False(t, sess.Playing())
	assert.Equal(t, playback.StatePaused, player.State())

	require.NoError(t, sess.Resume())
	assert.True(t, sess.Playing())
}

func TestSession_VolumeClamps(t *testing.T) {
	sess, _, _ := newTestSession(t, Config{DefaultVolume: 95})

	assert.Equal(t, 100, sess.VolumeUp())
	assert.Equal(t, 100, sess.VolumeUp(), "clamped at 100")

	sess2, _, _ := newTestSession(t, Config{DefaultVolume: 5})
	assert.Equal(t, 0, sess2.VolumeDown())
	assert.Equal(t, 0, sess2.VolumeDown(), "clamped at 0")
}

func TestSession_GainCurve(t *testing.T) {
	tests := []struct {
		name   string
		volume int
		muted  bool
		want   float64
	}{
		{name: "full volume", volume: 100, want: 1.0},
		{name: "silent", volume: 0, want: 0.0},
		{name: "half volume", volume: 50, want: math.Pow(0.5, gainExponent)},
		{name: "muted overrides volume", volume: 100, muted: true, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, _, _ := newTestSession(t, Config{DefaultVolume: tt.volume})
			if tt.volume == 0 {
				// DefaultVolume zero falls back; drive it down explicitly.
				for i := 0; i < 10; i++ {
					sess.VolumeDown()
				}
			}
			if tt.muted {
				sess.ToggleMute()
			}
			assert.InDelta(t, tt.want, sess.Gain(), 1e-9)
		})
	}
}

func TestSession_MuteRestoresGain(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{DefaultVolume: 80})

	assert.True(t, sess.ToggleMute())
	g, ok := player.lastGain()
	require.True(t, ok)
	assert.Zero(t, g)

	assert.False(t, sess.ToggleMute())
	g, ok = player.lastGain()
	require.True(t, ok)
	assert.InDelta(t, math.Pow(0.8, gainExponent), g, 1e-9)
}

func TestSession_GainAppliedOnPlay(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{DefaultVolume: 100})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool {
		g, ok := player.lastGain()
		return ok && g == 1.0
	})
}

func TestSession_ShufflePreservesActiveHead(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})

	tracks := []track.Track{
		&fakeTrack{id: "a"}, &fakeTrack{id: "b"}, &fakeTrack{id: "c"},
		&fakeTrack{id: "d"}, &fakeTrack{id: "e"},
	}
	sess.Enqueue(queued(tracks...)...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	before := sess.Queue()
	sess.Shuffle()
	after := sess.Queue()

	require.Len(t, after, len(before))
	assert.Equal(t, "a", after[0].Track.Meta().ID, "playing head stays in place")

	ids := func(q []track.QueuedTrack) map[string]bool {
		m := make(map[string]bool, len(q))
		for _, it := range q {
			m[it.Track.Meta().ID] = true
		}
		return m
	}
	assert.Equal(t, ids(before), ids(after), "shuffle keeps the same tracks")
}

func TestSession_StopClearsEverything(t *testing.T) {
	sess, player, _ := newTestSession(t, Config{})
	sess.ToggleLoop()

	sess.Enqueue(queued(&fakeTrack{id: "a"}, &fakeTrack{id: "b"})...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	sess.Stop()

	assert.Equal(t, 0, sess.Len())
	assert.False(t, sess.Loop(), "stop disables loop")
	assert.False(t, sess.HasActive())
	assert.GreaterOrEqual(t, player.stops, 1)
}

func TestSession_AutoStopFiresAfterIdleGrace(t *testing.T) {
	fired := make(chan struct{})
	player := &fakePlayer{state: playback.StateIdle}
	sess := New(Config{
		DefaultVolume:  50,
		AutoStop:       20 * time.Millisecond,
		WindowFallback: time.Minute,
	}, Deps{
		Player:     player,
		Channel:    notify.NewMemory(),
		OnAutoStop: func() { close(fired) },
	})
	sess.Start()
	t.Cleanup(sess.Close)

	sess.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("auto-stop did not fire")
	}
}

func TestSession_EnqueueCancelsAutoStop(t *testing.T) {
	var mu sync.Mutex
	fired := false
	player := &fakePlayer{state: playback.StateIdle}
	sess := New(Config{
		DefaultVolume:  50,
		AutoStop:       30 * time.Millisecond,
		WindowFallback: time.Minute,
	}, Deps{
		Player:  player,
		Channel: notify.NewMemory(),
		OnAutoStop: func() {
			mu.Lock()
			fired = true
			mu.Unlock()
		},
	})
	sess.Start()
	t.Cleanup(sess.Close)

	sess.Stop()
	sess.Enqueue(queued(&fakeTrack{id: "a"})...)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired, "enqueue cancels the pending auto-stop")
}

func TestSession_AnnounceNowPlaying(t *testing.T) {
	sess, player, channel := newTestSession(t, Config{})

	sess.Enqueue(queued(&fakeTrack{id: "a"})...)
	eventually(t, func() bool { return len(player.played()) == 1 })

	machine := playback.NewMachine(sess)
	machine.HandleTransition(playback.Transition{From: playback.StateBuffering, To: playback.StatePlaying})

	msgs := channel.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Now playing: a (requested by alice)", msgs[len(msgs)-1].Content())
}
