// Package session provides the playback session aggregate: the queue,
// volume and loop state, and the serialized queue processor that feeds
// the player.
package session

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/app/control"
	"github.com/ot0ch/playdeck/internal/app/notify"
	"github.com/ot0ch/playdeck/internal/app/playback"
	"github.com/ot0ch/playdeck/internal/domain/track"
)

// gainExponent maps the linear 0-100 volume onto a perceived-loudness curve.
const gainExponent = 1.660964

// resourceTimeout bounds a single resource-creation attempt.
const resourceTimeout = 30 * time.Second

// Config holds session configuration.
type Config struct {
	DefaultVolume  int           // initial volume, 0-100
	Prune          bool          // pruning mode: delete notifications, skip end-of-queue notice
	AutoStop       time.Duration // idle grace before OnAutoStop fires; 0 disables
	WindowFallback time.Duration // control window length when track duration is unknown
	PruneDelay     time.Duration // grace before a pruned notification is deleted
}

// Deps are the external collaborators of a session.
type Deps struct {
	Player     playback.Player
	Channel    notify.Channel
	Authorize  func(userName string) bool // who may mutate volume/mute; nil allows all
	OnAutoStop func()                     // connection teardown after the idle grace; optional
}

// Session is the aggregate root for one connection: it owns the queue,
// the volume/loop flags, and the single active resource.
type Session struct {
	mu sync.Mutex

	id  string
	cfg Config

	player     playback.Player
	channel    notify.Channel
	authorize  func(userName string) bool
	onAutoStop func()

	queue  []track.QueuedTrack
	volume int
	muted  bool
	loop   bool
	active *track.Resource

	window   *control.Window
	autoStop *time.Timer
	rng      *rand.Rand

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a session. Call Start to launch the queue worker.
func New(cfg Config, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	volume := cfg.DefaultVolume
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	return &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		player:     deps.Player,
		channel:    deps.Channel,
		authorize:  deps.Authorize,
		onAutoStop: deps.OnAutoStop,
		volume:     volume,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		trigger:    make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start launches the queue worker.
func (s *Session) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Close tears the session down and waits for its goroutines.
func (s *Session) Close() {
	s.cancel()

	s.mu.Lock()
	if s.autoStop != nil {
		s.autoStop.Stop()
		s.autoStop = nil
	}
	w := s.window
	s.window = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	s.wg.Wait()
}

// run is the single queue worker. Triggers arriving while a pass is in
// flight coalesce in the buffered channel, so two invocations can never
// race across a resource-creation await.
func (s *Session) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.trigger:
			s.processQueue()
		}
	}
}

// Trigger kicks the queue processor. Idempotent while a pass is pending.
func (s *Session) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Enqueue appends tracks to the queue tail, cancels a pending auto-stop,
// and kicks the processor.
func (s *Session) Enqueue(items ...track.QueuedTrack) {
	if len(items) == 0 {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, items...)
	if s.autoStop != nil {
		s.autoStop.Stop()
		s.autoStop = nil
	}
	s.mu.Unlock()

	s.Trigger()
}

// processQueue advances the queue by at most one track: it resolves the
// head's resource and starts playback. The head itself is removed only
// by the player machine's idle/error path, except when resource creation
// fails, in which case the head is dropped here so a queue of failing
// tracks cannot retry unboundedly.
func (s *Session) processQueue() {
	if s.player.State() != playback.StateIdle {
		// Never preempt an in-progress track.
		return
	}

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		s.Stop()
		return
	}
	head := s.queue[0]
	s.mu.Unlock()

	ctx, cancelFn := context.WithTimeout(s.ctx, resourceTimeout)
	res, err := head.Track.MakeResource(ctx)
	cancelFn()
	if err != nil {
		zlog.Error().Msgf("resource creation failed: track=%s err=%v", head.Track.Meta().DisplayTitle(), err)
		s.dropIfHead(head)
		s.Trigger()
		return
	}

	s.mu.Lock()
	if len(s.queue) == 0 || s.queue[0].Track != head.Track {
		// Queue changed during the await (stop, shuffle); abandon the resource.
		s.mu.Unlock()
		s.Trigger()
		return
	}
	s.active = res
	s.mu.Unlock()

	if err := s.player.Play(res); err != nil {
		zlog.Error().Msgf("play failed: track=%s err=%v", res.Meta.DisplayTitle(), err)
		s.dropIfHead(head)
		s.Trigger()
		return
	}
	s.applyGain()
}

func (s *Session) dropIfHead(head track.QueuedTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 && s.queue[0].Track == head.Track {
		s.queue = s.queue[1:]
	}
}

// Stop disables loop, clears the queue, halts the player, and (outside
// pruning mode) sends the end-of-queue notification. The auto-stop timer
// is armed so an idle session eventually tears its connection down;
// enqueueing cancels it.
func (s *Session) Stop() {
	s.mu.Lock()
	s.loop = false
	s.queue = nil
	s.active = nil
	w := s.window
	s.window = nil

	if s.onAutoStop != nil && s.cfg.AutoStop > 0 {
		if s.autoStop != nil {
			s.autoStop.Stop()
		}
		s.autoStop = time.AfterFunc(s.cfg.AutoStop, s.onAutoStop)
	}
	s.mu.Unlock()

	if err := s.player.Stop(); err != nil {
		zlog.Debug().Msgf("player stop: %v", err)
	}
	if w != nil {
		w.Stop()
	}

	if !s.cfg.Prune {
		if _, err := s.channel.Send(s.ctx, "Queue finished."); err != nil {
			zlog.Warn().Msgf("failed to send end-of-queue notification: %v", err)
		}
	}
}

// Skip stops the active track; the player machine advances the queue.
func (s *Session) Skip() error {
	return s.player.Stop()
}

// Pause pauses the player.
func (s *Session) Pause() error {
	return s.player.Pause()
}

// Resume resumes the player.
func (s *Session) Resume() error {
	return s.player.Resume()
}

// Playing reports whether the player is currently playing.
func (s *Session) Playing() bool {
	return s.player.State() == playback.StatePlaying
}

// Loop reports whether queue loop is enabled.
func (s *Session) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// ToggleLoop flips queue loop and returns the new value.
func (s *Session) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = !s.loop
	return s.loop
}

// Shuffle reorders the queue randomly. The head is left in place while a
// resource is active, since it represents the playing track.
func (s *Session) Shuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queue
	if s.active != nil && len(q) > 1 {
		q = q[1:]
	}
	s.rng.Shuffle(len(q), func(i, j int) {
		q[i], q[j] = q[j], q[i]
	})
}

// Rotate moves the queue head to the tail (round-robin repeat).
func (s *Session) Rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) < 2 {
		return
	}
	head := s.queue[0]
	s.queue = append(s.queue[1:], head)
}

// DropHead removes the queue head permanently.
func (s *Session) DropHead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
}

// Len returns the queue length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Queue returns a copy of the queued tracks.
func (s *Session) Queue() []track.QueuedTrack {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]track.QueuedTrack, len(s.queue))
	copy(out, s.queue)
	return out
}

// HasActive reports whether a resource is still held.
func (s *Session) HasActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Active returns the active resource, if any.
func (s *Session) Active() *track.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Volume returns the stored volume (0-100).
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Muted reports whether the session is muted.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// VolumeUp raises the volume by one step, clamped at 100, and applies
// the effective gain. Returns the new volume.
func (s *Session) VolumeUp() int {
	return s.adjustVolume(10)
}

// VolumeDown lowers the volume by one step, clamped at 0, and applies
// the effective gain. Returns the new volume.
func (s *Session) VolumeDown() int {
	return s.adjustVolume(-10)
}

func (s *Session) adjustVolume(delta int) int {
	s.mu.Lock()
	v := s.volume + delta
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	s.volume = v
	s.mu.Unlock()

	s.applyGain()
	return v
}

// ToggleMute flips mute and applies the effective gain. Mute overrides
// the gain without touching the stored volume. Returns the new value.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	s.mu.Unlock()

	s.applyGain()
	return muted
}

// Gain returns the effective gain: 0 when muted, otherwise the stored
// volume mapped onto the loudness curve.
func (s *Session) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gainLocked()
}

func (s *Session) gainLocked() float64 {
	if s.muted {
		return 0
	}
	return math.Pow(float64(s.volume)/100.0, gainExponent)
}

func (s *Session) applyGain() {
	if err := s.player.SetGain(s.Gain()); err != nil {
		zlog.Warn().Msgf("failed to apply gain: %v", err)
	}
}

// AnnounceNowPlaying sends the "now playing" notification and opens a
// fresh control window for the newly active track.
func (s *Session) AnnounceNowPlaying() {
	s.mu.Lock()
	res := s.active
	var requester track.Requester
	if res != nil && len(s.queue) > 0 && s.queue[0].Track.Meta().ID == res.Meta.ID {
		requester = s.queue[0].Requester
	}
	s.mu.Unlock()

	if res == nil {
		return
	}

	content := "Now playing: " + res.Meta.DisplayTitle()
	if requester.Name != "" && requester.Type == track.RequesterTypeUser {
		content += " (requested by " + requester.Name + ")"
	}

	msg, err := s.channel.Send(s.ctx, content)
	if err != nil {
		zlog.Error().Msgf("failed to send now-playing notification: %v", err)
		return
	}
	zlog.Info().Msgf("now playing: track=%s session=%s", res.Meta.DisplayTitle(), s.id)

	deadline := res.Meta.Duration
	if deadline <= 0 {
		deadline = s.cfg.WindowFallback
	}

	w := control.NewWindow(msg, s.channel, s, s.authorize, control.Config{
		Deadline:   deadline,
		Prune:      s.cfg.Prune,
		PruneDelay: s.cfg.PruneDelay,
	})

	s.mu.Lock()
	old := s.window
	s.window = w
	s.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.Run(s.ctx)
	}()
}
