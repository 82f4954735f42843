// Package control provides the time-bounded reaction control surface
// attached to each "now playing" notification.
package control

import (
	"context"
	"strconv"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/app/command"
	"github.com/ot0ch/playdeck/internal/app/notify"
)

// Control symbols attached to the notification, in display order.
const (
	SymbolSkip       = "⏭️"
	SymbolPlayPause  = "⏯️"
	SymbolMute       = "🔇"
	SymbolVolumeDown = "🔉"
	SymbolVolumeUp   = "🔊"
	SymbolLoop       = "🔁"
	SymbolShuffle    = "🔀"
	SymbolStop       = "⏹️"
)

// Affordances lists the symbols in the order they are attached.
var Affordances = []string{
	SymbolSkip, SymbolPlayPause, SymbolMute, SymbolVolumeDown,
	SymbolVolumeUp, SymbolLoop, SymbolShuffle, SymbolStop,
}

// Session is the slice of the playback session the window may mutate.
type Session interface {
	command.Session
	Playing() bool
	Volume() int
	ToggleMute() bool
	VolumeUp() int
	VolumeDown() int
}

// Config holds window policy.
type Config struct {
	Deadline   time.Duration // input window length (resolved by the caller)
	Prune      bool          // delete the notification when the window ends
	PruneDelay time.Duration // grace before deletion
}

// Window is the bounded-time subscription to control inputs tied to one
// "now playing" notification.
type Window struct {
	msg       notify.Message
	channel   notify.Channel // feedback messages; may be nil
	session   Session
	authorize func(userName string) bool // who may mutate volume/mute
	cfg       Config

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewWindow creates a control window over a sent notification.
// authorize may be nil, which allows everyone.
func NewWindow(msg notify.Message, channel notify.Channel, session Session, authorize func(userName string) bool, cfg Config) *Window {
	if authorize == nil {
		authorize = func(string) bool { return true }
	}
	return &Window{
		msg:       msg,
		channel:   channel,
		session:   session,
		authorize: authorize,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run attaches the affordances and serves inputs until the deadline
// elapses, Stop is called, or the subscription ends. Blocking; callers
// run it in a goroutine.
func (w *Window) Run(ctx context.Context) {
	defer close(w.done)
	defer w.end()

	for _, symbol := range Affordances {
		if err := w.msg.React(symbol); err != nil {
			zlog.Warn().Msgf("failed to attach control reaction %s: %v", symbol, err)
		}
	}

	timer := time.NewTimer(w.cfg.Deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-timer.C:
			zlog.Debug().Msgf("control window deadline elapsed: message=%s", w.msg.ID())
			return
		case r, ok := <-w.msg.Reactions():
			if !ok {
				return
			}
			if r.Self {
				continue
			}
			w.handle(ctx, r)
		}
	}
}

// Stop ends the window immediately.
func (w *Window) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Done is closed once the window has fully ended.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

func (w *Window) handle(ctx context.Context, r notify.Reaction) {
	// Remove the triggering input so the symbol stays armed; best-effort.
	if err := w.msg.RemoveReaction(r.Symbol, r.UserID); err != nil {
		zlog.Warn().Msgf("failed to remove reaction %s: %v", r.Symbol, err)
	}

	switch r.Symbol {
	case SymbolSkip:
		w.exec(ctx, "skip", r)

	case SymbolPlayPause:
		if w.session.Playing() {
			w.exec(ctx, "pause", r)
		} else {
			w.exec(ctx, "resume", r)
		}

	case SymbolMute:
		if w.session.ToggleMute() {
			w.feedback(ctx, "Muted")
		} else {
			w.feedback(ctx, "Unmuted")
		}

	case SymbolVolumeDown:
		if w.session.Volume() == 0 {
			return
		}
		if !w.authorize(r.UserName) {
			zlog.Debug().Msgf("volume change denied: user=%s", r.UserName)
			return
		}
		w.feedback(ctx, volumeText(w.session.VolumeDown()))

	case SymbolVolumeUp:
		if w.session.Volume() == 100 {
			return
		}
		if !w.authorize(r.UserName) {
			zlog.Debug().Msgf("volume change denied: user=%s", r.UserName)
			return
		}
		w.feedback(ctx, volumeText(w.session.VolumeUp()))

	case SymbolLoop:
		w.exec(ctx, "loop", r)

	case SymbolShuffle:
		w.exec(ctx, "shuffle", r)

	case SymbolStop:
		w.exec(ctx, "stop", r)
		w.Stop()

	default:
		// Unrecognized symbol: already removed above, otherwise ignored.
	}
}

// end clears the affordances and, in pruning mode, schedules deletion of
// the notification after a short grace delay.
func (w *Window) end() {
	w.msg.Close()

	if err := w.msg.ClearReactions(); err != nil {
		zlog.Warn().Msgf("failed to clear reactions: %v", err)
	}

	if w.cfg.Prune {
		msg := w.msg
		time.AfterFunc(w.cfg.PruneDelay, func() {
			if err := msg.Delete(); err != nil {
				zlog.Warn().Msgf("failed to delete notification: %v", err)
			}
		})
	}
}

func (w *Window) exec(ctx context.Context, name string, r notify.Reaction) {
	cmd, err := command.Get(name)
	if err != nil {
		zlog.Error().Msgf("control dispatch: %v", err)
		return
	}

	req := command.Request{
		Session:  w.session,
		UserID:   r.UserID,
		UserName: r.UserName,
	}
	if err := cmd.Execute(ctx, req); err != nil {
		zlog.Warn().Msgf("command %s failed: %v", name, err)
	}
}

// feedback sends a short status message; failures are logged, never raised.
func (w *Window) feedback(ctx context.Context, text string) {
	if w.channel == nil {
		return
	}
	if _, err := w.channel.Send(ctx, text); err != nil {
		zlog.Warn().Msgf("failed to send feedback: %v", err)
	}
}

func volumeText(v int) string {
	return "Volume: " + strconv.Itoa(v) + "%"
}
