package command

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// skipCommand stops the active track; the player machine advances the queue.
type skipCommand struct{}

func (skipCommand) Name() string        { return "skip" }
func (skipCommand) Description() string { return "Skip the current track" }

func (skipCommand) Execute(ctx context.Context, req Request) error {
	zlog.Info().Msgf("command skip: user=%s", req.UserName)
	return req.Session.Skip()
}

type pauseCommand struct{}

func (pauseCommand) Name() string        { return "pause" }
func (pauseCommand) Description() string { return "Pause playback" }

func (pauseCommand) Execute(ctx context.Context, req Request) error {
	zlog.Info().Msgf("command pause: user=%s", req.UserName)
	return req.Session.Pause()
}

type resumeCommand struct{}

func (resumeCommand) Name() string        { return "resume" }
func (resumeCommand) Description() string { return "Resume paused playback" }

func (resumeCommand) Execute(ctx context.Context, req Request) error {
	zlog.Info().Msgf("command resume: user=%s", req.UserName)
	return req.Session.Resume()
}

// loopCommand toggles round-robin repeat of the whole queue.
type loopCommand struct{}

func (loopCommand) Name() string        { return "loop" }
func (loopCommand) Description() string { return "Toggle queue loop" }

func (loopCommand) Execute(ctx context.Context, req Request) error {
	on := req.Session.ToggleLoop()
	zlog.Info().Msgf("command loop: user=%s enabled=%t", req.UserName, on)
	return nil
}

type shuffleCommand struct{}

func (shuffleCommand) Name() string        { return "shuffle" }
func (shuffleCommand) Description() string { return "Shuffle the queue" }

func (shuffleCommand) Execute(ctx context.Context, req Request) error {
	zlog.Info().Msgf("command shuffle: user=%s", req.UserName)
	req.Session.Shuffle()
	return nil
}

type stopCommand struct{}

func (stopCommand) Name() string        { return "stop" }
func (stopCommand) Description() string { return "Stop playback and clear the queue" }

func (stopCommand) Execute(ctx context.Context, req Request) error {
	zlog.Info().Msgf("command stop: user=%s", req.UserName)
	req.Session.Stop()
	return nil
}

func init() {
	Register(skipCommand{})
	Register(pauseCommand{})
	Register(resumeCommand{})
	Register(loopCommand{})
	Register(shuffleCommand{})
	Register(stopCommand{})
}
