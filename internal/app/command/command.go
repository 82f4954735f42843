// Package command provides the command registry invoked by control actions.
package command

import (
	"context"

	"github.com/cockroachdb/errors"
)

var ErrUnknownCommand = errors.New("unknown command")

// Session is the slice of the playback session a command may mutate.
type Session interface {
	Skip() error
	Pause() error
	Resume() error
	ToggleLoop() bool
	Shuffle()
	Stop()
}

// Request carries the originating context of a command invocation.
type Request struct {
	Session  Session
	UserID   string
	UserName string
}

// Command is a named session-mutating action.
type Command interface {
	// Name returns the command name (used for registry lookup).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Execute performs the command against the request's session.
	Execute(ctx context.Context, req Request) error
}

// registry holds registered commands.
var registry = make(map[string]Command)

// Register registers a command under its name.
func Register(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get looks up a registered command by name.
func Get(name string) (Command, error) {
	cmd, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCommand, "%s", name)
	}
	return cmd, nil
}

// Names returns the names of all registered commands.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
