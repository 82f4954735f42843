// Package notify provides the notification channel used for "now playing"
// announcements and reaction-based control input.
package notify

import "context"

// Reaction is a discrete control input attached to a message: a symbol
// plus the identity of the acting user.
type Reaction struct {
	Symbol   string
	UserID   string
	UserName string
	Self     bool // input originated from the bot itself
}

// Message is a sent notification. Reactions() delivers control inputs
// for the lifetime of the message subscription; Close ends delivery.
type Message interface {
	ID() string
	Content() string
	React(symbol string) error
	RemoveReaction(symbol, userID string) error
	ClearReactions() error
	Delete() error
	Reactions() <-chan Reaction
	Close()
}

// Channel is an outbound notification channel.
type Channel interface {
	Send(ctx context.Context, content string) (Message, error)
}
