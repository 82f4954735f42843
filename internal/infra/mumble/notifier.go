package mumble

import (
	"context"
	"strings"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/ot0ch/playdeck/internal/app/control"
	"github.com/ot0ch/playdeck/internal/app/notify"
)

// commandPrefix marks chat commands, e.g. "!skip".
const commandPrefix = "!"

// chatSymbols maps chat commands onto the control symbols a reaction
// would carry, so text input drives the same window.
var chatSymbols = map[string]string{
	"skip":    control.SymbolSkip,
	"pause":   control.SymbolPlayPause,
	"resume":  control.SymbolPlayPause,
	"mute":    control.SymbolMute,
	"voldown": control.SymbolVolumeDown,
	"volup":   control.SymbolVolumeUp,
	"loop":    control.SymbolLoop,
	"shuffle": control.SymbolShuffle,
	"stop":    control.SymbolStop,
}

// Notifier implements notify.Channel over Mumble text chat. Sent
// notifications are relayed into the bot's channel; chat commands from
// other users are injected as reactions on the latest notification.
type Notifier struct {
	mu      sync.Mutex
	conn    *Connection
	memory  *notify.Memory
	current *notify.MemoryMessage
}

// NewNotifier creates a chat notifier and hooks the connection's text
// events.
func NewNotifier(conn *Connection) *Notifier {
	n := &Notifier{
		conn:   conn,
		memory: notify.NewMemory(),
	}
	conn.OnText(n.handleText)
	return n
}

// Send relays the content into the channel chat and returns the message
// chat commands will be injected into.
func (n *Notifier) Send(ctx context.Context, content string) (notify.Message, error) {
	msg, err := n.memory.Send(ctx, content)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.current = msg.(*notify.MemoryMessage)
	n.mu.Unlock()

	if client := n.conn.Client(); client != nil && client.Self != nil && client.Self.Channel != nil {
		client.Self.Channel.Send(content, false)
	}
	return msg, nil
}

// handleText parses "!command" chat lines into control reactions.
func (n *Notifier) handleText(sender, message string) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, commandPrefix) {
		return
	}
	name := strings.Fields(strings.TrimPrefix(message, commandPrefix))
	if len(name) == 0 {
		return
	}

	symbol, ok := chatSymbols[strings.ToLower(name[0])]
	if !ok {
		zlog.Debug().Msgf("unknown chat command from %s: %s", sender, name[0])
		return
	}

	n.mu.Lock()
	msg := n.current
	n.mu.Unlock()
	if msg == nil {
		return
	}

	msg.Inject(notify.Reaction{
		Symbol:   symbol,
		UserID:   sender,
		UserName: sender,
	})
}
