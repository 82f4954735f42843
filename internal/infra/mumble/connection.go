// Package mumble adapts a gumble Mumble connection to the voice and
// playback machines.
package mumble

import (
	"crypto/tls"
	"net"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"layeh.com/gumble/gumble"
	"layeh.com/gumble/gumbleutil"

	"github.com/ot0ch/playdeck/internal/app/voice"
)

const defaultPort = "64738"

// closeCodeForced is reported when the server removes us for good
// (kick or ban); the monitor treats it as non-recoverable.
const closeCodeForced voice.CloseCode = 4014

// Config represents Mumble connection configuration.
type Config struct {
	Server   string // host or host:port
	Username string
	Password string
	Channel  string // channel to move into after connect; empty stays in root
	Insecure bool   // skip TLS certificate verification
}

// Connection implements voice.Connection over a gumble client.
type Connection struct {
	mu     sync.Mutex
	cfg    Config
	client *gumble.Client
	state  voice.State

	handle func(voice.Transition)
	onText func(sender, message string)
}

// NewConnection creates a Mumble connection adapter. Call Join to dial.
func NewConnection(cfg Config) *Connection {
	return &Connection{
		cfg:   cfg,
		state: voice.StateDisconnected,
	}
}

// OnTransition registers the state transition handler. Set before Join.
func (c *Connection) OnTransition(fn func(voice.Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = fn
}

// OnText registers a handler for channel text messages. Set before Join.
func (c *Connection) OnText(fn func(sender, message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onText = fn
}

// Client returns the live gumble client, or nil while disconnected.
func (c *Connection) Client() *gumble.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// State returns the current connection state.
func (c *Connection) State() voice.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Join dials the server and moves into the configured channel. The
// Ready transition fires from the connect event before Join returns.
func (c *Connection) Join() error {
	c.mu.Lock()
	if c.state == voice.StateDestroyed {
		c.mu.Unlock()
		return errors.New("connection is destroyed")
	}
	c.mu.Unlock()

	c.emit(voice.StateSignalling, 0)

	gc := gumble.NewConfig()
	gc.Username = c.cfg.Username
	gc.Password = c.cfg.Password
	gc.Attach(gumbleutil.AutoBitrate)
	gc.Attach(gumbleutil.Listener{
		Connect:     c.onConnect,
		Disconnect:  c.onDisconnect,
		TextMessage: c.onTextMessage,
	})

	addr := c.cfg.Server
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, defaultPort)
	}

	tlsCfg := &tls.Config{}
	if c.cfg.Insecure {
		tlsCfg.InsecureSkipVerify = true
	}

	c.emit(voice.StateConnecting, 0)

	client, err := gumble.DialWithDialer(new(net.Dialer), addr, gc, tlsCfg)
	if err != nil {
		c.emit(voice.StateDisconnected, 0)
		return errors.Wrapf(err, "failed to dial %s", addr)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Rejoin redials after a disconnect.
func (c *Connection) Rejoin() error {
	return c.Join()
}

// Destroy tears the connection down permanently. Idempotent.
func (c *Connection) Destroy() error {
	c.mu.Lock()
	if c.state == voice.StateDestroyed {
		c.mu.Unlock()
		return nil
	}
	c.state = voice.StateDestroyed
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client != nil {
		if err := client.Disconnect(); err != nil {
			zlog.Debug().Msgf("disconnect: %v", err)
		}
	}
	c.emit(voice.StateDestroyed, 0)
	return nil
}

func (c *Connection) onConnect(e *gumble.ConnectEvent) {
	zlog.Info().Msgf("connected to %s as %s", c.cfg.Server, c.cfg.Username)

	if c.cfg.Channel != "" {
		if ch := e.Client.Channels.Find(c.cfg.Channel); ch != nil {
			e.Client.Self.Move(ch)
		} else {
			zlog.Warn().Msgf("channel not found: %s", c.cfg.Channel)
		}
	}

	c.mu.Lock()
	c.client = e.Client
	c.mu.Unlock()

	c.emit(voice.StateReady, 0)
}

func (c *Connection) onDisconnect(e *gumble.DisconnectEvent) {
	c.mu.Lock()
	c.client = nil
	destroyed := c.state == voice.StateDestroyed
	c.mu.Unlock()

	// Destroy already reported the terminal transition.
	if destroyed {
		return
	}

	var code voice.CloseCode
	if e.Type == gumble.DisconnectKicked || e.Type == gumble.DisconnectBanned {
		code = closeCodeForced
	}
	zlog.Info().Msgf("disconnected from %s (type=%d)", c.cfg.Server, e.Type)
	c.emit(voice.StateDisconnected, code)
}

func (c *Connection) onTextMessage(e *gumble.TextMessageEvent) {
	if e.Sender == nil {
		return
	}
	c.mu.Lock()
	fn := c.onText
	c.mu.Unlock()
	if fn != nil {
		fn(e.Sender.Name, e.Message)
	}
}

// emit records the new state and reports the transition with no lock
// held, so handlers are free to call back into the connection.
func (c *Connection) emit(to voice.State, code voice.CloseCode) {
	c.mu.Lock()
	c.state = to
	fn := c.handle
	c.mu.Unlock()

	if fn != nil {
		fn(voice.Transition{To: to, Code: code})
	}
}
