package notify

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var ErrMessageDeleted = errors.New("message is deleted")

// Memory is an in-process Channel. It keeps sent messages and lets a
// driver (tests, the console mode of the binary) inject reactions.
type Memory struct {
	mu       sync.Mutex
	messages []*MemoryMessage
}

// NewMemory creates a new in-process channel.
func NewMemory() *Memory {
	return &Memory{}
}

// Send records the message and opens its reaction subscription.
func (c *Memory) Send(ctx context.Context, content string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &MemoryMessage{
		id:        uuid.New().String(),
		content:   content,
		reactions: make(map[string]map[string]bool),
		inputs:    make(chan Reaction, 16),
	}
	c.messages = append(c.messages, m)
	return m, nil
}

// Messages returns all sent messages, oldest first.
func (c *Memory) Messages() []*MemoryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*MemoryMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// MemoryMessage is a Message held in process memory.
type MemoryMessage struct {
	mu        sync.Mutex
	id        string
	content   string
	reactions map[string]map[string]bool // symbol -> userID set
	inputs    chan Reaction
	closed    bool
	deleted   bool
}

func (m *MemoryMessage) ID() string      { return m.id }
func (m *MemoryMessage) Content() string { return m.content }

func (m *MemoryMessage) React(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted {
		return ErrMessageDeleted
	}
	if m.reactions[symbol] == nil {
		m.reactions[symbol] = make(map[string]bool)
	}
	return nil
}

func (m *MemoryMessage) RemoveReaction(symbol, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted {
		return ErrMessageDeleted
	}
	if users := m.reactions[symbol]; users != nil {
		delete(users, userID)
	}
	return nil
}

func (m *MemoryMessage) ClearReactions() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted {
		return ErrMessageDeleted
	}
	m.reactions = make(map[string]map[string]bool)
	return nil
}

func (m *MemoryMessage) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	return nil
}

func (m *MemoryMessage) Deleted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted
}

func (m *MemoryMessage) Reactions() <-chan Reaction {
	return m.inputs
}

// Close ends reaction delivery. Safe to call more than once.
func (m *MemoryMessage) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.inputs)
	}
}

// Inject delivers a reaction to the message's subscription without
// blocking; inputs arriving faster than the subscriber drains are dropped.
func (m *MemoryMessage) Inject(r Reaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.deleted {
		return
	}
	if users := m.reactions[r.Symbol]; users != nil {
		users[r.UserID] = true
	}

	select {
	case m.inputs <- r:
	default:
	}
}

// Symbols returns the symbols currently attached to the message.
func (m *MemoryMessage) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.reactions))
	for s := range m.reactions {
		out = append(out, s)
	}
	return out
}
