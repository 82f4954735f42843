package voice

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Connection is the external transport connection. The monitor only
// sequences when to rejoin or destroy; the mechanics live in the adapter.
type Connection interface {
	State() State
	Rejoin() error
	Destroy() error
}

// SessionStopper halts the owning session on a non-recoverable disconnect.
type SessionStopper interface {
	Stop()
}

// Config holds monitor policy.
type Config struct {
	MaxRejoinAttempts int           // rejoin attempts before permanent destroy
	BackoffStep       time.Duration // linear backoff unit between rejoins
	ReadyTimeout      time.Duration // deadline for reaching Ready
	TerminalCloseCode CloseCode     // close code treated as non-recoverable
}

// DefaultConfig returns the production policy: up to 5 rejoins with a
// 5s linear backoff, a 20s ready deadline, and close code 4014 treated
// as a forced session close.
func DefaultConfig() Config {
	return Config{
		MaxRejoinAttempts: 5,
		BackoffStep:       5 * time.Second,
		ReadyTimeout:      20 * time.Second,
		TerminalCloseCode: 4014,
	}
}

// Monitor observes connection state transitions and drives the
// reconnect/backoff/destroy policy.
type Monitor struct {
	mu      sync.Mutex
	conn    Connection
	session SessionStopper
	cfg     Config

	attempts  int
	readyLock bool          // a ready-wait is already in flight
	readyCh   chan struct{} // closed on Ready entry
	destroyed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a connection lifecycle monitor.
func NewMonitor(conn Connection, session SessionStopper, cfg Config) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		conn:    conn,
		session: session,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handle dispatches one connection state transition.
func (m *Monitor) Handle(t Transition) {
	zlog.Debug().Msgf("connection transition: to=%s code=%d", t.To, t.Code)

	switch t.To {
	case StateReady:
		m.onReady()
	case StateConnecting, StateSignalling:
		m.onConnecting()
	case StateDisconnected:
		m.onDisconnected(t.Code)
	case StateDestroyed:
		m.mu.Lock()
		m.destroyed = true
		m.mu.Unlock()
	}
}

// Close cancels pending backoff and ready waits.
func (m *Monitor) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) onReady() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = 0
	if m.readyCh != nil {
		close(m.readyCh)
		m.readyCh = nil
	}
}

// onConnecting arms a ready-wait with a deadline, unless one is already
// in flight. The lock guard guarantees a single wait per reconnect.
func (m *Monitor) onConnecting() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readyLock {
		return
	}
	m.readyLock = true
	ch := make(chan struct{})
	m.readyCh = ch

	m.wg.Add(1)
	go m.awaitReady(ch)
}

func (m *Monitor) awaitReady(ready <-chan struct{}) {
	defer m.wg.Done()
	defer func() {
		// Never leave the lock stuck set, whatever path exits the wait.
		m.mu.Lock()
		m.readyLock = false
		m.readyCh = nil
		m.mu.Unlock()
	}()

	timer := time.NewTimer(m.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		zlog.Warn().Msgf("connection did not become ready within %v, destroying", m.cfg.ReadyTimeout)
		m.destroy()
	case <-m.ctx.Done():
	}
}

func (m *Monitor) onDisconnected(code CloseCode) {
	if code == m.cfg.TerminalCloseCode {
		zlog.Info().Msgf("connection closed by remote (code=%d), stopping session", code)
		m.session.Stop()
		return
	}

	m.mu.Lock()
	attempt := m.attempts
	if attempt >= m.cfg.MaxRejoinAttempts {
		m.mu.Unlock()
		zlog.Warn().Msgf("rejoin attempts exhausted (%d), destroying connection", attempt)
		m.destroy()
		return
	}
	m.attempts++
	m.mu.Unlock()

	delay := m.rejoinDelay(attempt)
	zlog.Info().Msgf("connection lost (code=%d), rejoining in %v (attempt %d/%d)",
		code, delay, attempt+1, m.cfg.MaxRejoinAttempts)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			if err := m.conn.Rejoin(); err != nil {
				zlog.Error().Msgf("rejoin failed: %v", err)
			}
		case <-m.ctx.Done():
			// Cancellable only by process teardown.
		}
	}()
}

// rejoinDelay is the linear backoff between rejoins: (attempt+1) * step.
func (m *Monitor) rejoinDelay(attempt int) time.Duration {
	return time.Duration(attempt+1) * m.cfg.BackoffStep
}

// destroy tears the connection down at most once; destroying an already
// destroyed connection is a no-op.
func (m *Monitor) destroy() {
	m.mu.Lock()
	if m.destroyed || m.conn.State() == StateDestroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.mu.Unlock()

	if err := m.conn.Destroy(); err != nil {
		zlog.Error().Msgf("destroy failed: %v", err)
	}
}
