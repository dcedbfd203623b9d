package upstream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Session is an established upstream MCP connection.
// *client.Client from mcp-go satisfies it.
type Session interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer builds and initializes a new Session.
type Dialer func(ctx context.Context) (Session, error)

// Connection states reported by Manager.State.
const (
	StateUnconnected = "unconnected"
	StateConnecting  = "connecting"
	StateConnected   = "connected"
)

// attempt is one connection construction. done is closed once sess or err
// is set; both are immutable afterwards.
type attempt struct {
	done chan struct{}
	sess Session
	err  error
}

// Manager owns the single shared upstream connection. Concurrent callers of
// Ensure share one in-flight dial. Reset discards the connection so the next
// Ensure dials afresh. Failed dials are forgotten, so a later Ensure retries.
//
// It is safe for concurrent use.
type Manager struct {
	dial        Dialer
	dialTimeout time.Duration

	mu      sync.Mutex
	current *attempt

	dials  atomic.Int64
	resets atomic.Int64
}

// NewManager creates a Manager. dialTimeout bounds each background dial so an
// abandoned attempt cannot hang forever.
func NewManager(dial Dialer, dialTimeout time.Duration) *Manager {
	return &Manager{dial: dial, dialTimeout: dialTimeout}
}

// Ensure returns the shared session, dialing it if no attempt exists. If an
// attempt is in flight the caller waits for that same attempt.
func (m *Manager) Ensure(ctx context.Context) (Session, error) {
	m.mu.Lock()
	a := m.current
	if a == nil {
		a = &attempt{done: make(chan struct{})}
		m.current = a
		go m.connect(a)
	}
	m.mu.Unlock()

	select {
	case <-a.done:
		if a.err != nil {
			return nil, a.err
		}
		return a.sess, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect runs the dial detached from any caller's context: the attempt is
// shared, so one caller giving up must not fail it for the others.
func (m *Manager) connect(a *attempt) {
	m.dials.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	defer cancel()

	sess, err := m.dial(ctx)
	a.sess, a.err = sess, wrap("connect", err)
	close(a.done)

	if err != nil {
		slog.Warn("upstream connect failed", "error", err, "kind", Classify(err).String())
		m.mu.Lock()
		if m.current == a {
			m.current = nil
		}
		m.mu.Unlock()
		return
	}
	slog.Debug("upstream connected")
}

// Reset discards the stored attempt. A session that is still being dialed
// is closed once the dial completes.
func (m *Manager) Reset() {
	m.mu.Lock()
	a := m.current
	m.current = nil
	m.mu.Unlock()

	m.resets.Add(1)
	if a == nil {
		return
	}

	go func() {
		<-a.done
		if a.sess != nil {
			if err := a.sess.Close(); err != nil {
				slog.Debug("upstream close after reset failed", "error", err)
			}
		}
	}()
}

// Close shuts down the current session, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	a := m.current
	m.current = nil
	m.mu.Unlock()

	if a == nil {
		return nil
	}
	select {
	case <-a.done:
		if a.sess != nil {
			return a.sess.Close()
		}
	default:
	}
	return nil
}

// State reports the connection state.
func (m *Manager) State() string {
	m.mu.Lock()
	a := m.current
	m.mu.Unlock()

	if a == nil {
		return StateUnconnected
	}
	select {
	case <-a.done:
		if a.err != nil {
			return StateUnconnected
		}
		return StateConnected
	default:
		return StateConnecting
	}
}

// Dials returns how many connection attempts have been started.
func (m *Manager) Dials() int64 { return m.dials.Load() }

// Resets returns how many times Reset has been called.
func (m *Manager) Resets() int64 { return m.resets.Load() }
