package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/retry"
)

// State is the manager's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultDegradedAfter  = 5
	dialTimeout           = 10 * time.Second
	clientPingInterval    = 30 * time.Second
	clientPongWait        = 60 * time.Second
	dispatchBufferSize    = 64
)

// Handler receives every envelope whose topic matches its subscription.
type Handler func(domain.Envelope)

// Subscription identifies one registered handler for Unsubscribe.
type Subscription struct {
	topic domain.Topic
	id    int
}

// Config configures a Manager.
type Config struct {
	// URL is the ws:// or wss:// subscribe endpoint for one event.
	URL string

	// OnConnected fires on every transition into the connected state,
	// including the very first connect. reconnect is false only on the
	// first entry. Owners must refetch authoritative state here: no
	// envelope delivery is guaranteed for the time spent disconnected.
	OnConnected func(reconnect bool)

	// OnDegraded fires once per outage when the reconnect attempt budget
	// is exhausted. The manager keeps retrying at the capped backoff; the
	// owner should surface a passive offline indicator and fall back to
	// periodic refetch.
	OnDegraded func(err error)

	// Header is sent on every dial, including reconnects. Carries the
	// upstream-auth identity headers.
	Header http.Header

	Dialer         *websocket.Dialer
	Clock          clockwork.Clock
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DegradedAfter  int
}

// Manager runs the DISCONNECTED -> CONNECTING -> CONNECTED <-> RECONNECTING
// -> CLOSED state machine for one event subscription.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	cancel   context.CancelFunc
	handlers map[domain.Topic]map[int]Handler
	nextID   int
}

// NewManager creates a manager in the disconnected state.
func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = defaultDegradedAfter
	}
	return &Manager{
		cfg:      cfg,
		state:    StateDisconnected,
		handlers: make(map[domain.Topic]map[int]Handler),
	}
}

// State returns a snapshot of the connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a handler for a topic. Multiple handlers per topic are
// allowed and all are invoked. Subscription is local bookkeeping layered
// above the transport; it neither opens nor requires a connection.
func (m *Manager) Subscribe(topic domain.Topic, h Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handlers[topic] == nil {
		m.handlers[topic] = make(map[int]Handler)
	}
	m.nextID++
	m.handlers[topic][m.nextID] = h
	return Subscription{topic: topic, id: m.nextID}
}

// Unsubscribe removes one handler without tearing down the transport.
func (m *Manager) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hs := m.handlers[sub.topic]; hs != nil {
		delete(hs, sub.id)
		if len(hs) == 0 {
			delete(m.handlers, sub.topic)
		}
	}
}

// Connect starts the connection loop. Valid from the disconnected and closed
// states; from any other state it is a no-op returning an error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected && m.state != StateClosed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect not valid in state %s", state)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateConnecting
	dispatchCh := make(chan domain.Envelope, dispatchBufferSize)
	m.mu.Unlock()

	go m.dispatchLoop(runCtx, dispatchCh)
	go m.runLoop(runCtx, dispatchCh)
	return nil
}

// Close moves to the closed state, releases the transport and discards all
// topic handlers. Safe to call multiple times, from any state and from any
// goroutine; it never waits for in-flight operations.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	cancel := m.cancel
	conn := m.conn
	m.cancel = nil
	m.conn = nil
	m.handlers = make(map[domain.Topic]map[int]Handler)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) runLoop(ctx context.Context, dispatchCh chan<- domain.Envelope) {
	backoff := retry.Backoff{Initial: m.cfg.InitialBackoff, Max: m.cfg.MaxBackoff}
	reconnect := false
	degraded := false

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setState(StateReconnecting)
			if !degraded && backoff.Attempt() >= m.cfg.DegradedAfter {
				degraded = true
				slog.Warn("Realtime connection degraded", "url", m.cfg.URL, "attempts", backoff.Attempt(), "error", err)
				if m.cfg.OnDegraded != nil {
					m.cfg.OnDegraded(err)
				}
			}
			delay := backoff.Next()
			slog.Debug("Realtime reconnect scheduled", "url", m.cfg.URL, "backoff", delay)
			select {
			case <-m.cfg.Clock.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}

		backoff.Reset()
		degraded = false

		if !m.adoptConn(conn) {
			// Closed while dialing.
			_ = conn.Close()
			return
		}

		slog.Info("Realtime connected", "url", m.cfg.URL, "reconnect", reconnect)
		if m.cfg.OnConnected != nil {
			m.cfg.OnConnected(reconnect)
		}
		reconnect = true

		m.readPump(ctx, conn, dispatchCh)
		m.dropConn(conn)

		if ctx.Err() != nil {
			return
		}
		// Any stream termination, clean or not, drives reconnection.
		m.setState(StateReconnecting)
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := m.cfg.Dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %s): %w", m.cfg.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", m.cfg.URL, err)
	}
	return conn, nil
}

// readPump reads envelopes until the connection dies. It also owns the
// keepalive ping loop for this connection.
func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn, dispatchCh chan<- domain.Envelope) {
	_ = conn.SetReadDeadline(m.cfg.Clock.Now().Add(clientPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(m.cfg.Clock.Now().Add(clientPongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := m.cfg.Clock.NewTicker(clientPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Realtime stream terminated", "url", m.cfg.URL, "error", err)
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			slog.Warn("Discarding malformed envelope", "error", err)
			continue
		}

		select {
		case dispatchCh <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) dispatchLoop(ctx context.Context, dispatchCh <-chan domain.Envelope) {
	for {
		select {
		case env := <-dispatchCh:
			for _, h := range m.handlersFor(env.Topic) {
				h(env)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handlersFor(topic domain.Topic) []Handler {
	m.mu.Lock()
	defer m.mu.Unlock()

	hs := m.handlers[topic]
	if len(hs) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(hs))
	for _, h := range hs {
		out = append(out, h)
	}
	return out
}

// adoptConn publishes the new connection and enters the connected state.
// Returns false if the manager was closed while dialing.
func (m *Manager) adoptConn(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return false
	}
	m.conn = conn
	m.state = StateConnected
	return true
}

func (m *Manager) dropConn(conn *websocket.Conn) {
	_ = conn.Close()
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state != StateClosed {
		m.state = s
	}
	m.mu.Unlock()
}
