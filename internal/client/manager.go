package client

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trollbox/internal/protocol"
)

// Manager keeps one logical session alive. Public entry points never block
// on network I/O: dialing happens on a background goroutine and SendMessage
// drops (returning false) when the transport is not open.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	url        string
	conn       *websocket.Conn
	state      State
	connecting bool // a dial is in flight
	attempts   int  // consecutive failures since last successful open
	reconnect  *time.Timer
	pingStop   chan struct{} // non-nil while the ping loop runs
	closed     bool

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int

	writeMu sync.Mutex
}

// New creates a connection manager. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:       cfg,
		logger:    logger,
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
}

// Connect opens a transport to url. Idempotent: if a dial is in flight or a
// transport is already open, the call returns without creating a second one.
// The dial itself runs in the background; failures are retried with backoff.
func (m *Manager) Connect(url string) {
	m.mu.Lock()
	if m.closed || m.connecting || m.conn != nil {
		m.mu.Unlock()
		return
	}
	m.url = url
	m.connecting = true
	m.state = StateConnecting
	m.mu.Unlock()

	go m.dial()
}

// AddListener registers a subscriber and returns its handle. A listener
// added while the transport is already open is immediately handed a
// synthetic connected event so it never misses the current state.
func (m *Manager) AddListener(fn Listener) int {
	m.listenerMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenerMu.Unlock()

	m.mu.Lock()
	open := m.conn != nil
	m.mu.Unlock()

	if open {
		invoke(fn, Event{Type: EventConnected}, m.logger)
	}
	return id
}

// RemoveListener unregisters a previously added listener.
func (m *Manager) RemoveListener(id int) {
	m.listenerMu.Lock()
	delete(m.listeners, id)
	m.listenerMu.Unlock()
}

// SendMessage serializes payload and writes it to the transport. Returns
// false without queueing when the transport is not open; there is no
// store-and-forward.
func (m *Manager) SendMessage(payload any) bool {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("marshal outbound frame", "error", err)
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Debug("send failed", "error", err)
		return false
	}
	return true
}

// StartPing begins the keep-alive loop: one ping frame per PingInterval
// while the transport is open. Idempotent; at most one loop per manager.
func (m *Manager) StartPing() {
	m.mu.Lock()
	if m.closed || m.pingStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.pingStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.SendMessage(struct {
					Type string `json:"type"`
				}{Type: protocol.TypePing})
			}
		}
	}()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Disconnect closes the transport for good: any pending reconnect timer and
// the ping loop are cancelled first, and no further reconnects are
// scheduled. Terminal; the manager cannot be reused afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateClosed

	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		m.writeMu.Unlock()
		conn.Close()
		m.notify(Event{Type: EventDisconnected})
	}
}

// Close is an alias for Disconnect.
func (m *Manager) Close() {
	m.Disconnect()
}

// dial performs one connection attempt and hands the socket to the read
// loop. On failure it schedules the next attempt with backoff.
func (m *Manager) dial() {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(m.url, nil)

	m.mu.Lock()
	m.connecting = false

	if m.closed {
		m.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		delay := m.cfg.BackoffDelay(m.attempts)
		m.attempts++
		m.scheduleReconnectLocked(delay)
		m.mu.Unlock()

		m.logger.Warn("connect failed, retrying", "delay", delay, "error", err)
		m.notify(Event{Type: EventError, Err: err})
		return
	}

	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Debug("connected", "url", m.url)
	go m.readLoop(conn)
	m.notify(Event{Type: EventConnected})
}

// readLoop reads frames from one socket until it fails, then arranges
// recovery unless the closure was deliberate.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}

		var env struct {
			Type string `json:"type"`
		}
		if jErr := json.Unmarshal(data, &env); jErr != nil || env.Type == "" {
			m.logger.Warn("dropping unparseable frame", "error", jErr)
			continue
		}

		m.notify(Event{Type: env.Type, Data: data})
	}
}

// handleClose tears down a failed transport and schedules a reconnect for
// unexpected (non-normal) closures.
func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	conn.Close()

	m.mu.Lock()
	if m.conn != conn {
		// A stale read loop from a transport already replaced.
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if m.closed {
		m.mu.Unlock()
		return
	}

	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if normal {
		m.state = StateIdle
		m.mu.Unlock()
		m.notify(Event{Type: EventDisconnected})
		return
	}

	delay := m.cfg.BackoffDelay(m.attempts)
	m.attempts++
	m.state = StateConnecting
	m.scheduleReconnectLocked(delay)
	m.mu.Unlock()

	m.logger.Warn("connection lost, reconnecting", "delay", delay, "error", err)
	m.notify(Event{Type: EventDisconnected})
	m.notify(Event{Type: EventError, Err: err})
}

// scheduleReconnectLocked arms the reconnect timer. At most one timer is
// pending at a time. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked(delay time.Duration) {
	if m.reconnect != nil {
		return
	}

	m.reconnect = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnect = nil
		if m.closed || m.connecting || m.conn != nil {
			m.mu.Unlock()
			return
		}
		m.connecting = true
		m.state = StateConnecting
		m.mu.Unlock()

		go m.dial()
	})
}

// notify fans an event out to every listener. The listener set survives
// reconnects; a panicking listener is logged and skipped so the others
// still run.
func (m *Manager) notify(ev Event) {
	m.listenerMu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()

	for _, fn := range fns {
		invoke(fn, ev, m.logger)
	}
}

func invoke(fn Listener, ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked", "event", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}
