package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"trollbox/internal/identity"
	"trollbox/internal/protocol"
	"trollbox/internal/referral"
)

// ErrNotAuthenticated is reported when a connection sends chat or rename
// frames before a successful auth.
var ErrNotAuthenticated = errors.New("not authenticated")

// AlertSink receives every broadcast trade alert, typically for persistence.
type AlertSink interface {
	Insert(ctx context.Context, alert protocol.TradeAlert) error
}

// Config holds per-connection chat limits.
type Config struct {
	MaxMessageLength int           // chat content cap, in runes
	SendBuffer       int           // frames queued per connection before drops
	WriteTimeout     time.Duration // write deadline per frame
	PongTimeout      time.Duration // read deadline; any inbound frame resets it
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageLength: 500,
		SendBuffer:       64,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      60 * time.Second,
	}
}

// Hub owns the connection set and the broadcast path.
type Hub struct {
	cfg      Config
	registry *identity.Registry
	ledger   *referral.Ledger
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool

	sinkMu sync.RWMutex
	sink   AlertSink
}

// New creates a hub over the given registry and ledger.
func New(cfg Config, registry *identity.Registry, ledger *referral.Ledger, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cfg:      cfg,
		registry: registry,
		ledger:   ledger,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// SetAlertSink installs an optional persistence sink for trade alerts.
func (h *Hub) SetAlertSink(sink AlertSink) {
	h.sinkMu.Lock()
	h.sink = sink
	h.sinkMu.Unlock()
}

// ServeWS upgrades an HTTP request and runs a session until the connection
// drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := &session{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	if !h.register(s) {
		conn.Close()
		return
	}

	h.logger.Debug("connection opened", "remote", r.RemoteAddr)

	go s.writePump()
	go s.readPump()
}

// PostTradeAlert builds and broadcasts a trade alert: a human-readable line
// plus the structured payload. The alert is also handed to the sink, when
// one is installed, without blocking the broadcast.
func (h *Hub) PostTradeAlert(action string, amount decimal.Decimal, address, txHash string) protocol.TradeAlert {
	emoji := TierEmoji(amount)
	alert := protocol.NewTradeAlert(
		alertLine(emoji, action, amount, address),
		protocol.TradeData{
			Action:  action,
			Amount:  amount,
			Address: address,
			TxHash:  txHash,
			Emoji:   emoji,
		},
	)

	h.broadcast(alert)
	h.persistAlert(alert)
	return alert
}

// ConnectionCount returns the number of open sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close tears down every open session. New connections are rejected after.
// Sockets are closed here; each session unregisters itself as its read pump
// observes the closure.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}
}

func (h *Hub) register(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

// unregister removes a session and closes its send channel. Safe to call
// more than once per session.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
	}
	h.mu.Unlock()

	if ok {
		close(s.send)
	}
}

// broadcast marshals a frame once and enqueues it on every open session.
// Sessions with a full send buffer drop the frame rather than block the
// others.
func (h *Hub) broadcast(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshal broadcast frame", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.sessions {
		select {
		case s.send <- data:
		default:
			h.logger.Warn("send buffer full, dropping frame", "address", s.boundAddress())
		}
	}
}

func (h *Hub) persistAlert(alert protocol.TradeAlert) {
	h.sinkMu.RLock()
	sink := h.sink
	h.sinkMu.RUnlock()

	if sink == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sink.Insert(ctx, alert); err != nil {
			h.logger.Warn("persist trade alert failed", "id", alert.ID, "error", err)
		}
	}()
}
