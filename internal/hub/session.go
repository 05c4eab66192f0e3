package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"trollbox/internal/identity"
	"trollbox/internal/protocol"
	"trollbox/internal/referral"
)

// session is the server-side state for one open connection. It never
// outlives its socket and holds identity only as a weak reference: the bound
// address, looked up in the registry on use.
type session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	address string // empty until auth succeeds
}

func (s *session) boundAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *session) bind(address string) {
	s.mu.Lock()
	s.address = address
	s.mu.Unlock()
}

// readPump reads frames until the connection drops, dispatching each one.
// Any inbound frame counts as liveness and pushes the read deadline.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongTimeout))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.hub.logger.Debug("connection read error", "address", s.boundAddress(), "error", err)
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongTimeout))
		s.handleFrame(data)
	}
}

// writePump is the only writer on the socket. It exits when the send channel
// closes (session unregistered) or a write fails.
func (s *session) writePump() {
	defer s.conn.Close()

	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Channel closed: best-effort close handshake.
	s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *session) handleFrame(data []byte) {
	frame, err := protocol.ParseClientFrame(data)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	switch f := frame.(type) {
	case protocol.Auth:
		s.handleAuth(f)
	case protocol.ChatInput:
		s.handleMessage(f)
	case protocol.ChangeUsername:
		s.handleChangeUsername(f)
	case protocol.Ping:
		s.sendFrame(protocol.Pong{Type: protocol.TypePong})
	}
}

func (s *session) handleAuth(f protocol.Auth) {
	addr := identity.CanonicalAddress(f.Address)
	status := s.hub.registry.Authenticate(addr, f.Username)
	s.bind(addr)

	s.sendFrame(protocol.AuthResult{
		Type:              protocol.TypeAuthenticated,
		Username:          status.Username,
		CanChangeUsername: status.CanChangeUsername,
		CooldownRemaining: status.CooldownRemaining.Milliseconds(),
	})

	// Every authenticated address owns a derived referral code. First write
	// wins; a prefix collision just leaves the earlier owner in place.
	if err := s.hub.ledger.RecordReferral(identity.ReferralCodeFor(addr), addr); err != nil {
		s.hub.logger.Warn("derived referral code collision", "address", addr, "error", err)
	}

	if f.Ref != "" {
		s.applyReferral(addr, f.Ref)
	}
}

// applyReferral attributes a first-time referral carried on the auth frame.
// An address that was already referred keeps its original attribution
// silently; a reconnect with the same code is the common case.
func (s *session) applyReferral(addr, code string) {
	referrer, ok := s.hub.ledger.ResolveCode(code)
	if !ok {
		s.hub.logger.Debug("unknown referral code", "code", referral.NormalizeCode(code), "address", addr)
		return
	}

	err := s.hub.ledger.Attribute(addr, referrer, code)
	switch {
	case err == nil:
		s.hub.logger.Info("referral attributed",
			"address", addr,
			"referrer", referrer,
			"code", referral.NormalizeCode(code),
		)
	case errors.Is(err, referral.ErrAlreadyReferred), errors.Is(err, referral.ErrSelfReferral):
		s.hub.logger.Debug("referral skipped", "address", addr, "error", err)
	default:
		s.sendError(err.Error())
	}
}

func (s *session) handleMessage(f protocol.ChatInput) {
	addr := s.boundAddress()
	if addr == "" {
		s.sendError(ErrNotAuthenticated.Error())
		return
	}

	if utf8.RuneCountInString(f.Content) > s.hub.cfg.MaxMessageLength {
		s.sendError(fmt.Sprintf("message too long (max %d characters)", s.hub.cfg.MaxMessageLength))
		return
	}

	status, ok := s.hub.registry.Lookup(addr)
	if !ok {
		s.sendError(ErrNotAuthenticated.Error())
		return
	}

	s.hub.broadcast(protocol.NewChatMessage(f.Content, status.Username))
}

func (s *session) handleChangeUsername(f protocol.ChangeUsername) {
	addr := s.boundAddress()
	if addr == "" {
		s.sendError(ErrNotAuthenticated.Error())
		return
	}

	status, err := s.hub.registry.ChangeUsername(addr, f.Username)
	if err != nil {
		if errors.Is(err, identity.ErrCooldownActive) {
			s.sendError(fmt.Sprintf("username change cooldown active: %dms remaining",
				status.CooldownRemaining.Milliseconds()))
		} else {
			s.sendError(err.Error())
		}
		return
	}

	s.sendFrame(protocol.AuthResult{
		Type:              protocol.TypeUsernameChanged,
		Username:          status.Username,
		CanChangeUsername: status.CanChangeUsername,
		CooldownRemaining: status.CooldownRemaining.Milliseconds(),
	})
}

// sendFrame marshals and enqueues a frame for this session only.
func (s *session) sendFrame(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.hub.logger.Error("marshal frame", "error", err)
		return
	}

	select {
	case s.send <- data:
	default:
		s.hub.logger.Warn("send buffer full, dropping frame", "address", s.boundAddress())
	}
}

func (s *session) sendError(msg string) {
	s.sendFrame(protocol.NewErrorFrame(msg))
}
