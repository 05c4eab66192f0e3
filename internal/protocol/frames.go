package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown frame type")
	ErrEmptyField     = errors.New("missing required field")
)

// Client frame types.
const (
	TypeAuth           = "auth"
	TypeMessage        = "message"
	TypeChangeUsername = "changeUsername"
	TypePing           = "ping"
)

// Server frame types.
const (
	TypeAuthenticated   = "authenticated"
	TypeUsernameChanged = "usernameChanged"
	TypeTradeAlert      = "tradeAlert"
	TypeError           = "error"
	TypePong            = "pong"
)

// SystemUsername is the sender name stamped on server-originated broadcasts.
const SystemUsername = "System"

// ClientFrame is one of the closed set of frames a client may send:
// Auth, ChatInput, ChangeUsername, or Ping.
type ClientFrame interface {
	clientFrame()
}

// Auth binds a wallet address to the connection. Username is honored only for
// previously unseen addresses; Ref optionally carries a referral code to
// attribute on first authentication.
type Auth struct {
	Address  string `json:"address"`
	Username string `json:"username,omitempty"`
	Ref      string `json:"ref,omitempty"`
}

// ChatInput is an inbound chat message body.
type ChatInput struct {
	Content string `json:"content"`
}

// ChangeUsername requests a display-name change for the bound address.
type ChangeUsername struct {
	Username string `json:"username"`
}

// Ping is a client keep-alive frame, answered with a pong frame.
type Ping struct{}

func (Auth) clientFrame()           {}
func (ChatInput) clientFrame()      {}
func (ChangeUsername) clientFrame() {}
func (Ping) clientFrame()           {}

// envelope extracts the type discriminator without committing to a payload shape.
type envelope struct {
	Type string `json:"type"`
}

// ParseClientFrame decodes a raw frame into its concrete client frame type.
// Unknown discriminators fail with ErrUnknownType; structurally invalid JSON
// fails with ErrMalformedFrame. Required fields are checked here so handlers
// never see an empty address, content, or username.
func ParseClientFrame(data []byte) (ClientFrame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case TypeAuth:
		var f Auth
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f.Address == "" {
			return nil, fmt.Errorf("%w: auth.address", ErrEmptyField)
		}
		return f, nil

	case TypeMessage:
		var f ChatInput
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f.Content == "" {
			return nil, fmt.Errorf("%w: message.content", ErrEmptyField)
		}
		return f, nil

	case TypeChangeUsername:
		var f ChangeUsername
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f.Username == "" {
			return nil, fmt.Errorf("%w: changeUsername.username", ErrEmptyField)
		}
		return f, nil

	case TypePing:
		return Ping{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// AuthResult is sent in response to auth and changeUsername frames.
type AuthResult struct {
	Type              string `json:"type"` // "authenticated" or "usernameChanged"
	Username          string `json:"username"`
	CanChangeUsername bool   `json:"canChangeUsername"`
	CooldownRemaining int64  `json:"cooldownRemaining"` // milliseconds
}

// ChatMessage is a broadcast chat message.
type ChatMessage struct {
	Type      string `json:"type"` // "message"
	ID        string `json:"id"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// TradeData is the structured payload attached to a trade alert.
type TradeData struct {
	Action  string          `json:"action"` // "buy" or "sell"
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
	TxHash  string          `json:"txHash"`
	Emoji   string          `json:"emoji"`
}

// TradeAlert is a broadcast trade notification: a human-readable line plus
// the structured trade payload.
type TradeAlert struct {
	Type      string    `json:"type"` // "tradeAlert"
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Username  string    `json:"username"` // always SystemUsername
	Timestamp int64     `json:"timestamp"`
	TradeData TradeData `json:"tradeData"`
}

// ErrorFrame reports a rejected frame or policy violation to one client.
type ErrorFrame struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// Pong answers a client ping frame.
type Pong struct {
	Type string `json:"type"` // "pong"
}

// NewChatMessage stamps a fresh id and timestamp on a chat broadcast.
func NewChatMessage(content, username string) ChatMessage {
	return ChatMessage{
		Type:      TypeMessage,
		ID:        uuid.NewString(),
		Content:   content,
		Username:  username,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewTradeAlert stamps a fresh id and timestamp on a trade alert broadcast.
func NewTradeAlert(content string, data TradeData) TradeAlert {
	return TradeAlert{
		Type:      TypeTradeAlert,
		ID:        uuid.NewString(),
		Content:   content,
		Username:  SystemUsername,
		Timestamp: time.Now().UnixMilli(),
		TradeData: data,
	}
}

// NewErrorFrame wraps an error message for one client.
func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: msg}
}
