package bus

import (
	"time"

	"github.com/tinyland-inc/proxima/pkg/model"
)

// Kind tags an Event.
type Kind string

const (
	KindConnect         Kind = "connect"
	KindDisconnect      Kind = "disconnect"
	KindConnectError    Kind = "connect_error"
	KindNewMatch        Kind = "new_match"
	KindMessageReceived Kind = "message_received"
	KindMessageSent     Kind = "message_sent"
	KindTyping          Kind = "typing"
	KindMessagesRead    Kind = "messages_read"
	KindMessageError    Kind = "message_error"
	KindDecodeError     Kind = "decode_error"
)

// Event is the tagged union delivered to subscribers. Which fields are set
// depends on Kind.
type Event struct {
	Kind     Kind           `json:"kind"`
	MatchID  string         `json:"match_id,omitempty"`
	UserID   string         `json:"user_id,omitempty"` // typing user, or reader for messages_read
	IsTyping bool           `json:"is_typing,omitempty"`
	Match    *model.Match   `json:"match,omitempty"`
	Message  *model.Message `json:"message,omitempty"`
	Text     string         `json:"text,omitempty"` // message_error text
	Err      error          `json:"-"`              // connect_error, decode_error, disconnect cause
	At       time.Time      `json:"at"`
}
