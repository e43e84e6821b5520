package wire

// Event names on the realtime channel.
const (
	EventUserConnected    = "user_connected"
	EventNewMatch         = "new_match"
	EventSendMessage      = "send_message"
	EventReceiveMessage   = "receive_message"
	EventMessageSent      = "message_sent"
	EventTyping           = "typing"
	EventMarkMessagesRead = "mark_messages_read"
	EventMessagesRead     = "messages_read"
	EventMessageError     = "message_error"
)

// SendMessagePayload is the outbound send_message body.
type SendMessagePayload struct {
	MatchID         string `json:"matchId"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	Content         string `json:"content"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// TypingPayload is the typing body in both directions.
type TypingPayload struct {
	MatchID  string `json:"matchId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// MarkReadPayload is the outbound mark_messages_read body.
type MarkReadPayload struct {
	ChatID  string `json:"chatId"`
	UserID  string `json:"userId"`
	MatchID string `json:"matchId"`
}

// MessagesRead is the inbound messages_read body.
type MessagesRead struct {
	MatchID string `json:"matchId"`
	ReadBy  string `json:"readBy"`
}
