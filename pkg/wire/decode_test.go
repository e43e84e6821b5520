package wire

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMatch_Defaults(t *testing.T) {
	m, err := DecodeMatch([]byte(`{"_id":"m1","participants":["a","b"]}`))
	if err != nil {
		t.Fatalf("DecodeMatch() error: %v", err)
	}
	if m.LikedBy == nil || len(m.LikedBy) != 0 {
		t.Errorf("liked: got %#v, want empty list", m.LikedBy)
	}
	if m.Seen {
		t.Error("seen should default to false on the socket path")
	}
	if len(m.Participants) != 2 {
		t.Errorf("participants: got %v", m.Participants)
	}
}

func TestDecodeMatch_AllFields(t *testing.T) {
	m, err := DecodeMatch([]byte(`{"_id":"m1","participants":["a","b"],"liked":["a"],"seen":true}`))
	if err != nil {
		t.Fatalf("DecodeMatch() error: %v", err)
	}
	if !m.Seen || len(m.LikedBy) != 1 || m.LikedBy[0] != "a" {
		t.Errorf("match: got %+v", m)
	}
}

func TestDecodeMatch_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing id", `{"participants":[]}`, "_id"},
		{"liked not list", `{"_id":"m","liked":"a"}`, "liked"},
		{"participant not string", `{"_id":"m","participants":[1,2]}`, "participants"},
		{"seen not bool", `{"_id":"m","seen":"yes"}`, "seen"},
		{"not an object", `[1,2]`, ""},
		{"invalid json", `{`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMatch([]byte(tt.raw))
			var dErr *DecodeError
			if !errors.As(err, &dErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if dErr.Field != tt.field {
				t.Errorf("field: got %q, want %q", dErr.Field, tt.field)
			}
		})
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	raw := `{"matchId":"m1","message":{"sender":"a","content":"hi","timestamp":"2026-01-02T03:04:05Z","read":false,"clientMessageId":"c1"}}`
	matchID, msg, err := DecodeMessageEvent(EventReceiveMessage, []byte(raw), time.Time{})
	if err != nil {
		t.Fatalf("DecodeMessageEvent() error: %v", err)
	}
	if matchID != "m1" || msg.Sender != "a" || msg.Content != "hi" || msg.ClientID != "c1" {
		t.Errorf("decoded: %q %+v", matchID, msg)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", msg.Timestamp, want)
	}
}

func TestDecodeMessageEvent_EpochAndFallback(t *testing.T) {
	_, msg, err := DecodeMessageEvent(EventReceiveMessage,
		[]byte(`{"matchId":"m1","message":{"sender":"a","content":"x","timestamp":1700000000000}}`), time.Time{})
	if err != nil {
		t.Fatalf("epoch: %v", err)
	}
	if msg.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("epoch timestamp: got %v", msg.Timestamp)
	}

	received := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, msg, err = DecodeMessageEvent(EventReceiveMessage,
		[]byte(`{"matchId":"m1","message":{"sender":"a","content":"x"}}`), received)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if !msg.Timestamp.Equal(received) {
		t.Errorf("fallback timestamp: got %v, want %v", msg.Timestamp, received)
	}
}

func TestDecodeMessageEvent_MissingMessage(t *testing.T) {
	_, _, err := DecodeMessageEvent(EventMessageSent, []byte(`{"matchId":"m1"}`), time.Now())
	var dErr *DecodeError
	if !errors.As(err, &dErr) || dErr.Field != "message" {
		t.Errorf("expected DecodeError on message, got %v", err)
	}
	if dErr != nil && dErr.Event != EventMessageSent {
		t.Errorf("event: got %q", dErr.Event)
	}
}

func TestDecodeTyping(t *testing.T) {
	p, err := DecodeTyping([]byte(`{"matchId":"m1","userId":"u"}`))
	if err != nil {
		t.Fatalf("DecodeTyping() error: %v", err)
	}
	if p.IsTyping {
		t.Error("isTyping should default to false")
	}
}

func TestDecodeMessagesRead(t *testing.T) {
	p, err := DecodeMessagesRead([]byte(`{"matchId":"m1","readBy":"u2"}`))
	if err != nil {
		t.Fatalf("DecodeMessagesRead() error: %v", err)
	}
	if p.ReadBy != "u2" {
		t.Errorf("readBy: got %q", p.ReadBy)
	}
	if _, err := DecodeMessagesRead([]byte(`{"matchId":"m1"}`)); err == nil {
		t.Error("expected error for missing readBy")
	}
}

func TestDecodeMessageError(t *testing.T) {
	tests := map[string]string{
		`"recipient offline"`:      "recipient offline",
		`{"message":"blocked"}`:    "blocked",
		`{"error":"rate limited"}`: "rate limited",
		`{"code":5}`:               `{"code":5}`,
	}
	for raw, want := range tests {
		if got := DecodeMessageError([]byte(raw)); got != want {
			t.Errorf("DecodeMessageError(%s): got %q, want %q", raw, got, want)
		}
	}
}
