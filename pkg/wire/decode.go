package wire

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/proxima/pkg/model"
)

// DecodeError reports a field that is present but malformed, or a required
// field that is missing. Optional absent fields take their default instead.
type DecodeError struct {
	Event  string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: field %q: %s", e.Event, e.Field, e.Reason)
}

// fieldReader applies per-field absent/malformed policy over one JSON object.
type fieldReader struct {
	event string
	root  gjson.Result
	err   error
}

func newFieldReader(event string, raw []byte) *fieldReader {
	r := &fieldReader{event: event}
	if !gjson.ValidBytes(raw) {
		r.err = &DecodeError{Event: event, Field: "", Reason: "invalid JSON"}
		return r
	}
	r.root = gjson.ParseBytes(raw)
	if !r.root.IsObject() {
		r.err = &DecodeError{Event: event, Field: "", Reason: "payload is not an object"}
	}
	return r
}

func (r *fieldReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &DecodeError{Event: r.event, Field: field, Reason: reason}
	}
}

// requiredString must be present and a non-empty string.
func (r *fieldReader) requiredString(field string) string {
	if r.err != nil {
		return ""
	}
	v := r.root.Get(field)
	switch {
	case !v.Exists():
		r.fail(field, "missing")
	case v.Type != gjson.String:
		r.fail(field, "not a string")
	case v.Str == "":
		r.fail(field, "empty")
	}
	return v.Str
}

// optionalString defaults to "" when absent.
func (r *fieldReader) optionalString(field string) string {
	if r.err != nil {
		return ""
	}
	v := r.root.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	if v.Type != gjson.String {
		r.fail(field, "not a string")
	}
	return v.Str
}

// optionalBool defaults to def when absent.
func (r *fieldReader) optionalBool(field string, def bool) bool {
	if r.err != nil {
		return def
	}
	v := r.root.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return def
	}
	if v.Type != gjson.True && v.Type != gjson.False {
		r.fail(field, "not a boolean")
		return def
	}
	return v.Bool()
}

// optionalStrings defaults to an empty list when absent.
func (r *fieldReader) optionalStrings(field string) []string {
	out := []string{}
	if r.err != nil {
		return out
	}
	v := r.root.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return out
	}
	if !v.IsArray() {
		r.fail(field, "not a list")
		return out
	}
	for _, el := range v.Array() {
		if el.Type != gjson.String {
			r.fail(field, "list element is not a string")
			return []string{}
		}
		out = append(out, el.Str)
	}
	return out
}

// optionalTime accepts RFC 3339 strings or epoch milliseconds, and defaults
// to def when absent.
func (r *fieldReader) optionalTime(field string, def time.Time) time.Time {
	if r.err != nil {
		return def
	}
	v := r.root.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return def
	}
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			r.fail(field, "not an RFC 3339 timestamp")
			return def
		}
		return t
	default:
		r.fail(field, "not a timestamp")
		return def
	}
}

func (r *fieldReader) object(field string) *fieldReader {
	sub := &fieldReader{event: r.event, err: r.err}
	if r.err != nil {
		return sub
	}
	v := r.root.Get(field)
	switch {
	case !v.Exists():
		r.fail(field, "missing")
	case !v.IsObject():
		r.fail(field, "not an object")
	}
	sub.err = r.err
	sub.root = v
	return sub
}

// DecodeMatch decodes a new_match payload. Missing participants or liked
// default to empty lists and a missing seen defaults to false.
func DecodeMatch(raw []byte) (model.Match, error) {
	r := newFieldReader(EventNewMatch, raw)
	m := model.Match{
		ID:           r.requiredString("_id"),
		Participants: r.optionalStrings("participants"),
		LikedBy:      r.optionalStrings("liked"),
		Seen:         r.optionalBool("seen", false),
	}
	if r.err != nil {
		return model.Match{}, r.err
	}
	return m, nil
}

// DecodeMessageEvent decodes receive_message and message_sent payloads.
// A missing timestamp falls back to received.
func DecodeMessageEvent(event string, raw []byte, received time.Time) (string, model.Message, error) {
	r := newFieldReader(event, raw)
	matchID := r.requiredString("matchId")
	mr := r.object("message")
	msg := model.Message{
		ClientID:  mr.optionalString("clientMessageId"),
		Sender:    mr.requiredString("sender"),
		Content:   mr.optionalString("content"),
		Timestamp: mr.optionalTime("timestamp", received),
		Read:      mr.optionalBool("read", false),
	}
	if err := firstErr(r.err, mr.err); err != nil {
		return "", model.Message{}, err
	}
	return matchID, msg, nil
}

// DecodeTyping decodes an inbound typing payload. isTyping defaults to false.
func DecodeTyping(raw []byte) (TypingPayload, error) {
	r := newFieldReader(EventTyping, raw)
	p := TypingPayload{
		MatchID:  r.requiredString("matchId"),
		UserID:   r.requiredString("userId"),
		IsTyping: r.optionalBool("isTyping", false),
	}
	if r.err != nil {
		return TypingPayload{}, r.err
	}
	return p, nil
}

// DecodeMessagesRead decodes a messages_read payload.
func DecodeMessagesRead(raw []byte) (MessagesRead, error) {
	r := newFieldReader(EventMessagesRead, raw)
	p := MessagesRead{
		MatchID: r.requiredString("matchId"),
		ReadBy:  r.requiredString("readBy"),
	}
	if r.err != nil {
		return MessagesRead{}, r.err
	}
	return p, nil
}

// DecodeMessageError accepts a bare string, or an object with a message or
// error field. Anything else is returned verbatim.
func DecodeMessageError(raw []byte) string {
	v := gjson.ParseBytes(raw)
	switch {
	case v.Type == gjson.String:
		return v.Str
	case v.IsObject():
		if m := v.Get("message"); m.Type == gjson.String {
			return m.Str
		}
		if m := v.Get("error"); m.Type == gjson.String {
			return m.Str
		}
	}
	return string(raw)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
