// Package wire implements the Socket.IO (v5) over Engine.IO (v4) text framing
// spoken by the realtime server, plus the typed payloads carried in it.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedPacket is returned for frames that cannot be parsed.
var ErrMalformedPacket = errors.New("malformed packet")

// Engine.IO packet types.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// Socket.IO packet types, carried inside an Engine.IO message.
const (
	SocketConnect      byte = '0'
	SocketDisconnect   byte = '1'
	SocketEvent        byte = '2'
	SocketAck          byte = '3'
	SocketConnectError byte = '4'
)

// DefaultNamespace is the root Socket.IO namespace.
const DefaultNamespace = "/"

// Frame is one decoded text frame.
type Frame struct {
	Engine    byte
	Socket    byte // only meaningful when Engine == EngineMessage
	Namespace string
	AckID     int // -1 when absent
	Data      []byte
}

// Handshake is the Engine.IO open packet payload.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Event is a decoded Socket.IO EVENT packet.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Arg returns argument i, or nil if absent.
func (e Event) Arg(i int) json.RawMessage {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// ParseFrame decodes a websocket text frame.
func ParseFrame(text []byte) (Frame, error) {
	f := Frame{AckID: -1, Namespace: DefaultNamespace}
	if len(text) == 0 {
		return f, fmt.Errorf("%w: empty frame", ErrMalformedPacket)
	}
	f.Engine = text[0]
	if f.Engine < EngineOpen || f.Engine > EngineNoop {
		return f, fmt.Errorf("%w: unknown engine type %q", ErrMalformedPacket, f.Engine)
	}
	rest := text[1:]
	if f.Engine != EngineMessage {
		f.Data = rest
		return f, nil
	}

	if len(rest) == 0 {
		return f, fmt.Errorf("%w: message without socket type", ErrMalformedPacket)
	}
	f.Socket = rest[0]
	if f.Socket < SocketConnect || f.Socket > SocketConnectError {
		return f, fmt.Errorf("%w: unsupported socket type %q", ErrMalformedPacket, f.Socket)
	}
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			f.Namespace = string(rest)
			return f, nil
		}
		f.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return f, fmt.Errorf("%w: ack id: %v", ErrMalformedPacket, err)
		}
		f.AckID = id
		rest = rest[i:]
	}
	f.Data = rest
	return f, nil
}

// Handshake decodes an open packet.
func (f Frame) Handshake() (Handshake, error) {
	var h Handshake
	if f.Engine != EngineOpen {
		return h, fmt.Errorf("%w: not an open packet", ErrMalformedPacket)
	}
	if err := json.Unmarshal(f.Data, &h); err != nil {
		return h, fmt.Errorf("%w: handshake: %v", ErrMalformedPacket, err)
	}
	return h, nil
}

// Event decodes an EVENT packet.
func (f Frame) Event() (Event, error) {
	var ev Event
	if f.Engine != EngineMessage || f.Socket != SocketEvent {
		return ev, fmt.Errorf("%w: not an event packet", ErrMalformedPacket)
	}
	var args []json.RawMessage
	if err := json.Unmarshal(f.Data, &args); err != nil {
		return ev, fmt.Errorf("%w: event body: %v", ErrMalformedPacket, err)
	}
	if len(args) == 0 {
		return ev, fmt.Errorf("%w: event without name", ErrMalformedPacket)
	}
	if err := json.Unmarshal(args[0], &ev.Name); err != nil {
		return ev, fmt.Errorf("%w: event name: %v", ErrMalformedPacket, err)
	}
	ev.Args = args[1:]
	return ev, nil
}

// ConnectError extracts the message of a CONNECT_ERROR packet.
func (f Frame) ConnectError() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(f.Data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(f.Data)
}

// EncodeEvent builds a "42[...]" frame for the default namespace.
func EncodeEvent(name string, args ...any) ([]byte, error) {
	body := make([]any, 0, len(args)+1)
	body = append(body, name)
	body = append(body, args...)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	out := make([]byte, 0, len(data)+2)
	out = append(out, EngineMessage, SocketEvent)
	return append(out, data...), nil
}

// ConnectFrame builds the namespace connect packet, with optional auth payload.
func ConnectFrame(auth any) ([]byte, error) {
	out := []byte{EngineMessage, SocketConnect}
	if auth == nil {
		return out, nil
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("encode auth: %w", err)
	}
	return append(out, data...), nil
}

// PongFrame answers a server ping.
func PongFrame() []byte { return []byte{EnginePong} }

// CloseFrame is sent before a client-initiated close.
func CloseFrame() []byte { return []byte{EngineMessage, SocketDisconnect} }
