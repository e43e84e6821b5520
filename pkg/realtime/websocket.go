package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/wire"
)

const (
	writeWait          = 10 * time.Second
	defaultHandshake   = 10 * time.Second
	defaultPingTimeout = 45 * time.Second
	eventQueueSize     = 64
	socketIOPath       = "/socket.io/"
)

// WebSocketDialer speaks Engine.IO v4 over a websocket, joining the root
// Socket.IO namespace.
type WebSocketDialer struct {
	URL              string
	Tokens           oauth2.TokenSource // optional bearer credentials
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

// EndpointURL turns a server base URL into the websocket transport URL.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = socketIOPath
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	endpoint, err := EndpointURL(d.URL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	var auth any
	if d.Tokens != nil {
		tok, err := d.Tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
		auth = map[string]string{"token": tok.AccessToken}
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshake
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}

	ws, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	hs, err := handshake(ws, auth, timeout)
	if err != nil {
		ws.Close()
		return nil, err
	}

	pingTimeout := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	c := &wsConn{
		ws:          ws,
		sid:         hs.SID,
		pingTimeout: pingTimeout,
		events:      make(chan wire.Event, eventQueueSize),
		done:        make(chan struct{}),
	}
	go c.readLoop()

	logger.InfoCF("realtime", "Transport connected", map[string]any{
		"sid":           hs.SID,
		"ping_interval": hs.PingInterval,
	})
	return c, nil
}

// handshake waits for the Engine.IO open packet, joins the root namespace
// and waits for the server's CONNECT.
func handshake(ws *websocket.Conn, auth any, timeout time.Duration) (wire.Handshake, error) {
	var hs wire.Handshake
	if err := ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return hs, err
	}

	f, err := readFrame(ws)
	if err != nil {
		return hs, fmt.Errorf("read open packet: %w", err)
	}
	if hs, err = f.Handshake(); err != nil {
		return hs, err
	}

	connect, err := wire.ConnectFrame(auth)
	if err != nil {
		return hs, err
	}
	if err := writeFrame(ws, connect); err != nil {
		return hs, fmt.Errorf("send connect: %w", err)
	}

	for {
		f, err := readFrame(ws)
		if err != nil {
			return hs, fmt.Errorf("await namespace connect: %w", err)
		}
		switch {
		case f.Engine == wire.EnginePing:
			if err := writeFrame(ws, wire.PongFrame()); err != nil {
				return hs, err
			}
		case f.Engine == wire.EngineClose:
			return hs, ErrServerDisconnect
		case f.Engine == wire.EngineMessage && f.Socket == wire.SocketConnectError:
			return hs, fmt.Errorf("namespace rejected: %s", f.ConnectError())
		case f.Engine == wire.EngineMessage && f.Socket == wire.SocketConnect:
			return hs, ws.SetReadDeadline(time.Time{})
		}
	}
}

func readFrame(ws *websocket.Conn) (wire.Frame, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.ParseFrame(data)
}

func writeFrame(ws *websocket.Conn, data []byte) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

type wsConn struct {
	ws          *websocket.Conn
	sid         string
	pingTimeout time.Duration

	writeMu sync.Mutex
	events  chan wire.Event
	done    chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func (c *wsConn) Events() <-chan wire.Event { return c.events }

func (c *wsConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *wsConn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *wsConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.ws, data)
}

func (c *wsConn) Emit(ctx context.Context, event string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	data, err := wire.EncodeEvent(event, args...)
	if err != nil {
		return err
	}
	if err := c.write(data); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setErr(errClosedByClient)
		_ = c.write(wire.CloseFrame())
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

var errClosedByClient = errors.New("closed by client")

// readLoop is the only sender on events and closes it on exit.
func (c *wsConn) readLoop() {
	defer close(c.events)
	defer c.ws.Close()

	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pingTimeout))
		f, err := readFrame(c.ws)
		if err != nil {
			if errors.Is(err, wire.ErrMalformedPacket) {
				logger.WarnCF("realtime", "Dropping malformed frame", map[string]any{"error": err.Error()})
				continue
			}
			c.setErr(err)
			return
		}

		switch f.Engine {
		case wire.EnginePing:
			if err := c.write(wire.PongFrame()); err != nil {
				c.setErr(err)
				return
			}
		case wire.EngineClose:
			c.setErr(ErrServerDisconnect)
			return
		case wire.EngineMessage:
			switch f.Socket {
			case wire.SocketDisconnect:
				c.setErr(ErrServerDisconnect)
				return
			case wire.SocketEvent:
				ev, err := f.Event()
				if err != nil {
					logger.WarnCF("realtime", "Dropping malformed event", map[string]any{"error": err.Error()})
					continue
				}
				select {
				case c.events <- ev:
				case <-c.done:
					return
				}
			}
		}
	}
}
