// Package realtime maintains the single logical connection to the messaging
// server and multiplexes its typed events onto an event bus.
package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/proxima/pkg/bus"
	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/wire"
)

// State of the channel connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Options struct {
	ReconnectAttempts int
	BaseDelay         time.Duration
	MaxDelay          time.Duration

	// Now stamps inbound messages lacking a timestamp. Defaults to time.Now.
	Now func() time.Time
	// NewID generates client message ids. Defaults to uuid.NewString.
	NewID func() string
}

func DefaultOptions() Options {
	return Options{
		ReconnectAttempts: 5,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
	}
}

// Manager owns zero or one transport at a time. It is safe for concurrent use;
// transport creation happens only on the DISCONNECTED to CONNECTING edge.
type Manager struct {
	dialer Dialer
	bus    *bus.EventBus
	opts   Options

	mu     sync.Mutex
	state  State
	conn   Conn
	userID string
	gen    uint64
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewManager(dialer Dialer, eventBus *bus.EventBus, opts Options) *Manager {
	def := DefaultOptions()
	if opts.ReconnectAttempts < 1 {
		opts.ReconnectAttempts = def.ReconnectAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Manager{
		dialer: dialer,
		bus:    eventBus,
		opts:   opts,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// UserID returns the user the channel is registered for.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Connect opens the transport if none is up and registers userID once it is.
// On an already connected channel it only re-sends the registration. Dial
// failures are reported asynchronously as connect_error events.
func (m *Manager) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}

	m.mu.Lock()
	m.userID = userID
	switch m.state {
	case StateConnected:
		conn := m.conn
		m.mu.Unlock()
		return m.register(ctx, conn, userID)
	case StateConnecting:
		m.mu.Unlock()
		return nil
	}

	m.state = StateConnecting
	m.gen++
	gen := m.gen
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	logger.InfoCF("realtime", "Connecting", map[string]any{"user_id": userID})
	go m.connectLoop(loopCtx, gen)
	return nil
}

// Disconnect tears the transport down. Safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected && m.cancel == nil {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.gen++
	m.mu.Unlock()

	if conn == nil {
		logger.InfoC("realtime", "Connect attempt cancelled")
		return
	}
	if err := conn.Close(); err != nil {
		logger.DebugCF("realtime", "Transport close", map[string]any{"error": err.Error()})
	}
	logger.InfoC("realtime", "Disconnected")
	m.publish(bus.Event{Kind: bus.KindDisconnect})
}

// Close disconnects and waits for background work to finish.
func (m *Manager) Close() {
	m.Disconnect()
	m.wg.Wait()
}

func (m *Manager) connectLoop(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	for attempt := 1; ; attempt++ {
		conn, err := m.dialer.Dial(ctx)
		if err == nil {
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				conn.Close()
				return
			}
			m.conn = conn
			m.state = StateConnected
			userID := m.userID
			m.mu.Unlock()

			logger.InfoCF("realtime", "Connected", map[string]any{"attempt": attempt})
			m.publish(bus.Event{Kind: bus.KindConnect, UserID: userID})
			if err := m.register(ctx, conn, userID); err != nil {
				logger.WarnCF("realtime", "Registration failed", map[string]any{"error": err.Error()})
			}
			m.pump(ctx, conn, gen)
			return
		}
		if ctx.Err() != nil {
			return
		}

		cerr := &ConnectError{Attempt: attempt, Err: err}
		logger.WarnCF("realtime", "Connect failed", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
		m.publish(bus.Event{Kind: bus.KindConnectError, Err: cerr})

		if attempt >= m.opts.ReconnectAttempts {
			m.mu.Lock()
			if gen == m.gen {
				m.state = StateDisconnected
				if m.cancel != nil {
					m.cancel()
					m.cancel = nil
				}
			}
			m.mu.Unlock()
			logger.ErrorCF("realtime", "Giving up on connect", map[string]any{"attempts": attempt})
			return
		}

		timer := time.NewTimer(backoffDelay(attempt, m.opts.BaseDelay, m.opts.MaxDelay))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// pump delivers inbound events in transport order until the transport ends
// or the connection is torn down locally.
func (m *Manager) pump(ctx context.Context, conn Conn, gen uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				m.dropped(conn, gen)
				return
			}
			m.dispatch(ev)
		}
	}
}

func (m *Manager) dropped(conn Conn, gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.conn = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.mu.Unlock()

	cause := conn.Err()
	fields := map[string]any{}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	logger.WarnCF("realtime", "Transport dropped", fields)
	m.publish(bus.Event{Kind: bus.KindDisconnect, Err: cause})
}

func (m *Manager) dispatch(ev wire.Event) {
	now := m.opts.Now()
	raw := ev.Arg(0)

	switch ev.Name {
	case wire.EventNewMatch:
		match, err := wire.DecodeMatch(raw)
		if err != nil {
			m.decodeFailed(err)
			return
		}
		m.publish(bus.Event{Kind: bus.KindNewMatch, MatchID: match.ID, Match: &match, At: now})

	case wire.EventReceiveMessage, wire.EventMessageSent:
		matchID, msg, err := wire.DecodeMessageEvent(ev.Name, raw, now)
		if err != nil {
			m.decodeFailed(err)
			return
		}
		kind := bus.KindMessageReceived
		if ev.Name == wire.EventMessageSent {
			kind = bus.KindMessageSent
		}
		m.publish(bus.Event{Kind: kind, MatchID: matchID, UserID: msg.Sender, Message: &msg, At: now})

	case wire.EventTyping:
		p, err := wire.DecodeTyping(raw)
		if err != nil {
			m.decodeFailed(err)
			return
		}
		m.publish(bus.Event{Kind: bus.KindTyping, MatchID: p.MatchID, UserID: p.UserID, IsTyping: p.IsTyping, At: now})

	case wire.EventMessagesRead:
		p, err := wire.DecodeMessagesRead(raw)
		if err != nil {
			m.decodeFailed(err)
			return
		}
		m.publish(bus.Event{Kind: bus.KindMessagesRead, MatchID: p.MatchID, UserID: p.ReadBy, At: now})

	case wire.EventMessageError:
		text := wire.DecodeMessageError(raw)
		logger.WarnCF("realtime", "Server reported message error", map[string]any{"message": text})
		m.publish(bus.Event{
			Kind: bus.KindMessageError,
			Text: text,
			Err:  &RemoteMessageError{Message: text},
			At:   now,
		})

	default:
		logger.DebugCF("realtime", "Ignoring event", map[string]any{"event": ev.Name})
	}
}

func (m *Manager) decodeFailed(err error) {
	logger.WarnCF("realtime", "Dropping undecodable event", map[string]any{"error": err.Error()})
	m.publish(bus.Event{Kind: bus.KindDecodeError, Err: err, At: m.opts.Now()})
}

func (m *Manager) publish(ev bus.Event) {
	if ev.At.IsZero() {
		ev.At = m.opts.Now()
	}
	if err := m.bus.Publish(context.Background(), ev); err != nil {
		logger.DebugCF("realtime", "Event not published", map[string]any{
			"kind":  string(ev.Kind),
			"error": err.Error(),
		})
	}
}

func (m *Manager) register(ctx context.Context, conn Conn, userID string) error {
	if err := conn.Emit(ctx, wire.EventUserConnected, userID); err != nil {
		return err
	}
	logger.DebugCF("realtime", "Registered presence", map[string]any{"user_id": userID})
	return nil
}

func (m *Manager) emit(ctx context.Context, event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Emit(ctx, event, payload); err != nil {
		logger.WarnCF("realtime", "Emit failed", map[string]any{"event": event, "error": err.Error()})
		return err
	}
	return nil
}

// SendMessage emits send_message and returns the client message id the ack
// can be correlated by. Blank content is a no-op returning an empty id.
func (m *Manager) SendMessage(ctx context.Context, matchID, sender, recipient, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	id := m.opts.NewID()
	err := m.emit(ctx, wire.EventSendMessage, wire.SendMessagePayload{
		MatchID:         matchID,
		Sender:          sender,
		Recipient:       recipient,
		Content:         content,
		ClientMessageID: id,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) SendTypingIndicator(ctx context.Context, matchID, userID string, isTyping bool) error {
	return m.emit(ctx, wire.EventTyping, wire.TypingPayload{
		MatchID:  matchID,
		UserID:   userID,
		IsTyping: isTyping,
	})
}

// MarkMessagesAsRead emits exactly one mark_messages_read per call.
func (m *Manager) MarkMessagesAsRead(ctx context.Context, chatID, userID, matchID string) error {
	return m.emit(ctx, wire.EventMarkMessagesRead, wire.MarkReadPayload{
		ChatID:  chatID,
		UserID:  userID,
		MatchID: matchID,
	})
}
