package chat

import (
	"sync"
	"time"

	"github.com/tinyland-inc/proxima/pkg/logger"
)

// SendTracker drives the "sending" indicator. A tracked send clears on its
// ack, on a server message error, or silently after the grace period.
type SendTracker struct {
	grace    time.Duration
	onChange func(sending bool)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewSendTracker calls onChange, if set, whenever Sending flips.
func NewSendTracker(grace time.Duration, onChange func(sending bool)) *SendTracker {
	return &SendTracker{
		grace:    grace,
		onChange: onChange,
		pending:  make(map[string]*time.Timer),
	}
}

func (s *SendTracker) Track(clientID string) {
	s.mu.Lock()
	was := len(s.pending) > 0
	if old, ok := s.pending[clientID]; ok {
		old.Stop()
	}
	s.pending[clientID] = time.AfterFunc(s.grace, func() { s.expire(clientID) })
	s.mu.Unlock()

	if !was {
		s.notify(true)
	}
}

func (s *SendTracker) expire(clientID string) {
	if s.clear(clientID) {
		logger.DebugCF("chat", "Send not acknowledged in time", map[string]any{"client_id": clientID})
	}
}

// Ack clears clientID and reports whether it was still pending.
func (s *SendTracker) Ack(clientID string) bool {
	return s.clear(clientID)
}

func (s *SendTracker) clear(clientID string) bool {
	s.mu.Lock()
	t, ok := s.pending[clientID]
	if ok {
		t.Stop()
		delete(s.pending, clientID)
	}
	now := len(s.pending) > 0
	s.mu.Unlock()

	if ok && !now {
		s.notify(false)
	}
	return ok
}

// Fail clears every pending send.
func (s *SendTracker) Fail() {
	s.mu.Lock()
	was := len(s.pending) > 0
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if was {
		s.notify(false)
	}
}

func (s *SendTracker) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

func (s *SendTracker) notify(sending bool) {
	if s.onChange != nil {
		s.onChange(sending)
	}
}
