// Package chat keeps the client-side view of matches and conversations
// consistent with inbound realtime events.
package chat

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/proxima/pkg/model"
)

var (
	ErrEmptyMessage  = errors.New("message content is empty")
	ErrForeignSender = errors.New("sender is not a chat participant")
)

type thread struct {
	chat    model.Chat
	pending map[string]struct{} // client ids of unacknowledged sends
}

// Store holds one ordered thread per match. Messages are kept sorted by
// timestamp regardless of arrival order.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*thread
}

func NewStore() *Store {
	return &Store{threads: make(map[string]*thread)}
}

// Hydrate replaces the threads for the given chats, typically with the
// result of a REST history fetch.
func (s *Store) Hydrate(chats ...model.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chats {
		c.Messages = slices.Clone(c.Messages)
		sort.SliceStable(c.Messages, func(i, j int) bool {
			return c.Messages[i].Timestamp.Before(c.Messages[j].Timestamp)
		})
		if n := len(c.Messages); n > 0 && c.Messages[n-1].Timestamp.After(c.LastActivity) {
			c.LastActivity = c.Messages[n-1].Timestamp
		}
		s.threads[c.MatchID] = &thread{chat: c, pending: make(map[string]struct{})}
	}
}

func (s *Store) threadFor(matchID string) *thread {
	t, ok := s.threads[matchID]
	if !ok {
		t = &thread{
			chat:    model.Chat{MatchID: matchID},
			pending: make(map[string]struct{}),
		}
		s.threads[matchID] = t
	}
	return t
}

func (t *thread) admit(msg model.Message) error {
	if len(t.chat.Participants) > 0 && !t.chat.HasParticipant(msg.Sender) {
		return ErrForeignSender
	}
	return nil
}

// insert places msg after every message with an equal or earlier timestamp.
func (t *thread) insert(msg model.Message) {
	msgs := t.chat.Messages
	i := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].Timestamp.After(msg.Timestamp)
	})
	t.chat.Messages = slices.Insert(msgs, i, msg)
	if msg.Timestamp.After(t.chat.LastActivity) {
		t.chat.LastActivity = msg.Timestamp
	}
}

func (t *thread) remove(i int) model.Message {
	msg := t.chat.Messages[i]
	t.chat.Messages = slices.Delete(t.chat.Messages, i, i+1)
	return msg
}

// InsertOptimistic records a local send before the server confirms it.
// msg.ClientID identifies it for the later acknowledgement.
func (s *Store) InsertOptimistic(matchID string, msg model.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadFor(matchID)
	if err := t.admit(msg); err != nil {
		return err
	}
	if msg.ClientID != "" && t.indexOf(msg.ClientID) >= 0 {
		// the ack won the race
		return nil
	}
	t.insert(msg)
	if msg.ClientID != "" {
		t.pending[msg.ClientID] = struct{}{}
	}
	return nil
}

func (t *thread) indexOf(clientID string) int {
	for i, m := range t.chat.Messages {
		if m.ClientID == clientID {
			return i
		}
	}
	return -1
}

// contains reports whether a message with the same sender, content and
// timestamp is already stored.
func (t *thread) contains(msg model.Message) bool {
	return slices.ContainsFunc(t.chat.Messages, func(m model.Message) bool {
		return m.Sender == msg.Sender && m.Content == msg.Content && m.Timestamp.Equal(msg.Timestamp)
	})
}

// Add inserts an inbound message.
func (s *Store) Add(matchID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadFor(matchID)
	if err := t.admit(msg); err != nil {
		return err
	}
	t.insert(msg)
	return nil
}

// Ack applies a send confirmation. It replaces the optimistic copy matched
// by client id, or failing that the oldest pending send with the same sender
// and content, and returns that copy's client id. An ack matching nothing is
// inserted as a new message unless it repeats one already stored.
func (s *Store) Ack(matchID string, msg model.Message) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threadFor(matchID)

	idx := -1
	for i, m := range t.chat.Messages {
		_, pending := t.pending[m.ClientID]
		if msg.ClientID != "" && m.ClientID == msg.ClientID {
			if !pending {
				// duplicate ack
				return "", false
			}
			idx = i
			break
		}
		if msg.ClientID == "" && pending && m.Sender == msg.Sender && m.Content == msg.Content {
			idx = i
			break
		}
	}

	if idx < 0 {
		if t.admit(msg) == nil && !t.contains(msg) {
			t.insert(msg)
		}
		return "", false
	}

	old := t.remove(idx)
	delete(t.pending, old.ClientID)
	if msg.ClientID == "" {
		msg.ClientID = old.ClientID
	}
	msg.Read = msg.Read || old.Read
	t.insert(msg)
	return old.ClientID, true
}

// ApplyReadReceipt marks every message not authored by readBy as read and
// returns how many changed. Read never goes back to false.
func (s *Store) ApplyReadReceipt(matchID, readBy string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[matchID]
	if !ok {
		return 0
	}
	changed := 0
	for i := range t.chat.Messages {
		m := &t.chat.Messages[i]
		if m.Sender != readBy && !m.Read {
			m.Read = true
			changed++
		}
	}
	return changed
}

// MarkReadLocal is the local effect of the current user reading the chat.
func (s *Store) MarkReadLocal(matchID, me string) int {
	return s.ApplyReadReceipt(matchID, me)
}

// UnreadCount counts messages from others that me has not read.
func (s *Store) UnreadCount(matchID, me string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[matchID]
	if !ok {
		return 0
	}
	n := 0
	for _, m := range t.chat.Messages {
		if m.Sender != me && !m.Read {
			n++
		}
	}
	return n
}

// IsPending reports whether a local send is still awaiting its ack.
func (s *Store) IsPending(matchID, clientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[matchID]
	if !ok {
		return false
	}
	_, pending := t.pending[clientID]
	return pending
}

// Messages returns a copy of the thread in display order.
func (s *Store) Messages(matchID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[matchID]
	if !ok {
		return nil
	}
	return slices.Clone(t.chat.Messages)
}

// Chat returns a copy of the chat for matchID.
func (s *Store) Chat(matchID string) (model.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[matchID]
	if !ok {
		return model.Chat{}, false
	}
	c := t.chat
	c.Participants = slices.Clone(c.Participants)
	c.Messages = slices.Clone(c.Messages)
	return c, true
}

// LastActivity is the newest message time in the thread.
func (s *Store) LastActivity(matchID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.threads[matchID]; ok {
		return t.chat.LastActivity
	}
	return time.Time{}
}
