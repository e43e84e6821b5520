package chat

import (
	"errors"
	"sync"

	"github.com/tinyland-inc/proxima/pkg/model"
)

var ErrInvalidMatch = errors.New("match liked by a non-participant")

// MatchBook is the set of known matches in arrival order.
type MatchBook struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]model.Match
}

func NewMatchBook() *MatchBook {
	return &MatchBook{byID: make(map[string]model.Match)}
}

// Add stores m, replacing an earlier copy with the same id. A known match
// stays seen once it has been marked seen locally.
func (b *MatchBook) Add(m model.Match) error {
	if !m.Valid() {
		return ErrInvalidMatch
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	old, ok := b.byID[m.ID]
	if !ok {
		b.order = append(b.order, m.ID)
	}
	m.Seen = m.Seen || old.Seen
	b.byID[m.ID] = m
	return nil
}

func (b *MatchBook) Get(id string) (model.Match, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.byID[id]
	return m, ok
}

// MarkSeen is the one local mutation a match allows.
func (b *MatchBook) MarkSeen(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.byID[id]
	if !ok {
		return false
	}
	m.Seen = true
	b.byID[id] = m
	return true
}

func (b *MatchBook) StatusFor(id, userID string) model.MatchStatus {
	m, ok := b.Get(id)
	if !ok {
		return model.MatchNone
	}
	return m.StatusFor(userID)
}

func (b *MatchBook) List() []model.Match {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Match, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

func (b *MatchBook) Unseen() []model.Match {
	var out []model.Match
	for _, m := range b.List() {
		if !m.Seen {
			out = append(out, m)
		}
	}
	return out
}
