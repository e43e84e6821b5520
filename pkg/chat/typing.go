package chat

import (
	"slices"
	"sync"
	"time"
)

// TypingTracker is the set of currently typing users per match.
type TypingTracker struct {
	mu     sync.RWMutex
	typing map[string]map[string]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[string]map[string]struct{})}
}

func (t *TypingTracker) Set(matchID, userID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.typing[matchID]
	if !isTyping {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, matchID)
		}
		return
	}
	if users == nil {
		users = make(map[string]struct{})
		t.typing[matchID] = users
	}
	users[userID] = struct{}{}
}

func (t *TypingTracker) IsTyping(matchID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.typing[matchID][userID]
	return ok
}

// Typing returns the sorted typing users in matchID.
func (t *TypingTracker) Typing(matchID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.typing[matchID]))
	for u := range t.typing[matchID] {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// Reset forgets every indicator, e.g. when the channel drops.
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	t.typing = make(map[string]map[string]struct{})
	t.mu.Unlock()
}

// TypingDebouncer turns keystrokes into start/stop typing signals. The first
// keystroke emits start; each keystroke pushes the automatic stop out by
// timeout.
type TypingDebouncer struct {
	timeout time.Duration
	emit    func(isTyping bool)

	// emitMu spans a state change and its signal so signals leave in order.
	emitMu sync.Mutex

	mu     sync.Mutex
	typing bool
	left   bool
	seq    uint64
	timer  *time.Timer
}

func NewTypingDebouncer(timeout time.Duration, emit func(isTyping bool)) *TypingDebouncer {
	return &TypingDebouncer{timeout: timeout, emit: emit}
}

func (d *TypingDebouncer) Keystroke() {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	if d.left {
		d.mu.Unlock()
		return
	}
	start := !d.typing
	d.typing = true
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.timeout, func() { d.expire(seq) })
	d.mu.Unlock()

	if start {
		d.emit(true)
	}
}

func (d *TypingDebouncer) expire(seq uint64) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	if seq != d.seq || !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(false)
}

// Stop ends typing now, e.g. after a send. It emits stop only if typing.
func (d *TypingDebouncer) Stop() {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	was := d.typing
	d.typing = false
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if was {
		d.emit(false)
	}
}

// Leave is Stop for a closed chat screen; later keystrokes are ignored.
func (d *TypingDebouncer) Leave() {
	d.mu.Lock()
	d.left = true
	d.mu.Unlock()
	d.Stop()
}

func (d *TypingDebouncer) IsTyping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}
