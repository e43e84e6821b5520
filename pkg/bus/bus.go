package bus

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tinyland-inc/proxima/pkg/logger"
)

// ErrBusClosed is returned when publishing to or subscribing on a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

const defaultBuffer = 100

// EventBus fans every published event out to each subscriber interested in
// its kind. Delivery never waits on a subscriber: when one subscriber's
// buffer is full the event is dropped for that subscriber only.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	done   chan struct{}
	closed atomic.Bool
}

func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(defaultBuffer)
}

func NewEventBusWithBuffer(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &EventBus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

// Subscription receives events of the kinds it asked for, or all kinds when
// none were given.
type Subscription struct {
	id        uint64
	bus       *EventBus
	kinds     map[Kind]struct{}
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Subscribe registers a new subscriber.
func (b *EventBus) Subscribe(kinds ...Kind) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	s := &Subscription{
		bus:  b,
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	return s, nil
}

func (s *Subscription) wants(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Next blocks for the next event. ok is false once the subscription, the
// bus or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	select {
	case ev := <-s.ch:
		return ev, true
	case <-s.done:
		return Event{}, false
	case <-s.bus.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// C exposes the raw delivery channel for select loops. It is never closed;
// pair it with Done.
func (s *Subscription) C() <-chan Event { return s.ch }

// Done is closed when the subscription is closed. Select on the bus's Done
// as well to observe bus shutdown.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped counts events discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. It is idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

// Publish delivers ev to every interested subscriber in subscription order.
// It fails only when the bus is closed or ctx is already done.
func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(ev.Kind) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()
	slices.SortFunc(targets, func(a, b *Subscription) int { return cmp.Compare(a.id, b.id) })

	for _, s := range targets {
		select {
		case <-s.done:
			continue
		default:
		}
		select {
		case s.ch <- ev:
		default:
			n := s.dropped.Add(1)
			logger.WarnCF("bus", "Subscriber is behind, event dropped", map[string]any{
				"subscriber": s.id,
				"kind":       string(ev.Kind),
				"dropped":    n,
			})
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Done is closed when the bus is closed.
func (b *EventBus) Done() <-chan struct{} { return b.done }

func (b *EventBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}
