package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEventBus_FanOutToMultipleSubscribers(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	s1, _ := b.Subscribe()
	s2, _ := b.Subscribe(KindTyping)

	ctx := context.Background()
	if err := b.Publish(ctx, Event{Kind: KindTyping, MatchID: "m1"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	for i, s := range []*Subscription{s1, s2} {
		ev, ok := s.Next(ctx)
		if !ok {
			t.Fatalf("subscriber %d: expected event", i)
		}
		if ev.MatchID != "m1" {
			t.Errorf("subscriber %d: got match %q, want m1", i, ev.MatchID)
		}
	}
}

func TestEventBus_KindFilter(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	s, _ := b.Subscribe(KindNewMatch)
	ctx := context.Background()
	_ = b.Publish(ctx, Event{Kind: KindTyping})
	_ = b.Publish(ctx, Event{Kind: KindNewMatch, MatchID: "m2"})

	ev, ok := s.Next(ctx)
	if !ok || ev.Kind != KindNewMatch {
		t.Errorf("expected only new_match, got %+v", ev)
	}
	select {
	case extra := <-s.C():
		t.Errorf("unexpected extra event %+v", extra)
	default:
	}
}

func TestEventBus_PreservesOrder(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	s, _ := b.Subscribe()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = b.Publish(ctx, Event{Kind: KindMessageReceived, MatchID: id})
	}
	for _, want := range []string{"a", "b", "c"} {
		ev, _ := s.Next(ctx)
		if ev.MatchID != want {
			t.Errorf("order: got %q, want %q", ev.MatchID, want)
		}
	}
}

func TestEventBus_ClosedSubscriptionDoesNotBlock(t *testing.T) {
	b := NewEventBusWithBuffer(1)
	defer b.Close()

	s, _ := b.Subscribe()
	s.Close()
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for range 3 {
		if err := b.Publish(ctx, Event{Kind: KindTyping}); err != nil {
			t.Fatalf("Publish() after unsubscribe: %v", err)
		}
	}
	if b.Subscribers() != 0 {
		t.Errorf("subscribers: got %d, want 0", b.Subscribers())
	}
}

func TestEventBus_StalledSubscriberDoesNotStarveOthers(t *testing.T) {
	b := NewEventBusWithBuffer(1)
	defer b.Close()

	stalled, _ := b.Subscribe()
	healthy, _ := b.Subscribe()

	for _, id := range []string{"a", "b", "c"} {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		err := b.Publish(ctx, Event{Kind: KindTyping, MatchID: id})
		cancel()
		if err != nil {
			t.Fatalf("Publish(%s) error: %v", id, err)
		}
		ev, ok := healthy.Next(context.Background())
		if !ok || ev.MatchID != id {
			t.Fatalf("healthy subscriber: got %+v, want match %s", ev, id)
		}
	}

	if got := stalled.Dropped(); got != 2 {
		t.Errorf("stalled subscriber dropped %d events, want 2", got)
	}
	if got := healthy.Dropped(); got != 0 {
		t.Errorf("healthy subscriber dropped %d events, want 0", got)
	}
	ev, _ := stalled.Next(context.Background())
	if ev.MatchID != "a" {
		t.Errorf("stalled subscriber kept %q, want the first event", ev.MatchID)
	}
}

func TestEventBus_PublishRespectsCancelledContext(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	s, _ := b.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Publish(ctx, Event{Kind: KindTyping}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	select {
	case ev := <-s.C():
		t.Errorf("unexpected delivery %+v", ev)
	default:
	}
}

func TestEventBus_Close(t *testing.T) {
	b := NewEventBus()
	s, _ := b.Subscribe()
	b.Close()
	b.Close()

	if err := b.Publish(context.Background(), Event{Kind: KindTyping}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if _, ok := s.Next(context.Background()); ok {
		t.Error("Next should report closed bus")
	}
	if _, err := b.Subscribe(); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed on subscribe, got %v", err)
	}
}
