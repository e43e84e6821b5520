package chat

import (
	"context"
	"errors"

	"github.com/tinyland-inc/proxima/pkg/bus"
	"github.com/tinyland-inc/proxima/pkg/logger"
)

// Applier folds realtime events into the client state for user Me.
type Applier struct {
	Me      string
	Store   *Store
	Typing  *TypingTracker
	Matches *MatchBook
	Sends   *SendTracker
}

var appliedKinds = []bus.Kind{
	bus.KindNewMatch,
	bus.KindMessageReceived,
	bus.KindMessageSent,
	bus.KindTyping,
	bus.KindMessagesRead,
	bus.KindMessageError,
	bus.KindDisconnect,
}

// Subscribe registers for the event kinds the applier handles.
func (a *Applier) Subscribe(b *bus.EventBus) (*bus.Subscription, error) {
	return b.Subscribe(appliedKinds...)
}

// Run applies events until ctx is done or the bus closes.
func (a *Applier) Run(ctx context.Context, b *bus.EventBus) error {
	sub, err := a.Subscribe(b)
	if err != nil {
		return err
	}
	return a.Consume(ctx, sub)
}

// Consume applies events from sub and closes it on return.
func (a *Applier) Consume(ctx context.Context, sub *bus.Subscription) error {
	defer sub.Close()

	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
		a.Apply(ev)
	}
}

func (a *Applier) Apply(ev bus.Event) {
	switch ev.Kind {
	case bus.KindNewMatch:
		if ev.Match == nil {
			return
		}
		if err := a.Matches.Add(*ev.Match); err != nil {
			logger.WarnCF("chat", "Rejected match", map[string]any{"match_id": ev.MatchID, "error": err.Error()})
		}

	case bus.KindMessageReceived:
		if ev.Message == nil {
			return
		}
		if err := a.Store.Add(ev.MatchID, *ev.Message); err != nil {
			logger.WarnCF("chat", "Rejected message", map[string]any{"match_id": ev.MatchID, "error": err.Error()})
			return
		}
		a.Typing.Set(ev.MatchID, ev.Message.Sender, false)

	case bus.KindMessageSent:
		if ev.Message == nil {
			return
		}
		if clientID, ok := a.Store.Ack(ev.MatchID, *ev.Message); ok && a.Sends != nil {
			a.Sends.Ack(clientID)
		}

	case bus.KindTyping:
		if ev.UserID == a.Me {
			return
		}
		a.Typing.Set(ev.MatchID, ev.UserID, ev.IsTyping)

	case bus.KindMessagesRead:
		n := a.Store.ApplyReadReceipt(ev.MatchID, ev.UserID)
		logger.DebugCF("chat", "Read receipt applied", map[string]any{"match_id": ev.MatchID, "updated": n})

	case bus.KindMessageError:
		if a.Sends != nil {
			a.Sends.Fail()
		}

	case bus.KindDisconnect:
		a.Typing.Reset()
	}
}
