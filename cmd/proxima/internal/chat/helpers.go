package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/proxima/cmd/proxima/internal"
	"github.com/tinyland-inc/proxima/pkg/api"
	"github.com/tinyland-inc/proxima/pkg/bus"
	"github.com/tinyland-inc/proxima/pkg/chat"
	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/model"
	"github.com/tinyland-inc/proxima/pkg/realtime"
)

const hydrateTimeout = 15 * time.Second

// conversation is one open chat screen.
type conversation struct {
	me, to, matchID string
	chatID          string

	manager  *realtime.Manager
	rest     *api.Client
	state    *chat.Applier
	debounce *chat.TypingDebouncer
	out      io.Writer
}

func chatCmd(ctx context.Context, opts options) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.SetupLogging(cfg, opts.debug)

	provider, tokens, err := internal.Session(cfg, opts.user)
	if err != nil {
		return err
	}
	me, ok := provider.CurrentUserID()
	if !ok {
		return errors.New("no user id: pass --user or set session.user_id")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewEventBusWithBuffer(cfg.Realtime.EventBuffer)
	defer b.Close()
	manager := internal.NewRealtime(cfg, tokens, b)
	defer manager.Close()

	c := &conversation{
		me:      me,
		to:      opts.to,
		matchID: opts.match,
		manager: manager,
		rest:    api.NewClient(cfg.Server.APIBaseURL, tokens, cfg.ServerTimeout()),
		state: &chat.Applier{
			Me:      me,
			Store:   chat.NewStore(),
			Typing:  chat.NewTypingTracker(),
			Matches: chat.NewMatchBook(),
			Sends:   chat.NewSendTracker(cfg.AckTimeout(), nil),
		},
		out: os.Stdout,
	}
	c.debounce = chat.NewTypingDebouncer(cfg.TypingDebounce(), func(isTyping bool) {
		if err := manager.SendTypingIndicator(ctx, c.matchID, c.me, isTyping); err != nil {
			logger.DebugCF("chat", "Typing indicator not sent", map[string]any{"error": err.Error()})
		}
	})

	c.hydrate(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s %s: ", internal.Logo, me),
		HistoryFile:     filepath.Join(os.TempDir(), ".proxima_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
		Listener: readline.FuncListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
			if key != 0 && key != readline.CharEnter && len(line) > 0 && line[0] != '/' {
				c.debounce.Keystroke()
			}
			return nil, 0, false
		}),
	})
	if err == nil {
		defer rl.Close()
		c.out = rl.Stdout()
	} else {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
	}

	applied, err := c.state.Subscribe(b)
	if err != nil {
		return err
	}
	shown, err := b.Subscribe()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.state.Consume(gctx, applied) })
	g.Go(func() error { return c.render(gctx, shown) })

	lifecycle := realtime.NewLifecycle(manager, provider)
	if err := lifecycle.Foreground(ctx); err != nil {
		return err
	}

	c.printHistory()
	if rl != nil {
		c.interactive(ctx, rl)
	} else {
		c.simple(ctx, os.Stdin)
	}

	c.debounce.Leave()
	stop()
	manager.Close()
	return g.Wait()
}

func (c *conversation) hydrate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	defer cancel()

	history, err := c.rest.GetChatByMatchID(ctx, c.matchID)
	if err != nil {
		logger.WarnCF("chat", "Chat history unavailable", map[string]any{
			"match_id": c.matchID,
			"error":    err.Error(),
		})
		return
	}
	if history.MatchID == "" {
		history.MatchID = c.matchID
	}
	c.chatID = history.ID
	c.state.Store.Hydrate(history)
}

func (c *conversation) printHistory() {
	for _, m := range c.state.Store.Messages(c.matchID) {
		fmt.Fprintln(c.out, formatMessage(m, c.me))
	}
	if n := c.state.Store.UnreadCount(c.matchID, c.me); n > 0 {
		fmt.Fprintf(c.out, "  (%d unread, /read to mark them)\n", n)
	}
}

func (c *conversation) interactive(ctx context.Context, rl *readline.Instance) {
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out, "Goodbye!")
				return
			}
			fmt.Fprintf(c.out, "Error reading input: %v\n", err)
			continue
		}
		if c.handleLine(ctx, line) {
			return
		}
	}
}

func (c *conversation) simple(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil {
		fmt.Fprintf(c.out, "%s %s: ", internal.Logo, c.me)
		if !scanner.Scan() {
			fmt.Fprintln(c.out, "Goodbye!")
			return
		}
		if c.handleLine(ctx, scanner.Text()) {
			return
		}
	}
}

// handleLine runs a slash command or sends the line. It reports whether
// the session should end.
func (c *conversation) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return false
	case input == "/quit" || input == "/exit":
		fmt.Fprintln(c.out, "Goodbye!")
		return true
	case input == "/read":
		c.markRead(ctx)
	case input == "/typing":
		fmt.Fprintln(c.out, formatTyping(c.state.Typing.Typing(c.matchID)))
	case input == "/history":
		c.printHistory()
	case strings.HasPrefix(input, "/"):
		fmt.Fprintf(c.out, "Unknown command %s (try /read, /typing, /history, /quit)\n", input)
	default:
		c.send(ctx, input)
	}
	return false
}

func (c *conversation) send(ctx context.Context, text string) {
	c.debounce.Stop()

	id, err := c.manager.SendMessage(ctx, c.matchID, c.me, c.to, text)
	if err != nil {
		fmt.Fprintf(c.out, "  ! not sent: %v\n", err)
		return
	}
	err = c.state.Store.InsertOptimistic(c.matchID, model.Message{
		ClientID:  id,
		Sender:    c.me,
		Content:   text,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.WarnCF("chat", "Optimistic insert failed", map[string]any{"error": err.Error()})
		return
	}
	if c.state.Store.IsPending(c.matchID, id) {
		c.state.Sends.Track(id)
	}
}

func (c *conversation) markRead(ctx context.Context) {
	n := c.state.Store.MarkReadLocal(c.matchID, c.me)
	if err := c.manager.MarkMessagesAsRead(ctx, c.chatID, c.me, c.matchID); err != nil {
		logger.DebugCF("chat", "Realtime read receipt not sent", map[string]any{"error": err.Error()})
		if c.chatID != "" {
			if err := c.rest.MarkRead(ctx, c.chatID, c.me); err != nil {
				fmt.Fprintf(c.out, "  ! mark read failed: %v\n", err)
				return
			}
		}
	}
	fmt.Fprintf(c.out, "  ✓ %d marked read\n", n)
}

// render prints events for this conversation until ctx ends.
func (c *conversation) render(ctx context.Context, sub *bus.Subscription) error {
	defer sub.Close()
	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return nil
		}
		if line := describe(ev, c.matchID, c.me); line != "" {
			fmt.Fprintln(c.out, line)
		}
	}
}

func formatMessage(m model.Message, me string) string {
	who := m.Sender
	if who == me {
		who = "you"
	}
	mark := ""
	if m.Sender == me && m.Read {
		mark = " ✓✓"
	}
	return fmt.Sprintf("  [%s] %s: %s%s", m.Timestamp.Local().Format("15:04"), who, m.Content, mark)
}

func formatTyping(users []string) string {
	switch len(users) {
	case 0:
		return "  nobody is typing"
	case 1:
		return fmt.Sprintf("  %s is typing…", users[0])
	default:
		return fmt.Sprintf("  %s are typing…", strings.Join(users, ", "))
	}
}

// describe renders ev for matchID, or "" when it is not worth a line.
func describe(ev bus.Event, matchID, me string) string {
	switch ev.Kind {
	case bus.KindConnect:
		return "  * connected"
	case bus.KindDisconnect:
		if ev.Err != nil {
			return fmt.Sprintf("  * disconnected: %v", ev.Err)
		}
		return "  * disconnected"
	case bus.KindConnectError:
		return fmt.Sprintf("  * %v", ev.Err)
	case bus.KindNewMatch:
		if ev.Match != nil {
			return fmt.Sprintf("  * new match %s with %s", ev.Match.ID, ev.Match.Other(me))
		}
	case bus.KindMessageError:
		return fmt.Sprintf("  ! %s", ev.Text)
	}

	if ev.MatchID != matchID {
		return ""
	}
	switch ev.Kind {
	case bus.KindMessageReceived:
		if ev.Message != nil && ev.Message.Sender != me {
			return formatMessage(*ev.Message, me)
		}
	case bus.KindTyping:
		if ev.UserID != me && ev.IsTyping {
			return fmt.Sprintf("  %s is typing…", ev.UserID)
		}
	case bus.KindMessagesRead:
		if ev.UserID != me {
			return fmt.Sprintf("  ✓✓ read by %s", ev.UserID)
		}
	}
	return ""
}
