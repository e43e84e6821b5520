package realtime

import (
	"context"
	"sync"

	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/session"
)

// Lifecycle feeds app foreground/background transitions into a Manager.
type Lifecycle struct {
	manager  *Manager
	sessions session.Provider

	mu         sync.Mutex
	foreground bool
}

func NewLifecycle(manager *Manager, sessions session.Provider) *Lifecycle {
	return &Lifecycle{manager: manager, sessions: sessions}
}

// Foreground connects for the current user, or re-registers when already
// connected. Without a logged-in user it does nothing.
func (l *Lifecycle) Foreground(ctx context.Context) error {
	l.mu.Lock()
	l.foreground = true
	l.mu.Unlock()

	userID, ok := l.sessions.CurrentUserID()
	if !ok {
		logger.DebugC("realtime", "Foreground without a session")
		return nil
	}
	return l.manager.Connect(ctx, userID)
}

// Background leaves the transport to drop on its own.
func (l *Lifecycle) Background() {
	l.mu.Lock()
	l.foreground = false
	l.mu.Unlock()
	logger.DebugC("realtime", "Moved to background")
}

func (l *Lifecycle) IsForeground() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.foreground
}

// ShouldNotify reports whether an incoming push should be shown because the
// live channel cannot deliver it.
func (l *Lifecycle) ShouldNotify() bool {
	return !l.IsForeground() || !l.manager.IsConnected()
}
