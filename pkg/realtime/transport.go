package realtime

import (
	"context"

	"github.com/tinyland-inc/proxima/pkg/wire"
)

// Conn is one established transport. Events is closed when the transport
// ends, after which Err reports the cause.
type Conn interface {
	Emit(ctx context.Context, event string, args ...any) error
	Events() <-chan wire.Event
	Err() error
	Close() error
}

// Dialer establishes a Conn, returning only once the server has accepted
// the connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
