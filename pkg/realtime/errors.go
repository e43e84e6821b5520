package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by outbound calls while no transport is up.
	ErrNotConnected = errors.New("realtime channel not connected")
	// ErrNoUser is returned by Connect without a user id.
	ErrNoUser = errors.New("user id required")
	// ErrServerDisconnect means the server closed the namespace or transport.
	ErrServerDisconnect = errors.New("server closed the connection")
)

// ConnectError reports one failed attempt to establish the transport.
type ConnectError struct {
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect attempt %d: %v", e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// RemoteMessageError is a server-reported failure of a send or read action.
type RemoteMessageError struct {
	Message string
}

func (e *RemoteMessageError) Error() string {
	return "server rejected message: " + e.Message
}
