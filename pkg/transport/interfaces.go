package transport

import (
	"context"
	"net"
	"time"
)

// Listener is a relay listener.
// Implemented by Server and WebSocketListener.
type Listener interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop closes the listener and all of its sessions.
	Stop() error

	// Addr returns the listen address, or nil when stopped.
	Addr() net.Addr

	// SessionCount returns the number of live sessions.
	SessionCount() int
}

// LineConnection is a line-oriented client connection.
// Implemented by ClientConn.
type LineConnection interface {
	Send(lines ...string) error
	Receive(timeout time.Duration) (string, error)
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Listener       = (*Server)(nil)
	_ Listener       = (*WebSocketListener)(nil)
	_ LineConnection = (*ClientConn)(nil)
	_ Stream         = net.Conn(nil)
	_ Stream         = (*wsStream)(nil)
)
