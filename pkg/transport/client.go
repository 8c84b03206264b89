package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client errors.
var (
	// ErrConnectionClosed indicates an operation on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)

// ClientConfig configures a relay client.
type ClientConfig struct {
	// ConnectTimeout is the dial timeout (default: 10s).
	ConnectTimeout time.Duration

	// WriteTimeout bounds each line write (0 = no deadline).
	WriteTimeout time.Duration

	// MaxLineLength bounds received lines (0 = unbounded).
	MaxLineLength int
}

// Client dials relay listeners. Used by the console and by tests.
type Client struct {
	config ClientConfig
}

// NewClient creates a relay client.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	return &Client{config: config}
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return &ClientConn{
		conn:    conn,
		reader:  NewLineReaderWithMax(conn, c.config.MaxLineLength),
		writer:  NewLineWriter(conn, c.config.WriteTimeout),
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn is a line-oriented connection to a relay.
type ClientConn struct {
	conn    net.Conn
	reader  *LineReader
	writer  *LineWriter
	closeCh chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes lines, each terminated by '\n'.
func (c *ClientConn) Send(lines ...string) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.writer.WriteLines(lines...)
}

// SendRaw writes bytes unframed. Useful to exercise chunk boundaries.
func (c *ClientConn) SendRaw(chunk []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	_, err := c.conn.Write(chunk)
	return err
}

// Receive returns the next line, waiting at most timeout (0 = forever).
func (c *ClientConn) Receive(timeout time.Duration) (string, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return "", ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return c.reader.ReadLine()
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
