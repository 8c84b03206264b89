package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// DefaultWebSocketPath is the HTTP path the WebSocket listener upgrades.
const DefaultWebSocketPath = "/n2k"

// WebSocketConfig configures the WebSocket listener.
type WebSocketConfig struct {
	// Address to listen on (e.g., ":3002").
	Address string

	// Path to serve (default DefaultWebSocketPath).
	Path string

	// Bus is the canonical bus sessions attach to.
	Bus *bus.Bus

	// Session holds the settings applied to every session.
	Session SessionConfig

	// Logger for operational logging.
	Logger zerolog.Logger

	OnSession       func(s *Session)
	OnSessionClosed func(s *Session, err error)
}

// WebSocketListener runs relay sessions over WebSocket connections. Each
// inbound text message is a chunk of the line stream; each outbound line is
// sent as one text message without its terminator.
type WebSocketListener struct {
	config   WebSocketConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	group    *sessionGroup

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWebSocketListener creates a WebSocket listener.
func NewWebSocketListener(config WebSocketConfig) (*WebSocketListener, error) {
	if config.Bus == nil {
		return nil, ErrNoBus
	}
	if config.Address == "" {
		return nil, errors.New("websocket address is required")
	}
	if config.Path == "" {
		config.Path = DefaultWebSocketPath
	}
	if config.Session.Format == "" {
		config.Session.Format = n2k.DefaultFormat
	}
	config.Session.Logger = config.Logger

	return &WebSocketListener{
		config: config,
		logger: config.Logger.With().Str("component", "websocket").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		group: newSessionGroup(config.Bus, config.Session, config.OnSession,
			config.OnSessionClosed, config.Logger),
	}, nil
}

// Start binds the address and serves upgrades on the configured path.
func (w *WebSocketListener) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", w.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", w.config.Address, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(w.config.Path, w.handleUpgrade)
	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.listener = listener
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.group.open()
	w.running.Store(true)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("serve failed")
		}
	}()

	w.logger.Info().Str("address", listener.Addr().String()).Str("path", w.config.Path).Msg("listening")
	return nil
}

// Stop closes the listener and every live session.
func (w *WebSocketListener) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return nil
	}
	w.running.Store(false)
	w.cancel()

	err := w.server.Close()
	w.group.closeAll()
	w.wg.Wait()
	w.listener = nil

	w.logger.Info().Msg("stopped")
	return err
}

// Addr returns the listen address, or nil when stopped.
func (w *WebSocketListener) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener != nil {
		return w.listener.Addr()
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (w *WebSocketListener) SessionCount() int {
	return w.group.count()
}

func (w *WebSocketListener) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	if !w.running.Load() {
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	w.group.serve(ctx, newWSStream(conn))
}

// wsStream adapts a WebSocket connection to Stream.
type wsStream struct {
	conn *websocket.Conn
	cur  io.Reader
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

// Read returns bytes from the current text message, advancing to the next
// message when it is exhausted. Binary messages are skipped.
func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			kind, r, err := s.conn.NextReader()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.TextMessage {
				continue
			}
			s.cur = r
		}
		n, err := s.cur.Read(p)
		if errors.Is(err, io.EOF) {
			s.cur = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

// Write sends p as one text message, dropping a trailing newline.
func (s *wsStream) Write(p []byte) (int, error) {
	msg := bytes.TrimSuffix(p, []byte{LineDelimiter})
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func (s *wsStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
