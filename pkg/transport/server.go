package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/log"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// DefaultPort is the default TCP listen port.
const DefaultPort = 3001

// Server errors.
var (
	// ErrAlreadyRunning indicates Start was called on a running server.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNoBus indicates a server was configured without a bus.
	ErrNoBus = errors.New("bus is required")
)

// ServerConfig configures a relay listener.
type ServerConfig struct {
	// Address to listen on (e.g., ":3001" or "127.0.0.1:0").
	Address string

	// Bus is the canonical bus sessions attach to.
	Bus *bus.Bus

	// Session holds the settings applied to every accepted session.
	Session SessionConfig

	// Logger for operational logging.
	Logger zerolog.Logger

	// Capture receives listener and session capture events (optional).
	Capture log.Logger

	// OnSession is called when a session has been created, before it runs.
	OnSession func(s *Session)

	// OnSessionClosed is called after a session has released its resources.
	OnSessionClosed func(s *Session, err error)
}

// Server accepts TCP clients and runs one Session per connection.
type Server struct {
	config   ServerConfig
	logger   zerolog.Logger
	listener net.Listener

	group *sessionGroup

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a relay listener.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Bus == nil {
		return nil, ErrNoBus
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.Session.Format == "" {
		config.Session.Format = n2k.DefaultFormat
	}
	if config.Session.Capture == nil {
		config.Session.Capture = config.Capture
	}
	config.Session.Logger = config.Logger

	return &Server{
		config: config,
		logger: config.Logger.With().Str("component", "listener").Logger(),
		group:  newSessionGroup(config.Bus, config.Session, config.OnSession, config.OnSessionClosed, config.Logger),
	}, nil
}

// Start binds the listen address and begins accepting connections.
// A bind failure is returned and leaves the server stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.group.open()
	s.running.Store(true)

	s.logger.Info().Str("address", listener.Addr().String()).
		Str("format", string(s.config.Session.Format)).Msg("listening")
	s.logState("", "LISTENING", "")

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Stop closes the listener and every live session, then waits for them to
// release. Stop on a server that is not running is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.cancel()

	err := s.listener.Close()

	s.group.closeAll()
	s.wg.Wait()
	s.listener = nil

	s.logger.Info().Msg("stopped")
	s.logState("LISTENING", "STOPPED", "")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	return nil
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Addr returns the listen address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	return s.group.count()
}

// Sessions returns a snapshot of the live sessions.
func (s *Server) Sessions() []*Session {
	return s.group.snapshot()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Temporary failures such as EMFILE: back off and retry.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.logger.Error().Err(err).Dur("retry_in", delay).Msg("accept failed")
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		delay = 0

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection runs a session over an accepted connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	s.group.serve(s.ctx, conn)
}

func (s *Server) logState(old, state, reason string) {
	if s.config.Capture == nil {
		return
	}
	s.config.Capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		Format:    string(s.config.Session.Format),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityListener,
			OldState: old,
			NewState: state,
			Reason:   reason,
		},
	})
}
