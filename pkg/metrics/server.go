package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Path is where the scrape endpoint is served.
const Path = "/metrics"

// Handler returns the scrape handler for m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves the scrape endpoint.
type Server struct {
	address string
	metrics *Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a scrape server bound to address when started.
func NewServer(address string, m *Metrics, logger zerolog.Logger) *Server {
	return &Server{
		address: address,
		metrics: m,
		logger:  logger.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("metrics server already running")
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(Path, s.metrics.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.listener = listener
	s.done = make(chan struct{})

	srv, done := s.server, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("serve failed")
		}
	}()
	s.logger.Info().Str("address", listener.Addr().String()).Msg("serving metrics")
	return nil
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	<-s.done
	s.server, s.listener = nil, nil
	return err
}
