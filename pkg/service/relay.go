package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/discovery"
	"github.com/n2k-relay/n2k-go/pkg/log"
	"github.com/n2k-relay/n2k-go/pkg/metrics"
	"github.com/n2k-relay/n2k-go/pkg/transport"
	"github.com/n2k-relay/n2k-go/pkg/version"
)

// stopTimeout bounds the metrics server shutdown.
const stopTimeout = 5 * time.Second

// Options configures a Relay. All fields are optional.
type Options struct {
	// Bus is the host bus. A private bus is created when nil.
	Bus *bus.Bus

	Logger zerolog.Logger

	// Capture receives capture events in addition to the configured file.
	Capture log.Logger

	// NewAdvertiser replaces the mDNS advertiser.
	NewAdvertiser func(cfg discovery.AdvertiserConfig) Advertiser
}

// Relay is the plugin: it serves the bus to relay clients.
type Relay struct {
	opts    Options
	logger  zerolog.Logger
	bus     *bus.Bus
	ownsBus bool

	mu    sync.RWMutex
	state ServiceState
	cfg   config.Config

	server        *transport.Server
	ws            *transport.WebSocketListener
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	advertiser    Advertiser
	captureFile   *log.FileLogger
}

// New creates a stopped relay.
func New(opts Options) *Relay {
	r := &Relay{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "relay").Logger(),
		bus:    opts.Bus,
		state:  StateIdle,
	}
	if r.bus == nil {
		r.bus = bus.New()
		r.ownsBus = true
	}
	if r.opts.NewAdvertiser == nil {
		r.opts.NewAdvertiser = func(cfg discovery.AdvertiserConfig) Advertiser {
			return discovery.NewAdvertiser(cfg)
		}
	}
	return r
}

// ID returns the plugin id.
func (r *Relay) ID() string { return config.PluginID }

// Name returns the plugin display name.
func (r *Relay) Name() string { return config.PluginName }

// Description returns the plugin description.
func (r *Relay) Description() string { return config.PluginDescription }

// Schema returns the plugin configuration schema.
func (r *Relay) Schema() map[string]any { return config.Schema() }

// UISchema returns the plugin UI schema the host renders with Schema.
func (r *Relay) UISchema() map[string]any { return config.UISchema() }

// Bus returns the bus the relay serves.
func (r *Relay) Bus() *bus.Bus { return r.bus }

// State returns the service state.
func (r *Relay) State() ServiceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Config returns the configuration of the current or last run.
func (r *Relay) Config() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Start brings up every configured listener. When any of them fails to
// bind, the ones already started are torn down, the error is logged and
// returned, and the relay stays stopped.
func (r *Relay) Start(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		r.logger.Error().Err(err).Msg("invalid configuration")
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateStarting || r.state == StateRunning {
		r.logger.Error().Err(ErrAlreadyStarted).Msg("failed to start relay")
		return ErrAlreadyStarted
	}
	r.state = StateStarting
	r.cfg = cfg

	if err := r.startComponents(ctx, cfg); err != nil {
		r.logger.Error().Err(err).Msg("failed to start relay")
		r.stopComponents()
		r.state = StateStopped
		return err
	}

	r.state = StateRunning
	r.logger.Info().
		Str("address", r.server.Addr().String()).
		Str("format", string(cfg.Format)).
		Msg("relay started")
	return nil
}

func (r *Relay) startComponents(ctx context.Context, cfg config.Config) error {
	r.metrics = metrics.New()
	if err := r.metrics.Register(metrics.NewBusCollector(r.bus)); err != nil {
		return fmt.Errorf("register bus collector: %w", err)
	}

	capture, err := r.openCapture(cfg)
	if err != nil {
		return err
	}

	session := transport.SessionConfig{
		Format:        cfg.Format,
		MaxLineLength: cfg.MaxLineLength,
		QueueSize:     cfg.QueueSize,
		WriteTimeout:  cfg.WriteTimeout,
		SuppressEcho:  cfg.SuppressEcho,
		EchoWindow:    cfg.EchoWindow,
		Capture:       capture,
		Observer:      r.metrics,
	}

	r.server, err = transport.NewServer(transport.ServerConfig{
		Address:         cfg.ListenAddress(),
		Bus:             r.bus,
		Session:         session,
		Logger:          r.opts.Logger,
		Capture:         capture,
		OnSession:       r.sessionOpened,
		OnSessionClosed: r.sessionClosed,
	})
	if err != nil {
		return err
	}
	if err := r.server.Start(ctx); err != nil {
		r.server = nil
		return err
	}

	if cfg.WebSocket.Address != "" {
		ws, err := transport.NewWebSocketListener(transport.WebSocketConfig{
			Address:         cfg.WebSocket.Address,
			Path:            cfg.WebSocket.Path,
			Bus:             r.bus,
			Session:         session,
			Logger:          r.opts.Logger,
			OnSession:       r.sessionOpened,
			OnSessionClosed: r.sessionClosed,
		})
		if err != nil {
			return err
		}
		if err := ws.Start(ctx); err != nil {
			return err
		}
		r.ws = ws
	}

	if cfg.Metrics.Address != "" {
		ms := metrics.NewServer(cfg.Metrics.Address, r.metrics, r.opts.Logger)
		if err := ms.Start(); err != nil {
			return err
		}
		r.metricsServer = ms
	}

	if cfg.Discovery.Enabled {
		r.advertise(cfg)
	}
	return nil
}

// openCapture combines the configured capture file with the optional
// host sink and, at trace level, the operational log.
func (r *Relay) openCapture(cfg config.Config) (log.Logger, error) {
	var sinks []log.Logger
	if cfg.Capture.Path != "" {
		f, err := log.NewFileLogger(cfg.Capture.Path)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		r.captureFile = f
		sinks = append(sinks, f)
	}
	if r.opts.Capture != nil {
		sinks = append(sinks, r.opts.Capture)
	}
	if r.opts.Logger.GetLevel() <= zerolog.TraceLevel {
		sinks = append(sinks, log.NewZerologAdapter(r.opts.Logger))
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return log.NewMultiLogger(sinks...), nil
	}
}

// advertise publishes the TCP listener. mDNS is best effort: a failure is
// logged and the relay keeps running.
func (r *Relay) advertise(cfg config.Config) {
	port := cfg.Port
	if tcp, ok := r.server.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	info := discovery.RelayInfo{
		Instance: cfg.Discovery.Instance,
		Port:     port,
		Format:   string(cfg.Format),
		Version:  version.Current,
	}
	if r.ws != nil {
		info.WebSocketPath = cfg.WebSocket.Path
		if info.WebSocketPath == "" {
			info.WebSocketPath = transport.DefaultWebSocketPath
		}
	}

	adv := r.opts.NewAdvertiser(discovery.AdvertiserConfig{Interface: cfg.Discovery.Interface})
	if err := adv.Advertise(info); err != nil {
		r.logger.Warn().Err(err).Msg("mDNS advertisement failed")
		return
	}
	r.advertiser = adv
	r.logger.Info().Int("port", port).Str("service", discovery.ServiceType).Msg("advertising relay")
}

// Stop stops every listener and closes all sessions. Stop on a relay that
// is not running does nothing.
func (r *Relay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning {
		return nil
	}
	r.state = StateStopping
	err := r.stopComponents()
	r.state = StateStopped

	r.logger.Info().Msg("relay stopped")
	return err
}

// Restart stops the relay if it is running and starts it with cfg.
func (r *Relay) Restart(ctx context.Context, cfg config.Config) error {
	if err := r.Stop(); err != nil {
		return err
	}
	return r.Start(ctx, cfg)
}

// Close stops the relay and closes the bus if the relay created it.
func (r *Relay) Close() error {
	err := r.Stop()
	if r.ownsBus {
		r.bus.Close()
	}
	return err
}

// stopComponents tears down in reverse start order. Called with r.mu held.
func (r *Relay) stopComponents() error {
	var errs []error

	if r.advertiser != nil {
		r.advertiser.Stop()
		r.advertiser = nil
	}
	if r.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		errs = append(errs, r.metricsServer.Stop(ctx))
		cancel()
		r.metricsServer = nil
	}
	if r.ws != nil {
		errs = append(errs, r.ws.Stop())
		r.ws = nil
	}
	if r.server != nil {
		errs = append(errs, r.server.Stop())
		r.server = nil
	}
	if r.captureFile != nil {
		errs = append(errs, r.captureFile.Close())
		r.captureFile = nil
	}
	return errors.Join(errs...)
}

func (r *Relay) sessionOpened(s *transport.Session) {
	r.logger.Info().
		Str("session", s.ID()).
		Str("remote", s.RemoteAddr()).
		Str("format", string(s.Format())).
		Msg("client connected")
}

func (r *Relay) sessionClosed(s *transport.Session, err error) {
	ev := r.logger.Info()
	if err != nil {
		ev = r.logger.Warn().Err(err)
	}
	ev.Str("session", s.ID()).Str("remote", s.RemoteAddr()).Msg("client disconnected")
}

// Addr returns the TCP listen address, or nil when stopped.
func (r *Relay) Addr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.server == nil {
		return nil
	}
	return r.server.Addr()
}

// WebSocketAddr returns the WebSocket listen address, or nil.
func (r *Relay) WebSocketAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ws == nil {
		return nil
	}
	return r.ws.Addr()
}

// MetricsAddr returns the metrics listen address, or nil.
func (r *Relay) MetricsAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.metricsServer == nil {
		return nil
	}
	return r.metricsServer.Addr()
}

// Metrics returns the collectors of the current or last run.
func (r *Relay) Metrics() *metrics.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

// SessionCount returns the number of connected clients on all listeners.
func (r *Relay) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	if r.server != nil {
		n += r.server.SessionCount()
	}
	if r.ws != nil {
		n += r.ws.SessionCount()
	}
	return n
}
