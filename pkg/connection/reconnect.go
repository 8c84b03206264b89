package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connection errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// DefaultAttemptTimeout bounds a single background reconnect attempt.
const DefaultAttemptTimeout = 10 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a caller-driven connect is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates background reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc establishes the connection. It returns nil on success.
type ConnectFunc func(ctx context.Context) error

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Backoff BackoffConfig

	// AttemptTimeout bounds each background attempt.
	AttemptTimeout time.Duration

	// DisableReconnect turns off background reconnection.
	DisableReconnect bool

	Logger zerolog.Logger
}

// callbacks are read under the manager lock and invoked outside it.
type callbacks struct {
	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// Manager drives one client connection and reconnects it after loss.
type Manager struct {
	mu sync.RWMutex

	state         State
	autoReconnect bool
	cb            callbacks

	backoff        *Backoff
	connectFn      ConnectFunc
	attemptTimeout time.Duration
	logger         zerolog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	loopOnce    sync.Once
	reconnectCh chan struct{}
}

// NewManager creates a manager with the default backoff.
func NewManager(connectFn ConnectFunc) *Manager {
	return NewManagerWithConfig(connectFn, ManagerConfig{
		Backoff: BackoffConfig{Jitter: JitterFactor},
		Logger:  zerolog.Nop(),
	})
}

// NewManagerWithConfig creates a manager with custom settings.
func NewManagerWithConfig(connectFn ConnectFunc, cfg ManagerConfig) *Manager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:          StateDisconnected,
		autoReconnect:  !cfg.DisableReconnect,
		backoff:        NewBackoffWithConfig(cfg.Backoff),
		connectFn:      connectFn,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         cfg.Logger,
		ctx:            ctx,
		cancel:         cancel,
		reconnectCh:    make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the connection is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables background reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect performs a caller-driven connect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := m.state
	m.state = StateConnecting
	cb := m.cb
	m.mu.Unlock()
	notifyState(cb, old, StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		if m.transition(StateConnecting, StateDisconnected) {
			m.logger.Debug().Err(err).Msg("connect failed")
		}
		return err
	}

	if !m.transition(StateConnecting, StateConnected) {
		return ErrManagerClosed
	}
	m.backoff.Reset()
	if cb := m.callbacks(); cb.onConnected != nil {
		cb.onConnected()
	}
	return nil
}

// Disconnect marks a deliberate disconnect. Background reconnection still
// follows when enabled.
func (m *Manager) Disconnect() {
	m.lost("disconnect")
}

// NotifyConnectionLost reports a dropped connection.
func (m *Manager) NotifyConnectionLost() {
	m.lost("connection lost")
}

func (m *Manager) lost(reason string) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	next := StateDisconnected
	if m.autoReconnect {
		next = StateReconnecting
	}
	m.state = next
	cb := m.cb
	m.mu.Unlock()

	m.logger.Info().Str("reason", reason).Stringer("state", next).Msg("relay connection down")
	notifyState(cb, StateConnected, next)
	if cb.onDisconnected != nil {
		cb.onDisconnected()
	}
	if next == StateReconnecting {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection goroutine. Extra
// calls are ignored.
func (m *Manager) StartReconnectLoop() {
	m.loopOnce.Do(func() {
		m.wg.Add(1)
		go m.reconnectLoop()
	})
}

// Close stops the manager and waits for the reconnection goroutine.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	cb := m.cb
	m.mu.Unlock()

	notifyState(cb, old, StateClosed)
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

func (m *Manager) attemptReconnect() {
	for {
		if m.State() != StateReconnecting {
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()
		if cb := m.callbacks(); cb.onReconnecting != nil {
			cb.onReconnecting(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if m.State() != StateReconnecting {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.attemptTimeout)
		err := m.connectFn(ctx)
		cancel()

		if err != nil {
			m.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("reconnect failed")
			continue
		}

		if !m.transition(StateReconnecting, StateConnected) {
			return
		}
		m.backoff.Reset()
		m.logger.Info().Int("attempt", attempt).Msg("relay connection restored")
		if cb := m.callbacks(); cb.onConnected != nil {
			cb.onConnected()
		}
		return
	}
}

// transition moves from one state to another, failing if the state was
// changed concurrently (for example by Close).
func (m *Manager) transition(from, to State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = to
	cb := m.cb
	m.mu.Unlock()
	notifyState(cb, from, to)
	return true
}

func (m *Manager) callbacks() callbacks {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cb
}

func notifyState(cb callbacks, old, next State) {
	if cb.onStateChange != nil {
		cb.onStateChange(old, next)
	}
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb.onStateChange = fn
}

// OnConnected sets a callback for successful connects.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb.onConnected = fn
}

// OnDisconnected sets a callback for connection loss.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each reconnect wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb.onReconnecting = fn
}

// BackoffAttempts returns the reconnect attempts since the last success.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
