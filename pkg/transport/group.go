package transport

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
)

// sessionGroup tracks the live sessions of one listener.
type sessionGroup struct {
	bus      *bus.Bus
	cfg      SessionConfig
	onOpen   func(*Session)
	onClosed func(*Session, error)
	logger   zerolog.Logger

	mu        sync.RWMutex
	accepting bool
	sessions  map[*Session]struct{}
}

func newSessionGroup(b *bus.Bus, cfg SessionConfig, onOpen func(*Session),
	onClosed func(*Session, error), logger zerolog.Logger) *sessionGroup {
	return &sessionGroup{
		bus:      b,
		cfg:      cfg,
		onOpen:   onOpen,
		onClosed: onClosed,
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// open allows new sessions to register.
func (g *sessionGroup) open() {
	g.mu.Lock()
	g.accepting = true
	g.mu.Unlock()
}

// closeAll refuses new sessions and closes every live one. Each session's
// bus subscription is released before closeAll returns.
func (g *sessionGroup) closeAll() {
	g.mu.Lock()
	g.accepting = false
	live := make([]*Session, 0, len(g.sessions))
	for sess := range g.sessions {
		live = append(live, sess)
	}
	g.mu.Unlock()

	for _, sess := range live {
		sess.Close()
	}
}

// serve runs a session over stream until it ends.
func (g *sessionGroup) serve(ctx context.Context, stream Stream) {
	sess, err := NewSession(stream, g.bus, g.cfg)
	if err != nil {
		g.logger.Error().Err(err).Msg("session setup failed")
		stream.Close()
		return
	}

	g.mu.Lock()
	if !g.accepting {
		g.mu.Unlock()
		sess.Close()
		return
	}
	g.sessions[sess] = struct{}{}
	g.mu.Unlock()

	if g.onOpen != nil {
		g.onOpen(sess)
	}

	runErr := sess.Run(ctx)

	g.mu.Lock()
	delete(g.sessions, sess)
	g.mu.Unlock()

	if g.onClosed != nil {
		g.onClosed(sess, runErr)
	}
}

func (g *sessionGroup) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

func (g *sessionGroup) snapshot() []*Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Session, 0, len(g.sessions))
	for sess := range g.sessions {
		out = append(out, sess)
	}
	return out
}
