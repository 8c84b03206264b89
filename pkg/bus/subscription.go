package bus

import (
	"sync"
	"sync/atomic"
)

// Subscription is one subscriber's attachment to the bus.
type Subscription struct {
	id     uint64
	kind   Kind
	policy OverflowPolicy
	bus    *Bus

	events chan Event

	overflow     chan struct{}
	overflowOnce sync.Once
	overflowed   atomic.Bool

	dropped atomic.Uint64
}

// ID returns the subscription identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Kind returns the subscribed event kind.
func (s *Subscription) Kind() Kind {
	return s.kind
}

// Events returns the delivery channel. It is closed on release.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Overflow is closed when an OverflowDisconnect subscription's queue fills.
func (s *Subscription) Overflow() <-chan struct{} {
	return s.overflow
}

// Dropped returns the number of events discarded for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close releases the subscription. It is equivalent to Bus.Unsubscribe.
func (s *Subscription) Close() error {
	return s.bus.Unsubscribe(s)
}

// offer enqueues ev without blocking. Called with the bus read lock held.
func (s *Subscription) offer(ev Event) bool {
	if s.overflowed.Load() {
		s.dropped.Add(1)
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
	}

	s.dropped.Add(1)
	if s.policy == OverflowDisconnect {
		s.overflowed.Store(true)
		s.overflowOnce.Do(func() { close(s.overflow) })
	}
	return false
}
