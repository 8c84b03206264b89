package bus

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Bus errors.
var (
	// ErrClosed indicates the bus has been closed.
	ErrClosed = errors.New("bus closed")

	// ErrSubscriptionNotFound indicates an unknown or released subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// DefaultQueueSize is the per-subscription queue length.
const DefaultQueueSize = 256

// OverflowPolicy decides what happens when a subscriber's queue is full.
type OverflowPolicy uint8

const (
	// OverflowDisconnect stops delivery and closes the Overflow channel.
	OverflowDisconnect OverflowPolicy = iota

	// OverflowDrop discards the event and counts it.
	OverflowDrop
)

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	// QueueSize is the event queue capacity (default DefaultQueueSize).
	QueueSize int

	// Overflow is the full-queue policy (default OverflowDisconnect).
	Overflow OverflowPolicy
}

// Bus is a publish/subscribe hub for canonical events.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind]map[uint64]*Subscription
	nextID uint64
	closed bool

	published atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Kind]map[uint64]*Subscription),
	}
}

// Subscribe attaches a new subscriber to events of the given kind.
func (b *Bus) Subscribe(kind Kind, opts SubscribeOptions) (*Subscription, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	sub := &Subscription{
		id:       b.nextID,
		kind:     kind,
		policy:   opts.Overflow,
		bus:      b,
		events:   make(chan Event, opts.QueueSize),
		overflow: make(chan struct{}),
	}

	byID, ok := b.subs[kind]
	if !ok {
		byID = make(map[uint64]*Subscription)
		b.subs[kind] = byID
	}
	byID[sub.id] = sub
	return sub, nil
}

// Unsubscribe detaches sub and closes its event channel.
// Returns ErrSubscriptionNotFound if sub was already released.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID := b.subs[sub.kind]
	if _, ok := byID[sub.id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(byID, sub.id)
	if len(byID) == 0 {
		delete(b.subs, sub.kind)
	}
	close(sub.events)
	return nil
}

// Publish delivers ev to every subscriber of ev.Kind without blocking and
// returns the number of subscribers that accepted it.
func (b *Bus) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	b.published.Add(1)

	delivered := 0
	for _, sub := range b.subs[ev.Kind] {
		if sub.offer(ev) {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of live subscriptions for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Published returns the total number of events published.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Close releases every subscription. Subsequent Subscribe calls fail and
// Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, byID := range b.subs {
		for _, sub := range byID {
			close(sub.events)
		}
	}
	b.subs = make(map[Kind]map[uint64]*Subscription)
}
