package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults.
const (
	// InitialBackoff is the first reconnection delay.
	InitialBackoff = 500 * time.Millisecond

	// MaxBackoff caps the reconnection delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the growth factor between attempts.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.2
)

// BackoffConfig customizes a Backoff. Zero fields take the defaults.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff computes exponential delays with jitter. It is safe for
// concurrent use.
type Backoff struct {
	mu sync.Mutex

	cfg      BackoffConfig
	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff with the default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig creates a backoff with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{
		cfg:     cfg,
		current: cfg.Initial,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the jittered delay for this attempt and advances.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.jittered(b.current)
	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.cfg.Multiplier), b.cfg.Max)
	return delay
}

// Peek returns a jittered delay for the current step without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jittered(b.current)
}

// Reset returns to the initial delay. Call it after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of Next calls since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay of the next attempt, without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*b.rng.Float64())
}

// Sequence returns the base delays for cfg from the initial value up to
// and including the first capped one.
func Sequence(cfg BackoffConfig) []time.Duration {
	cfg = cfg.withDefaults()
	var seq []time.Duration
	for d := cfg.Initial; ; d = time.Duration(float64(d) * cfg.Multiplier) {
		if d >= cfg.Max {
			return append(seq, cfg.Max)
		}
		seq = append(seq, d)
	}
}
