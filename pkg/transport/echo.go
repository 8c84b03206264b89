package transport

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// DefaultEchoWindow is how long a republished message suppresses its echo.
const DefaultEchoWindow = 2 * time.Second

// echoFilter remembers fingerprints of messages a session republished so
// the same message coming back from the bus is not written to the client
// that sent it. Owned by the session goroutine.
type echoFilter struct {
	window time.Duration
	seen   map[uint64]time.Time
}

func newEchoFilter(window time.Duration) *echoFilter {
	if window <= 0 {
		window = DefaultEchoWindow
	}
	return &echoFilter{window: window, seen: make(map[uint64]time.Time)}
}

// remember records msg as republished at now.
func (e *echoFilter) remember(msg *n2k.Message, now time.Time) {
	e.expire(now)
	e.seen[fingerprint(msg.PGN, msg.Source, msg.Destination, msg.Data)] = now
}

// echo reports whether msg matches a fingerprint recorded within the
// window. A match is consumed.
func (e *echoFilter) echo(msg *n2k.Message, now time.Time) bool {
	key := fingerprint(msg.PGN, msg.Source, msg.Destination, msg.Data)
	at, ok := e.seen[key]
	if !ok {
		return false
	}
	delete(e.seen, key)
	return now.Sub(at) <= e.window
}

func (e *echoFilter) expire(now time.Time) {
	for k, at := range e.seen {
		if now.Sub(at) > e.window {
			delete(e.seen, k)
		}
	}
}

func (e *echoFilter) len() int {
	return len(e.seen)
}

func fingerprint(pgn uint32, src, dst uint8, data []byte) uint64 {
	var hdr [6]byte
	binary.BigEndian.PutUint32(hdr[:4], pgn)
	hdr[4] = src
	hdr[5] = dst

	d := xxhash.New()
	_, _ = d.Write(hdr[:])
	_, _ = d.Write(data)
	return d.Sum64()
}
