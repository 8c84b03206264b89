package n2k

import (
	"errors"
	"sync"
	"time"
)

// Fast-packet constants.
const (
	// FrameSize is the payload capacity of a single CAN frame.
	FrameSize = 8

	// MaxFastPacketSize is the largest fast-packet payload (6 + 31*7).
	MaxFastPacketSize = 223

	// DefaultAssemblyTimeout discards partial sequences older than this.
	DefaultAssemblyTimeout = 750 * time.Millisecond

	padByte = 0xFF
)

// ErrPayloadTooLarge indicates a payload that does not fit in a fast packet.
var ErrPayloadTooLarge = errors.New("payload exceeds fast-packet capacity")

// fastPacketPGNs lists global PGNs transmitted as fast packets.
var fastPacketPGNs = map[uint32]struct{}{
	65240: {}, 126208: {}, 126464: {}, 126720: {}, 126983: {}, 126984: {},
	126985: {}, 126986: {}, 126987: {}, 126988: {}, 126996: {}, 126998: {},
	127233: {}, 127237: {}, 127489: {}, 127490: {}, 127491: {}, 127494: {},
	127495: {}, 127496: {}, 127497: {}, 127498: {}, 127503: {}, 127504: {},
	127506: {}, 127507: {}, 127509: {}, 127510: {}, 127511: {}, 127512: {},
	127513: {}, 127514: {}, 128275: {}, 128520: {}, 129029: {}, 129038: {},
	129039: {}, 129040: {}, 129041: {}, 129044: {}, 129045: {}, 129284: {},
	129285: {}, 129301: {}, 129302: {}, 129538: {}, 129540: {}, 129541: {},
	129542: {}, 129545: {}, 129547: {}, 129549: {}, 129551: {}, 129556: {},
	129792: {}, 129793: {}, 129794: {}, 129795: {}, 129796: {}, 129797: {},
	129798: {}, 129800: {}, 129801: {}, 129802: {}, 129803: {}, 129804: {},
	129805: {}, 129806: {}, 129807: {}, 129808: {}, 129809: {}, 129810: {},
	130052: {}, 130053: {}, 130054: {}, 130060: {}, 130061: {}, 130064: {},
	130065: {}, 130066: {}, 130067: {}, 130068: {}, 130069: {}, 130070: {},
	130071: {}, 130072: {}, 130073: {}, 130074: {}, 130320: {}, 130321: {},
	130322: {}, 130323: {}, 130324: {}, 130567: {}, 130569: {}, 130570: {},
	130571: {}, 130573: {}, 130574: {}, 130575: {}, 130576: {}, 130577: {},
	130578: {}, 130579: {}, 130580: {}, 130581: {}, 130583: {}, 130584: {},
	130586: {},
}

// IsFastPacket reports whether pgn is transmitted as a fast packet.
// The proprietary range 130816-131071 is always fast-packet.
func IsFastPacket(pgn uint32) bool {
	if pgn >= 130816 && pgn <= 131071 {
		return true
	}
	_, ok := fastPacketPGNs[pgn]
	return ok
}

// SplitFastPacket splits a payload into eight-byte CAN frames. Payloads of
// at most eight bytes for non fast-packet PGNs are returned as a single
// unpadded frame. seq is the 3-bit sequence counter shared by all frames.
func SplitFastPacket(pgn uint32, data []byte, seq uint8) ([][]byte, error) {
	if len(data) <= FrameSize && !IsFastPacket(pgn) {
		return [][]byte{append([]byte(nil), data...)}, nil
	}
	if len(data) > MaxFastPacketSize {
		return nil, ErrPayloadTooLarge
	}

	seqBits := (seq & 0x7) << 5
	var frames [][]byte

	first := make([]byte, 2, FrameSize)
	first[0] = seqBits
	first[1] = byte(len(data))
	n := min(6, len(data))
	first = append(first, data[:n]...)
	frames = append(frames, pad(first))
	data = data[n:]

	for counter := byte(1); len(data) > 0; counter++ {
		frame := make([]byte, 1, FrameSize)
		frame[0] = seqBits | counter
		n := min(7, len(data))
		frame = append(frame, data[:n]...)
		frames = append(frames, pad(frame))
		data = data[n:]
	}
	return frames, nil
}

func pad(frame []byte) []byte {
	for len(frame) < FrameSize {
		frame = append(frame, padByte)
	}
	return frame
}

// Assembler reassembles fast-packet sequences into complete messages.
// Sequences are tracked per (PGN, source). It is safe for concurrent use,
// though each relay session owns its own instance.
type Assembler struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	pending map[assemblyKey]*assembly
}

type assemblyKey struct {
	pgn    uint32
	source uint8
}

type assembly struct {
	seq     byte
	next    byte
	total   int
	data    []byte
	started time.Time
}

// NewAssembler creates an assembler with DefaultAssemblyTimeout.
func NewAssembler() *Assembler {
	return &Assembler{
		timeout: DefaultAssemblyTimeout,
		now:     time.Now,
		pending: make(map[assemblyKey]*assembly),
	}
}

// Add feeds one CAN frame. Messages whose PGN is not fast-packet are
// returned immediately. For fast-packet PGNs Add returns nil until the
// final frame of the sequence arrives, then returns the complete message.
// Out-of-order frames discard the partial sequence.
func (a *Assembler) Add(msg *Message) *Message {
	if !IsFastPacket(msg.PGN) || len(msg.Data) == 0 {
		return msg
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	key := assemblyKey{pgn: msg.PGN, source: msg.Source}
	seq := msg.Data[0] >> 5
	counter := msg.Data[0] & 0x1F

	if counter == 0 {
		if len(msg.Data) < 2 {
			delete(a.pending, key)
			return nil
		}
		total := int(msg.Data[1])
		chunk := msg.Data[2:]
		if len(chunk) >= total {
			delete(a.pending, key)
			return complete(msg, chunk[:total])
		}
		a.pending[key] = &assembly{
			seq:     seq,
			next:    1,
			total:   total,
			data:    append(make([]byte, 0, total), chunk...),
			started: now,
		}
		return nil
	}

	p, ok := a.pending[key]
	if !ok {
		return nil
	}
	if p.seq != seq || p.next != counter || now.Sub(p.started) > a.timeout {
		delete(a.pending, key)
		return nil
	}

	p.data = append(p.data, msg.Data[1:]...)
	p.next++
	if len(p.data) >= p.total {
		delete(a.pending, key)
		return complete(msg, p.data[:p.total])
	}
	return nil
}

// Pending returns the number of partial sequences being tracked.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func complete(last *Message, data []byte) *Message {
	out := *last
	out.Data = append([]byte(nil), data...)
	out.Length = len(out.Data)
	return &out
}
