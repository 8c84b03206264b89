package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// fastPacketSeq is the rolling 3-bit fast-packet sequence counter.
var fastPacketSeq atomic.Uint32

// canFrames splits msg into the CAN frames a frame-based dialect carries.
func canFrames(msg *n2k.Message) ([][]byte, error) {
	seq := uint8(fastPacketSeq.Add(1) & 0x7)
	frames, err := n2k.SplitFastPacket(msg.PGN, msg.Data, seq)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func canID(msg *n2k.Message) uint32 {
	return n2k.EncodeCANID(n2k.Header{
		PGN:         msg.PGN,
		Priority:    msg.Priority,
		Source:      msg.Source,
		Destination: msg.Destination,
	})
}

// frameMessage builds the canonical message for a single CAN frame.
func frameMessage(id uint32, data []byte, ts string) *n2k.Message {
	h := n2k.DecodeCANID(id)
	return &n2k.Message{
		PGN:         h.PGN,
		Priority:    h.Priority,
		Source:      h.Source,
		Destination: h.Destination,
		Timestamp:   ts,
		Data:        data,
		Length:      len(data),
	}
}

// spacedHex renders data as space separated two-digit hex.
func spacedHex(data []byte, upper bool) string {
	tokens := n2k.HexTokens(data)
	s := strings.Join(tokens, " ")
	if upper {
		s = strings.ToUpper(s)
	}
	return s
}

// parseSpacedHex parses whitespace separated hex byte tokens.
func parseSpacedHex(fields []string) ([]byte, error) {
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		if len(f) != 2 {
			return nil, fmt.Errorf("%w: byte token %q", ErrMalformed, f)
		}
		b, err := hex.DecodeString(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out = append(out, b[0])
	}
	return out, nil
}

// parseCANID parses a hexadecimal 29-bit identifier.
func parseCANID(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 8 {
		return 0, fmt.Errorf("%w: can id %q", ErrMalformed, s)
	}
	var id uint32
	if _, err := fmt.Sscanf(s, "%x", &id); err != nil {
		return 0, fmt.Errorf("%w: can id %q", ErrMalformed, s)
	}
	if id > 0x1FFFFFFF {
		return 0, fmt.Errorf("%w: can id %q exceeds 29 bits", ErrMalformed, s)
	}
	return id, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
