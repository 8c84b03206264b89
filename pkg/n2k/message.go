package n2k

import (
	"errors"
	"fmt"
	"strings"
)

// Address constants.
const (
	// BroadcastAddress addresses every node on the bus.
	BroadcastAddress uint8 = 255

	// DefaultPriority is used when a dialect does not carry a priority.
	DefaultPriority uint8 = 2

	// MaxPriority is the highest (numerically) valid priority.
	MaxPriority uint8 = 7

	// MaxPGN is the largest PGN representable in a 29-bit CAN identifier.
	MaxPGN uint32 = 0x3FFFF
)

// Message errors.
var (
	// ErrLengthMismatch indicates Length disagrees with the payload size.
	ErrLengthMismatch = errors.New("declared length does not match payload")

	// ErrInvalidPGN indicates a PGN outside the 18-bit range.
	ErrInvalidPGN = errors.New("invalid PGN")

	// ErrInvalidPriority indicates a priority above 7.
	ErrInvalidPriority = errors.New("invalid priority")
)

// Message is the canonical representation of one NMEA 2000 message.
type Message struct {
	// PGN identifies the message type.
	PGN uint32

	// Priority is the bus priority (0 highest, 7 lowest).
	Priority uint8

	// Source is the sender's bus address.
	Source uint8

	// Destination is the addressee (255 for broadcast).
	Destination uint8

	// Timestamp is the ISO-8601 receive time, empty when the dialect has none.
	Timestamp string

	// Data is the message payload.
	Data []byte

	// Length is the declared payload length.
	Length int
}

// Validate checks the message invariants.
func (m *Message) Validate() error {
	if m.PGN > MaxPGN {
		return fmt.Errorf("%w: %d", ErrInvalidPGN, m.PGN)
	}
	if m.Priority > MaxPriority {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, m.Priority)
	}
	if m.Length != len(m.Data) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, m.Length, len(m.Data))
	}
	return nil
}

// Frame is a structured raw frame as delivered by the bus, before any
// client-facing formatting. Data holds hex byte tokens exactly as the
// producer rendered them; single-digit tokens are legal.
type Frame struct {
	PGN         uint32
	Priority    uint8
	Source      uint8
	Destination uint8
	Data        []string
	Length      int
}

// Bytes parses the hex tokens into a payload.
func (f *Frame) Bytes() ([]byte, error) {
	out := make([]byte, len(f.Data))
	for i, tok := range f.Data {
		b, err := parseHexByte(tok)
		if err != nil {
			return nil, fmt.Errorf("byte %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// PaddedData returns the hex tokens with single-digit tokens left-padded
// with a zero.
func (f *Frame) PaddedData() []string {
	out := make([]string, len(f.Data))
	for i, tok := range f.Data {
		if len(tok) == 1 {
			tok = "0" + tok
		}
		out[i] = tok
	}
	return out
}

// HexTokens renders a payload as lower-case two-digit hex tokens.
func HexTokens(data []byte) []string {
	out := make([]string, len(data))
	for i, b := range data {
		out[i] = fmt.Sprintf("%02x", b)
	}
	return out
}

func parseHexByte(tok string) (byte, error) {
	tok = strings.TrimSpace(tok)
	if len(tok) == 0 || len(tok) > 2 {
		return 0, fmt.Errorf("invalid hex byte %q", tok)
	}
	var v byte
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, fmt.Errorf("invalid hex byte %q", tok)
		}
		v = v<<4 | d
	}
	return v, nil
}
