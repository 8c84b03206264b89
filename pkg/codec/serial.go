package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// TimestampLayout is the ISO-8601 layout used in canonical serial text.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in canonical serial form (UTC, milliseconds).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ToActisenseSerial renders msg in canonical serial text:
//
//	<timestamp>,<priority>,<pgn>,<source>,<destination>,<length>,<b0>,<b1>,...
//
// The timestamp is ts, not msg.Timestamp: republished messages are stamped
// with the time they re-enter the bus.
func ToActisenseSerial(msg *n2k.Message, ts time.Time) string {
	return serialLine(FormatTimestamp(ts), msg.Priority, msg.PGN, msg.Source,
		msg.Destination, len(msg.Data), n2k.HexTokens(msg.Data))
}

// FrameToActisense renders a structured bus frame in canonical serial text,
// zero-padding single-digit byte tokens.
func FrameToActisense(f *n2k.Frame, ts time.Time) string {
	return serialLine(FormatTimestamp(ts), f.Priority, f.PGN, f.Source,
		f.Destination, f.Length, f.PaddedData())
}

func serialLine(ts string, prio uint8, pgn uint32, src, dst uint8, length int, data []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%d,%d,%d,%d,%d,", ts, prio, pgn, src, dst, length)
	b.WriteString(strings.Join(data, ","))
	return b.String()
}

// EncodeActisense encodes msg as canonical serial text, keeping its own
// timestamp when it has one.
func EncodeActisense(msg *n2k.Message) ([]string, error) {
	return []string{serialLine(messageTimestamp(msg), msg.Priority, msg.PGN,
		msg.Source, msg.Destination, len(msg.Data), n2k.HexTokens(msg.Data))}, nil
}

func parseActisense(line string) (*n2k.Message, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return nil, ErrUnrecognized
	}

	prio, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: priority: %v", ErrUnrecognized, err)
	}
	pgn, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: pgn: %v", ErrUnrecognized, err)
	}
	src, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: source: %v", ErrMalformed, err)
	}
	dst, err := strconv.ParseUint(strings.TrimSpace(parts[4]), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: destination: %v", ErrMalformed, err)
	}
	length, err := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: length %q", ErrMalformed, parts[5])
	}

	tokens := parts[6:]
	if len(tokens) == 1 && strings.TrimSpace(tokens[0]) == "" {
		tokens = nil
	}
	if len(tokens) != length {
		return nil, fmt.Errorf("%w: %d bytes, declared %d", ErrMalformed, len(tokens), length)
	}

	frame := n2k.Frame{Data: tokens}
	data, err := frame.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := &n2k.Message{
		PGN:         uint32(pgn),
		Priority:    uint8(prio),
		Source:      uint8(src),
		Destination: uint8(dst),
		Timestamp:   strings.TrimSpace(parts[0]),
		Data:        data,
		Length:      length,
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// messageTimestamp returns msg.Timestamp, or now when it is empty.
func messageTimestamp(msg *n2k.Message) string {
	if msg.Timestamp != "" {
		return msg.Timestamp
	}
	return FormatTimestamp(now())
}

// messageTime parses msg.Timestamp, falling back to now.
func messageTime(msg *n2k.Message) time.Time {
	if msg.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return now().UTC()
}

// now is replaced in tests.
var now = time.Now

func unixTime(secs int64) time.Time {
	return time.Unix(secs, 0).UTC()
}
