package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// EncodePCDIN encodes msg as a SeaSmart $PCDIN sentence:
//
//	$PCDIN,01F112,5E0D2B10,05,0102*2C
//
// The second field is the message time in Unix seconds (hex).
func EncodePCDIN(msg *n2k.Message) ([]string, error) {
	ts := uint32(messageTime(msg).Unix())
	body := fmt.Sprintf("PCDIN,%06X,%08X,%02X,%s",
		msg.PGN, ts, msg.Source, strings.ToUpper(hex.EncodeToString(msg.Data)))
	return []string{sentence('$', body)}, nil
}

// EncodeMXPGN encodes msg as Shipmodul MiniPlex $MXPGN sentences, one per
// CAN frame. The attribute word packs priority (bits 14-12), data length
// (bits 11-8) and source address (bits 7-0). Data bytes are in reverse order.
func EncodeMXPGN(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		attr := uint16(msg.Priority&0x7)<<12 | uint16(len(f)&0xF)<<8 | uint16(msg.Source)
		body := fmt.Sprintf("MXPGN,%06X,%04X,%s", msg.PGN, attr, strings.ToUpper(hex.EncodeToString(reversed(f))))
		out = append(out, sentence('$', body))
	}
	return out, nil
}

func parsePCDIN(line string) (*n2k.Message, error) {
	body, err := checkSentence(line)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(body, ",")
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: pcdin field count %d", ErrMalformed, len(fields))
	}
	pgn, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: pgn %q", ErrMalformed, fields[1])
	}
	secs, err := strconv.ParseUint(fields[2], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q", ErrMalformed, fields[2])
	}
	src, err := strconv.ParseUint(fields[3], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q", ErrMalformed, fields[3])
	}
	data, err := hex.DecodeString(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	msg := &n2k.Message{
		PGN:         uint32(pgn),
		Priority:    n2k.DefaultPriority,
		Source:      uint8(src),
		Destination: n2k.BroadcastAddress,
		Data:        data,
		Length:      len(data),
	}
	if secs != 0 {
		msg.Timestamp = FormatTimestamp(unixTime(int64(secs)))
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

func parseMXPGN(line string) (*n2k.Message, error) {
	body, err := checkSentence(line)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(body, ",")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: mxpgn field count %d", ErrMalformed, len(fields))
	}
	pgn, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: pgn %q", ErrMalformed, fields[1])
	}
	attr, err := strconv.ParseUint(fields[2], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: attribute %q", ErrMalformed, fields[2])
	}
	data, err := hex.DecodeString(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	dlc := int(attr>>8) & 0xF
	if dlc != len(data) || dlc > n2k.FrameSize {
		return nil, fmt.Errorf("%w: dlc %d with %d bytes", ErrMalformed, dlc, len(data))
	}

	msg := &n2k.Message{
		PGN:         uint32(pgn),
		Priority:    uint8(attr>>12) & 0x7,
		Source:      uint8(attr),
		Destination: n2k.BroadcastAddress,
		Data:        reversed(data),
		Length:      len(data),
	}
	if attr&0x8000 != 0 {
		// Send direction: the address byte is the destination.
		msg.Source = 0
		msg.Destination = uint8(attr)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// sentence wraps body as an NMEA 0183 sentence with checksum.
func sentence(start byte, body string) string {
	return fmt.Sprintf("%c%s*%02X", start, body, checksum(body))
}

// checkSentence validates the checksum (when present) and returns the body
// between the start character and '*'.
func checkSentence(line string) (string, error) {
	if len(line) < 2 {
		return "", fmt.Errorf("%w: sentence too short", ErrMalformed)
	}
	body, sum, hasSum := strings.Cut(line[1:], "*")
	if !hasSum {
		return body, nil
	}
	want, err := strconv.ParseUint(strings.TrimSpace(sum), 16, 8)
	if err != nil {
		return "", fmt.Errorf("%w: checksum %q", ErrMalformed, sum)
	}
	if byte(want) != checksum(body) {
		return "", fmt.Errorf("%w: got %02X, want %02X", ErrChecksum, checksum(body), want)
	}
	return body, nil
}

func checksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
