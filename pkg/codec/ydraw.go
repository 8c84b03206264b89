package codec

import (
	"fmt"
	"strings"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// EncodeYDRAW encodes msg in Yacht Devices RAW form including the time and
// direction columns:
//
//	21:00:29.113 R 09F11205 01 02
func EncodeYDRAW(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	ts := messageTime(msg).Format("15:04:05.000")
	id := canID(msg)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%s R %08X %s", ts, id, spacedHex(f, true)))
	}
	return out, nil
}

// EncodeYDRAWShort encodes msg in the form a YDWG accepts for transmission,
// without time and direction.
func EncodeYDRAWShort(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	id := canID(msg)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%08X %s", id, spacedHex(f, true)))
	}
	return out, nil
}

func parseYDRAW(line string) (*n2k.Message, error) {
	fields := strings.Fields(line)
	if len(fields) >= 3 && strings.Contains(fields[0], ":") {
		switch fields[1] {
		case "R", "T":
		default:
			return nil, fmt.Errorf("%w: direction %q", ErrMalformed, fields[1])
		}
		fields = fields[2:]
	}
	if len(fields) < 1 {
		return nil, fmt.Errorf("%w: ydraw", ErrMalformed)
	}
	id, err := parseCANID(fields[0])
	if err != nil {
		return nil, err
	}
	data, err := parseSpacedHex(fields[1:])
	if err != nil {
		return nil, err
	}
	if len(data) > n2k.FrameSize {
		return nil, fmt.Errorf("%w: %d bytes in one frame", ErrMalformed, len(data))
	}
	return frameMessage(id, data, ""), nil
}
