package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// EncodePDGY encodes msg as a Digital Yacht iKonvert data sentence in the
// form the gateway emits for received traffic:
//
//	!PDGY,<pgn>,<priority>,<source>,<destination>,<timer>,<base64 data>
//
// The timer is seconds since midnight of the message time.
func EncodePDGY(msg *n2k.Message) ([]string, error) {
	t := messageTime(msg)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	timer := t.Sub(midnight).Seconds()
	return []string{fmt.Sprintf("!PDGY,%d,%d,%d,%d,%.3f,%s",
		msg.PGN, msg.Priority, msg.Source, msg.Destination, timer,
		base64.StdEncoding.EncodeToString(msg.Data))}, nil
}

// EncodePDGYSend encodes msg in the short form an iKonvert accepts for
// transmission: !PDGY,<pgn>,<destination>,<base64 data>.
func EncodePDGYSend(msg *n2k.Message) ([]string, error) {
	return []string{fmt.Sprintf("!PDGY,%d,%d,%s",
		msg.PGN, msg.Destination, base64.StdEncoding.EncodeToString(msg.Data))}, nil
}

func parsePDGY(line string) (*n2k.Message, error) {
	fields := strings.Split(line, ",")
	msg := &n2k.Message{Priority: n2k.DefaultPriority}

	var dataTok string
	switch len(fields) {
	case 7:
		prio, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: priority %q", ErrMalformed, fields[2])
		}
		src, err := strconv.ParseUint(fields[3], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: source %q", ErrMalformed, fields[3])
		}
		dst, err := strconv.ParseUint(fields[4], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: destination %q", ErrMalformed, fields[4])
		}
		if _, err := strconv.ParseFloat(fields[5], 64); err != nil {
			return nil, fmt.Errorf("%w: timer %q", ErrMalformed, fields[5])
		}
		msg.Priority = uint8(prio)
		msg.Source = uint8(src)
		msg.Destination = uint8(dst)
		dataTok = fields[6]
	case 4:
		dst, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: destination %q", ErrMalformed, fields[2])
		}
		msg.Destination = uint8(dst)
		dataTok = fields[3]
	default:
		return nil, fmt.Errorf("%w: pdgy field count %d", ErrMalformed, len(fields))
	}

	pgn, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: pgn %q", ErrMalformed, fields[1])
	}
	data, err := base64.StdEncoding.DecodeString(dataTok)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	msg.PGN = uint32(pgn)
	msg.Data = data
	msg.Length = len(data)
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}
