package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// EncodeActisenseN2KASCII encodes msg in Actisense N2K ASCII form:
//
//	A173321.107 05FF2 1F112 0102
//
// The second column packs source, destination and priority as hex.
func EncodeActisenseN2KASCII(msg *n2k.Message) ([]string, error) {
	t := messageTime(msg)
	line := fmt.Sprintf("A%02d%02d%02d.%03d %02X%02X%X %05X %s",
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e6,
		msg.Source, msg.Destination, msg.Priority&0xF,
		msg.PGN, strings.ToUpper(hex.EncodeToString(msg.Data)))
	return []string{strings.TrimRight(line, " ")}, nil
}

func parseActisenseN2KASCII(line string) (*n2k.Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields) > 4 {
		return nil, fmt.Errorf("%w: n2k ascii field count %d", ErrMalformed, len(fields))
	}

	addr := fields[1]
	if len(addr) != 5 || !isHex(addr) {
		return nil, fmt.Errorf("%w: address %q", ErrMalformed, addr)
	}
	src, _ := strconv.ParseUint(addr[0:2], 16, 8)
	dst, _ := strconv.ParseUint(addr[2:4], 16, 8)
	prio, _ := strconv.ParseUint(addr[4:5], 16, 8)

	pgn, err := strconv.ParseUint(fields[2], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: pgn %q", ErrMalformed, fields[2])
	}

	var data []byte
	if len(fields) == 4 {
		data, err = hex.DecodeString(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
		}
	}

	msg := &n2k.Message{
		PGN:         uint32(pgn),
		Priority:    uint8(prio),
		Source:      uint8(src),
		Destination: uint8(dst),
		Data:        data,
		Length:      len(data),
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// looksLikeN2KASCII matches "A" followed by an hhmmss.mmm time.
func looksLikeN2KASCII(line string) bool {
	if len(line) < 2 || line[0] != 'A' {
		return false
	}
	head, _, _ := strings.Cut(line[1:], " ")
	whole, frac, ok := strings.Cut(head, ".")
	return ok && len(whole) == 6 && isDigits(whole) && isDigits(frac)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
