package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// candumpInterface is the interface name written in candump2/3 output.
const candumpInterface = "can0"

// EncodeCandump1 encodes msg in angular-bracket candump form:
//
//	<0x09f11205> [2] 01 02
func EncodeCandump1(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	id := canID(msg)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("<0x%08x> [%d] %s", id, len(f), spacedHex(f, false)))
	}
	return out, nil
}

// EncodeCandump2 encodes msg in the default can-utils candump form:
//
//	can0  09F11205   [2]  01 02
func EncodeCandump2(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	id := canID(msg)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%s  %08X   [%d]  %s", candumpInterface, id, len(f), spacedHex(f, true)))
	}
	return out, nil
}

// EncodeCandump3 encodes msg in candump -L log form:
//
//	(1502979132.106111) can0 09F11205#0102
func EncodeCandump3(msg *n2k.Message) ([]string, error) {
	frames, err := canFrames(msg)
	if err != nil {
		return nil, err
	}
	t := messageTime(msg)
	ts := fmt.Sprintf("(%d.%06d)", t.Unix(), t.Nanosecond()/1000)
	id := canID(msg)
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, fmt.Sprintf("%s %s %08X#%s", ts, candumpInterface, id, strings.ToUpper(hex.EncodeToString(f))))
	}
	return out, nil
}

func parseCandump1(line string) (*n2k.Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: candump1", ErrMalformed)
	}
	idTok := strings.TrimSuffix(strings.TrimPrefix(fields[0], "<"), ">")
	id, err := parseCANID(idTok)
	if err != nil {
		return nil, err
	}
	n, err := parseDLC(fields[1])
	if err != nil {
		return nil, err
	}
	data, err := parseSpacedHex(fields[2:])
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: dlc %d with %d bytes", ErrMalformed, n, len(data))
	}
	return frameMessage(id, data, ""), nil
}

func parseCandump2(line string) (*n2k.Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: candump2", ErrMalformed)
	}
	id, err := parseCANID(fields[1])
	if err != nil {
		return nil, err
	}
	n, err := parseDLC(fields[2])
	if err != nil {
		return nil, err
	}
	data, err := parseSpacedHex(fields[3:])
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: dlc %d with %d bytes", ErrMalformed, n, len(data))
	}
	return frameMessage(id, data, ""), nil
}

func parseCandump3(line string) (*n2k.Message, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: candump3", ErrMalformed)
	}
	tsTok := strings.TrimSuffix(strings.TrimPrefix(fields[0], "("), ")")
	secs, err := strconv.ParseFloat(tsTok, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q", ErrMalformed, tsTok)
	}

	idTok, dataTok, ok := strings.Cut(fields[2], "#")
	if !ok {
		return nil, fmt.Errorf("%w: missing '#'", ErrMalformed)
	}
	id, err := parseCANID(idTok)
	if err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(dataTok)
	if err != nil || len(data) > n2k.FrameSize {
		return nil, fmt.Errorf("%w: data %q", ErrMalformed, dataTok)
	}

	whole := int64(secs)
	ts := time.Unix(whole, int64((secs-float64(whole))*1e9))
	return frameMessage(id, data, FormatTimestamp(ts)), nil
}

// parseDLC parses a "[n]" data length token.
func parseDLC(tok string) (int, error) {
	if !strings.HasPrefix(tok, "[") || !strings.HasSuffix(tok, "]") {
		return 0, fmt.Errorf("%w: dlc %q", ErrMalformed, tok)
	}
	n, err := strconv.Atoi(tok[1 : len(tok)-1])
	if err != nil || n < 0 || n > n2k.FrameSize {
		return 0, fmt.Errorf("%w: dlc %q", ErrMalformed, tok)
	}
	return n, nil
}
