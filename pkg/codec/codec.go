package codec

import (
	"fmt"
	"strings"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// EncodeFunc encodes one message into zero or more lines (no terminators).
type EncodeFunc func(msg *n2k.Message) ([]string, error)

// encoders maps each format with an encoder. canboat has none: it is a
// pass-through of the bus's own text and is handled by the caller.
var encoders = map[n2k.Format]EncodeFunc{
	n2k.FormatActisense:         EncodeActisense,
	n2k.FormatActisenseN2KASCII: EncodeActisenseN2KASCII,
	n2k.FormatYDRAW:             EncodeYDRAW,
	n2k.FormatPCDIN:             EncodePCDIN,
	n2k.FormatMXPGN:             EncodeMXPGN,
	n2k.FormatIKonvert:          EncodePDGY,
	n2k.FormatCandump1:          EncodeCandump1,
	n2k.FormatCandump2:          EncodeCandump2,
	n2k.FormatCandump3:          EncodeCandump3,
}

// Encoder returns the encoder for f.
func Encoder(f n2k.Format) (EncodeFunc, bool) {
	fn, ok := encoders[f]
	return fn, ok
}

// Encode encodes msg in format f.
func Encode(f n2k.Format, msg *n2k.Message) ([]string, error) {
	fn, ok := encoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEncoder, f)
	}
	return fn(msg)
}

// transmitEncoders holds the forms gateways accept for sending where they
// differ from what the gateway emits.
var transmitEncoders = map[n2k.Format]EncodeFunc{
	n2k.FormatYDRAW:    EncodeYDRAWShort,
	n2k.FormatIKonvert: EncodePDGYSend,
}

// EncodeTransmit encodes msg in the form a gateway speaking f accepts for
// transmission on the bus. Formats without a distinct send form encode as
// Encode does.
func EncodeTransmit(f n2k.Format, msg *n2k.Message) ([]string, error) {
	if fn, ok := transmitEncoders[f]; ok {
		return fn(msg)
	}
	return Encode(f, msg)
}

// Parse decodes a line of any supported dialect.
func Parse(line string) (*n2k.Message, error) {
	msg, _, err := ParseDialect(line)
	return msg, err
}

// ParseDialect decodes a line of any supported dialect and reports which
// dialect it was. Detection is by shape: sentence prefixes first, then
// column layout.
func ParseDialect(line string) (*n2k.Message, n2k.Format, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, "", fmt.Errorf("%w: empty line", ErrUnrecognized)
	}

	f := Detect(line)
	var (
		msg *n2k.Message
		err error
	)
	switch f {
	case n2k.FormatPCDIN:
		msg, err = parsePCDIN(line)
	case n2k.FormatMXPGN:
		msg, err = parseMXPGN(line)
	case n2k.FormatIKonvert:
		msg, err = parsePDGY(line)
	case n2k.FormatCandump1:
		msg, err = parseCandump1(line)
	case n2k.FormatCandump2:
		msg, err = parseCandump2(line)
	case n2k.FormatCandump3:
		msg, err = parseCandump3(line)
	case n2k.FormatActisenseN2KASCII:
		msg, err = parseActisenseN2KASCII(line)
	case n2k.FormatYDRAW:
		msg, err = parseYDRAW(line)
	case n2k.FormatActisense:
		msg, err = parseActisense(line)
	default:
		return nil, "", fmt.Errorf("%w: %.32q", ErrUnrecognized, line)
	}
	if err != nil {
		return nil, f, err
	}
	return msg, f, nil
}

// Detect returns the dialect a line appears to be written in, or "" when
// none matches. It does not validate the content.
func Detect(line string) n2k.Format {
	switch {
	case strings.HasPrefix(line, "$PCDIN,"):
		return n2k.FormatPCDIN
	case strings.HasPrefix(line, "$MXPGN,"):
		return n2k.FormatMXPGN
	case strings.HasPrefix(line, "!PDGY,"):
		return n2k.FormatIKonvert
	case strings.HasPrefix(line, "<0x"):
		return n2k.FormatCandump1
	case strings.HasPrefix(line, "("):
		return n2k.FormatCandump3
	case looksLikeN2KASCII(line):
		return n2k.FormatActisenseN2KASCII
	}

	fields := strings.Fields(line)
	switch {
	case len(fields) >= 3 && isInterfaceName(fields[0]) && strings.HasPrefix(fields[2], "["):
		return n2k.FormatCandump2
	case len(fields) >= 3 && strings.Count(fields[0], ":") == 2 && (fields[1] == "R" || fields[1] == "T"):
		return n2k.FormatYDRAW
	case len(fields) >= 1 && len(fields[0]) == 8 && isHex(fields[0]) && !strings.Contains(line, ","):
		return n2k.FormatYDRAW
	case strings.Count(line, ",") >= 5:
		return n2k.FormatActisense
	}
	return ""
}

// isInterfaceName matches SocketCAN interface names such as can0 or vcan1.
func isInterfaceName(s string) bool {
	i := 0
	for i < len(s) && (s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	return i > 0 && i < len(s) && isDigits(s[i:])
}
