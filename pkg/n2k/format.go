package n2k

import (
	"errors"
	"fmt"
	"strings"
)

// Format is a client-facing wire encoding.
type Format string

// Supported wire formats.
const (
	FormatActisense         Format = "actisense"
	FormatActisenseN2KASCII Format = "actisense-n2k-ascii"
	FormatYDRAW             Format = "ydraw"
	FormatPCDIN             Format = "pcdin"
	FormatMXPGN             Format = "mxpgn"
	FormatIKonvert          Format = "ikonvert"
	FormatCandump1          Format = "candump1"
	FormatCandump2          Format = "candump2"
	FormatCandump3          Format = "candump3"
	FormatCanboat           Format = "canboat"
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = FormatActisenseN2KASCII

// ErrUnknownFormat indicates a format name outside the supported set.
var ErrUnknownFormat = errors.New("unknown wire format")

// Formats lists every supported format in presentation order.
func Formats() []Format {
	return []Format{
		FormatActisense,
		FormatActisenseN2KASCII,
		FormatYDRAW,
		FormatPCDIN,
		FormatMXPGN,
		FormatIKonvert,
		FormatCandump1,
		FormatCandump2,
		FormatCandump3,
		FormatCanboat,
	}
}

// ParseFormat resolves a format name. Matching is case-insensitive and an
// empty name selects DefaultFormat.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultFormat, nil
	}
	f := Format(name)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	for _, known := range Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// FrameBased reports whether the format carries individual CAN frames, so
// payloads longer than eight bytes are split into fast-packet sequences.
func (f Format) FrameBased() bool {
	switch f {
	case FormatYDRAW, FormatCandump1, FormatCandump2, FormatCandump3, FormatMXPGN:
		return true
	default:
		return false
	}
}
