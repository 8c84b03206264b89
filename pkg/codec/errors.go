package codec

import "errors"

// Codec errors.
var (
	// ErrUnrecognized indicates a line that matches no known dialect.
	ErrUnrecognized = errors.New("unrecognized dialect")

	// ErrMalformed indicates a line of a known dialect with invalid content.
	ErrMalformed = errors.New("malformed line")

	// ErrChecksum indicates an NMEA 0183 sentence with a bad checksum.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrNoEncoder indicates a format without an encoder.
	ErrNoEncoder = errors.New("no encoder for format")
)
