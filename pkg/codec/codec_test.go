package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

const testTimestamp = "2024-01-02T17:33:21.107Z"

func testMessage() *n2k.Message {
	return &n2k.Message{
		PGN:         127250,
		Priority:    2,
		Source:      5,
		Destination: 255,
		Timestamp:   testTimestamp,
		Data:        []byte{0x01, 0x02},
		Length:      2,
	}
}

func TestEncodeKnownLines(t *testing.T) {
	msg := testMessage()

	tests := []struct {
		format n2k.Format
		want   string
	}{
		{n2k.FormatActisense, testTimestamp + ",2,127250,5,255,2,01,02"},
		{n2k.FormatActisenseN2KASCII, "A173321.107 05FF2 1F112 0102"},
		{n2k.FormatYDRAW, "17:33:21.107 R 09F11205 01 02"},
		{n2k.FormatCandump1, "<0x09f11205> [2] 01 02"},
		{n2k.FormatCandump2, "can0  09F11205   [2]  01 02"},
		{n2k.FormatCandump3, "(1704216801.107000) can0 09F11205#0102"},
		{n2k.FormatIKonvert, "!PDGY,127250,2,5,255,63201.107,AQI="},
		{n2k.FormatMXPGN, sentence('$', "MXPGN,01F112,2205,0201")},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			lines, err := Encode(tt.format, msg)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.want, lines[0])
		})
	}
}

func TestEncodePCDIN(t *testing.T) {
	lines, err := EncodePCDIN(testMessage())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "$PCDIN,01F112,"), lines[0])
	assert.Contains(t, lines[0], ",05,0102*")

	_, err = checkSentence(lines[0])
	assert.NoError(t, err)
}

func TestEncodeCanboatHasNoEncoder(t *testing.T) {
	_, err := Encode(n2k.FormatCanboat, testMessage())
	assert.True(t, errors.Is(err, ErrNoEncoder))

	_, err = Encode(n2k.Format("bogus"), testMessage())
	assert.True(t, errors.Is(err, ErrNoEncoder))
}

// Every decodable format preserves pgn, source, destination and payload.
func TestRoundTripSingleFrame(t *testing.T) {
	for _, f := range n2k.Formats() {
		if _, ok := Encoder(f); !ok {
			continue
		}
		t.Run(string(f), func(t *testing.T) {
			msg := testMessage()
			lines, err := Encode(f, msg)
			require.NoError(t, err)
			require.Len(t, lines, 1)

			got, dialect, err := ParseDialect(lines[0])
			require.NoError(t, err)
			assert.Equal(t, f, dialect)
			assert.Equal(t, msg.PGN, got.PGN)
			assert.Equal(t, msg.Source, got.Source)
			assert.Equal(t, msg.Destination, got.Destination)
			assert.Equal(t, msg.Data, got.Data)
			assert.Equal(t, len(got.Data), got.Length)
		})
	}
}

// PCDIN and MXPGN have no destination field, so an addressed message comes
// back as broadcast. Every other format keeps the destination.
func TestRoundTripAddressed(t *testing.T) {
	noDestination := map[n2k.Format]bool{n2k.FormatPCDIN: true, n2k.FormatMXPGN: true}

	for _, f := range n2k.Formats() {
		if _, ok := Encoder(f); !ok {
			continue
		}
		t.Run(string(f), func(t *testing.T) {
			msg := &n2k.Message{
				PGN: 59904, Priority: 6, Source: 5, Destination: 10,
				Timestamp: testTimestamp, Data: []byte{0x14, 0xF0, 0x01}, Length: 3,
			}
			lines, err := Encode(f, msg)
			require.NoError(t, err)
			require.Len(t, lines, 1)

			got, err := Parse(lines[0])
			require.NoError(t, err, lines[0])
			assert.Equal(t, msg.PGN, got.PGN)
			assert.Equal(t, msg.Source, got.Source)
			assert.Equal(t, msg.Data, got.Data)
			if noDestination[f] {
				assert.Equal(t, n2k.BroadcastAddress, got.Destination)
			} else {
				assert.Equal(t, msg.Destination, got.Destination)
			}
		})
	}
}

func TestEncodeTransmit(t *testing.T) {
	msg := testMessage()

	tests := []struct {
		format n2k.Format
		want   string
	}{
		{n2k.FormatYDRAW, "09F11205 01 02"},
		{n2k.FormatIKonvert, "!PDGY,127250,255,AQI="},
		{n2k.FormatCandump1, "<0x09f11205> [2] 01 02"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			lines, err := EncodeTransmit(tt.format, msg)
			require.NoError(t, err)
			require.Equal(t, []string{tt.want}, lines)

			got, dialect, err := ParseDialect(lines[0])
			require.NoError(t, err)
			assert.Equal(t, tt.format, dialect)
			assert.Equal(t, msg.PGN, got.PGN)
			assert.Equal(t, msg.Destination, got.Destination)
			assert.Equal(t, msg.Data, got.Data)
		})
	}

	_, err := EncodeTransmit(n2k.FormatCanboat, msg)
	assert.ErrorIs(t, err, ErrNoEncoder)
}

func TestRoundTripFastPacket(t *testing.T) {
	payload := make([]byte, 29)
	for i := range payload {
		payload[i] = byte(0xA0 + i)
	}
	msg := &n2k.Message{
		PGN: 129029, Priority: 3, Source: 22, Destination: 255,
		Timestamp: testTimestamp, Data: payload, Length: len(payload),
	}

	for _, f := range n2k.Formats() {
		if _, ok := Encoder(f); !ok {
			continue
		}
		t.Run(string(f), func(t *testing.T) {
			lines, err := Encode(f, msg)
			require.NoError(t, err)
			if f.FrameBased() {
				assert.Len(t, lines, 5)
			} else {
				assert.Len(t, lines, 1)
			}

			asm := n2k.NewAssembler()
			var got *n2k.Message
			for _, line := range lines {
				m, dialect, err := ParseDialect(line)
				require.NoError(t, err, line)
				if dialect.FrameBased() {
					m = asm.Add(m)
				}
				if m != nil {
					got = m
				}
			}
			require.NotNil(t, got)
			assert.Equal(t, msg.PGN, got.PGN)
			assert.Equal(t, msg.Source, got.Source)
			assert.Equal(t, payload, got.Data)
		})
	}
}

func TestParseActisense(t *testing.T) {
	msg, err := Parse("2017-03-13T01:00:00.146Z,2,127245,204,255,8,fc,f8,ff,7f,ff,7f,ff,ff")
	require.NoError(t, err)
	assert.Equal(t, uint32(127245), msg.PGN)
	assert.Equal(t, uint8(2), msg.Priority)
	assert.Equal(t, uint8(204), msg.Source)
	assert.Equal(t, uint8(255), msg.Destination)
	assert.Equal(t, "2017-03-13T01:00:00.146Z", msg.Timestamp)
	assert.Equal(t, []byte{0xfc, 0xf8, 0xff, 0x7f, 0xff, 0x7f, 0xff, 0xff}, msg.Data)
	assert.Equal(t, 8, msg.Length)
}

func TestParseKnownGatewayLines(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		dialect n2k.Format
		pgn     uint32
		src     uint8
	}{
		{"ydraw", "21:00:29.113 R 09F80115 00 82 0B 00 00 00 00 00", n2k.FormatYDRAW, 129025, 0x15},
		{"ydraw short", "09F80115 00 82 0B 00 00 00 00 00", n2k.FormatYDRAW, 129025, 0x15},
		{"candump2", "can0  09F8027F   [8]  00 FC FF FF 00 00 FF FF", n2k.FormatCandump2, 129026, 0x7F},
		{"candump3", "(1502979132.106111) slcan0 09F50374#000A00FFFF00FFFF", n2k.FormatCandump3, 128259, 0x74},
		{"candump1", "<0x18eeff01> [8] 05 a0 be 1c 00 a0 a0 c0", n2k.FormatCandump1, 60928, 0x01},
		{"n2k ascii", "A173321.107 23FF7 1F513 012F3070002F30709F", n2k.FormatActisenseN2KASCII, 128275, 0x23},
		{"pdgy send form", "!PDGY,127250,255,AQI=", n2k.FormatIKonvert, 127250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, dialect, err := ParseDialect(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.pgn, msg.PGN)
			assert.Equal(t, tt.src, msg.Source)
			assert.Equal(t, len(msg.Data), msg.Length)
		})
	}
}

func TestParseCandump3Timestamp(t *testing.T) {
	msg, err := Parse("(1502979132.106111) can0 09F50374#000A00FFFF00FFFF")
	require.NoError(t, err)
	ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1502979132), ts.Unix())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrUnrecognized},
		{"whitespace", "   ", ErrUnrecognized},
		{"truncated actisense", "12,34,56", ErrUnrecognized},
		{"garbage", "hello world", ErrUnrecognized},
		{"length mismatch", "2017-03-13T01:00:00.146Z,2,127245,204,255,3,fc", ErrMalformed},
		{"bad hex", "2017-03-13T01:00:00.146Z,2,127245,204,255,1,zz", ErrMalformed},
		{"bad checksum", "$PCDIN,01F119,00000000,0F,2AAF00D1067414FF*00", ErrChecksum},
		{"mxpgn dlc mismatch", sentence('$', "MXPGN,01F801,2801,C130"), ErrMalformed},
		{"candump dlc mismatch", "<0x18eeff01> [8] 05 a0", ErrMalformed},
		{"pdgy bad base64", "!PDGY,127250,255,@@@", ErrMalformed},
		{"ydraw bad direction", "21:00:29.113 X 09F80115 00", ErrUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.line)
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestPCDINChecksumAccepted(t *testing.T) {
	msg, err := Parse("$PCDIN,01F119,00000000,0F,2AAF00D1067414FF*59")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1F119), msg.PGN)
	assert.Equal(t, uint8(0x0F), msg.Source)
	assert.Len(t, msg.Data, 8)
}

func TestFrameToActisensePadsSingleDigits(t *testing.T) {
	f := &n2k.Frame{
		PGN: 127250, Priority: 2, Source: 5, Destination: 255,
		Data: []string{"5", "a", "ff"}, Length: 3,
	}
	ts := time.Date(2024, 1, 2, 17, 33, 21, 107e6, time.UTC)
	assert.Equal(t, testTimestamp+",2,127250,5,255,3,05,0a,ff", FrameToActisense(f, ts))
}

func TestToActisenseSerial(t *testing.T) {
	ts := time.Date(2024, 1, 2, 17, 33, 21, 107e6, time.UTC)
	msg := testMessage()
	msg.Timestamp = ""
	line := ToActisenseSerial(msg, ts)
	assert.Equal(t, testTimestamp+",2,127250,5,255,2,01,02", line)

	back, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, msg.Data, back.Data)
}

func TestEncodeUsesClockWithoutTimestamp(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2024, 1, 2, 17, 33, 21, 107e6, time.UTC) }
	defer func() { now = orig }()

	msg := testMessage()
	msg.Timestamp = ""
	lines, err := EncodeActisense(msg)
	require.NoError(t, err)
	assert.Equal(t, testTimestamp+",2,127250,5,255,2,01,02", lines[0])
}
