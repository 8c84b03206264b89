package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

const sessionID = "abc12345-6789-0123-4567-890abcdef012"

var base = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: base, SessionID: sessionID, RemoteAddr: "10.0.0.5:51000", Format: "candump1",
			Layer: log.LayerService, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "CONNECTING", NewState: "ACTIVE"},
		},
		{
			Timestamp: base.Add(10 * time.Millisecond), SessionID: sessionID, Direction: log.DirectionOut,
			Layer: log.LayerTransport, Category: log.CategoryMessage,
			Line: log.NewLineEvent("<0x09f11205> [2] 01 02"),
		},
		{
			Timestamp: base.Add(20 * time.Millisecond), SessionID: sessionID, Direction: log.DirectionIn,
			Layer: log.LayerTransport, Category: log.CategoryMessage,
			Line: log.NewLineEvent("garbage"),
		},
		{
			Timestamp: base.Add(21 * time.Millisecond), SessionID: sessionID, Direction: log.DirectionIn,
			Layer: log.LayerCodec, Category: log.CategoryDrop,
			Message: &log.MessageEvent{Reason: "decode"},
		},
		{
			Timestamp: base.Add(30 * time.Millisecond), SessionID: sessionID, Direction: log.DirectionIn,
			Layer: log.LayerCodec, Category: log.CategoryMessage,
			Message: &log.MessageEvent{PGN: 127250, Priority: 2, Source: 5, Destination: 255, Length: 2, Dialect: "candump1"},
		},
		{
			Timestamp: base.Add(2 * time.Second), SessionID: sessionID,
			Layer: log.LayerService, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "CLOSING", NewState: "CLOSED", Reason: "eof"},
		},
	}
}

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.cbor")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, ev := range sampleEvents() {
		fl.Log(ev)
	}
	require.NoError(t, fl.Close())
	return path
}

func TestFormatLineEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[1])
	out := buf.String()

	assert.Contains(t, out, "2026-01-28T10:15:32.133456Z")
	assert.Contains(t, out, "[session:abc12345]")
	assert.Contains(t, out, "OUT TRANSPORT Line")
	assert.Contains(t, out, "Size: 22 bytes")
	assert.Contains(t, out, "Text: <0x09f11205> [2] 01 02")
}

func TestFormatOtherEvents(t *testing.T) {
	events := sampleEvents()
	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{"state", events[0], []string{"State", "Entity: SESSION", "CONNECTING -> ACTIVE", "Peer: 10.0.0.5:51000  Format: candump1"}},
		{"drop", events[3], []string{"CODEC Drop", "Reason: decode"}},
		{"message", events[4], []string{"CODEC Message", "PGN: 127250  Prio: 2  Src: 5  Dst: 255  Len: 2", "Dialect: candump1"}},
		{"closed", events[5], []string{"CLOSING -> CLOSED", "Reason: eof"}},
		{"listener", log.Event{
			Timestamp: base, Layer: log.LayerService, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerService, Message: "accept failed", Context: "listener"},
		}, []string{"[session:listener]", "Message: accept failed", "Context: listener"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("Codec")
	require.NoError(t, err)
	assert.Equal(t, log.LayerCodec, l)

	d, err := ParseDirectionFlag("IN")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionIn, d)

	c, err := ParseCategoryFlag("drop")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryDrop, c)

	_, err = ParseLayerFlag("wire")
	assert.Error(t, err)
	_, err = ParseDirectionFlag("sideways")
	assert.Error(t, err)
	_, err = ParseCategoryFlag("control")
	assert.Error(t, err)
}

func TestFilterFlagsBuild(t *testing.T) {
	f, err := FilterFlags{
		SessionID: sessionID,
		Layer:     "transport",
		Direction: "out",
		Category:  "message",
		PGN:       "127250",
		TimeStart: "2026-01-28T10:00:00Z",
	}.Build()
	require.NoError(t, err)
	assert.Equal(t, sessionID, f.SessionID)
	require.NotNil(t, f.PGN)
	assert.Equal(t, uint32(127250), *f.PGN)
	require.NotNil(t, f.TimeStart)
	assert.Nil(t, f.TimeEnd)

	_, err = FilterFlags{PGN: "rudder"}.Build()
	assert.Error(t, err)
	_, err = FilterFlags{TimeEnd: "yesterday"}.Build()
	assert.Error(t, err)
}

func TestRunView(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	dir := log.DirectionIn
	require.NoError(t, RunView(path, log.Filter{Direction: &dir}, &buf))

	out := buf.String()
	assert.Contains(t, out, "Text: garbage")
	assert.NotContains(t, out, "<0x09f11205>")
}

func TestExport(t *testing.T) {
	path := writeCapture(t)

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export(path, "jsonl", log.Filter{}, &buf))
		assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 6)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export(path, "csv", log.Filter{}, &buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 7)
		assert.True(t, strings.HasPrefix(lines[0], "timestamp,session_id,remote,format"))
		assert.Contains(t, lines[5], ",127250,")
	})

	t.Run("lines", func(t *testing.T) {
		var buf bytes.Buffer
		out := log.DirectionOut
		require.NoError(t, export(path, "lines", log.Filter{Direction: &out}, &buf))
		assert.Equal(t, "<0x09f11205> [2] 01 02\n", buf.String())
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, export(path, "xml", log.Filter{}, &bytes.Buffer{}))
	})
}

func TestRunFilter(t *testing.T) {
	path := writeCapture(t)
	out := filepath.Join(t.TempDir(), "drops.cbor")

	cat := log.CategoryDrop
	n, err := RunFilter(path, out, log.Filter{Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := Collect(out, log.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 1, stats.DropsByReason["decode"])
}

func TestStats(t *testing.T) {
	path := writeCapture(t)

	stats, err := Collect(path, log.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalEvents)
	assert.Equal(t, 2, stats.EventsByLayer[log.LayerTransport])
	assert.Equal(t, 1, stats.PGNs[127250])
	require.Contains(t, stats.Sessions, sessionID)
	s := stats.Sessions[sessionID]
	assert.Equal(t, 1, s.LinesIn)
	assert.Equal(t, 1, s.LinesOut)
	assert.Equal(t, "candump1", s.Format)
	assert.Equal(t, "eof", s.CloseState)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, log.Filter{}, &buf))
	out := buf.String()
	assert.Contains(t, out, "Total Events: 6")
	assert.Contains(t, out, "[abc12345] 6 events, duration 2s")
	assert.Contains(t, out, "Lines: 1 in, 1 out")
	assert.Contains(t, out, "Closed: eof")
}
