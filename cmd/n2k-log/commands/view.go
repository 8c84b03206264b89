// Package commands implements the n2k-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

// FilterFlags are the filter criteria shared by view, export, filter and
// stats. Empty fields match everything.
type FilterFlags struct {
	SessionID string
	Remote    string
	Format    string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	PGN       string
}

// Build converts the flags into a log.Filter.
func (f FilterFlags) Build() (log.Filter, error) {
	filter := log.Filter{
		SessionID:  f.SessionID,
		RemoteAddr: f.Remote,
		Format:     f.Format,
	}

	if f.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, f.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if f.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, f.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if f.Layer != "" {
		l, err := ParseLayerFlag(f.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if f.Direction != "" {
		d, err := ParseDirectionFlag(f.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if f.Category != "" {
		c, err := ParseCategoryFlag(f.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if f.PGN != "" {
		pgn, err := strconv.ParseUint(f.PGN, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("invalid pgn: %s", f.PGN)
		}
		p := uint32(pgn)
		filter.PGN = &p
	}
	return filter, nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	session := shortenSessionID(event.SessionID)
	if session == "" {
		session = "listener"
	}

	var typeLabel string
	switch {
	case event.Line != nil:
		typeLabel = "Line"
	case event.Message != nil && event.Category == log.CategoryDrop:
		typeLabel = "Drop"
	case event.Message != nil:
		typeLabel = "Message"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [session:%s] %-3s %s %s\n", ts, session, event.Direction, event.Layer, typeLabel)
	if event.RemoteAddr != "" || event.Format != "" {
		fmt.Fprintf(w, "  Peer: %s  Format: %s\n", orDash(event.RemoteAddr), orDash(event.Format))
	}

	switch {
	case event.Line != nil:
		formatLineDetails(w, event.Line)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatLineDetails(w io.Writer, line *log.LineEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", line.Size)
	fmt.Fprintf(w, "  Text: %s", line.Text)
	if line.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  PGN: %d  Prio: %d  Src: %d  Dst: %d  Len: %d\n",
		msg.PGN, msg.Priority, msg.Source, msg.Destination, msg.Length)
	if msg.Dialect != "" {
		fmt.Fprintf(w, "  Dialect: %s\n", msg.Dialect)
	}
	if msg.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", msg.Reason)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "codec":
		return log.LayerCodec, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, codec, or service)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "drop":
		return log.CategoryDrop, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, drop, state, or error)", s)
	}
}

// eachEvent opens path and calls fn for every event matching filter.
func eachEvent(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView writes every matching event in human-readable form.
func RunView(path string, filter log.Filter, output io.Writer) error {
	return eachEvent(path, filter, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}
