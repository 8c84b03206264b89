package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

// RunExport exports matching events as JSON lines, CSV, or the relayed
// text lines only ("lines"), which can be replayed into a relay.
func RunExport(path, format, output string, filter log.Filter) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return export(path, format, filter, w)
}

func export(path, format string, filter log.Filter, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, filter, w)
	case "csv":
		return exportCSV(path, filter, w)
	case "lines":
		return exportLines(path, filter, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv, lines)", format)
	}
}

func exportJSONL(path string, filter log.Filter, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return eachEvent(path, filter, func(event log.Event) error {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "remote", "format", "direction", "layer", "category", "type", "pgn", "text"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return eachEvent(path, filter, func(event log.Event) error {
		eventType := "unknown"
		pgn, text := "", ""
		switch {
		case event.Line != nil:
			eventType = "line"
			text = event.Line.Text
		case event.Message != nil:
			eventType = "message"
			if event.Category == log.CategoryDrop {
				eventType = "drop"
				text = event.Message.Reason
			}
			pgn = strconv.FormatUint(uint64(event.Message.PGN), 10)
		case event.StateChange != nil:
			eventType = "state"
			text = event.StateChange.NewState
		case event.Error != nil:
			eventType = "error"
			text = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.RemoteAddr,
			event.Format,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			eventType,
			pgn,
			text,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
}

func exportLines(path string, filter log.Filter, w io.Writer) error {
	return eachEvent(path, filter, func(event log.Event) error {
		if event.Line == nil || event.Line.Truncated {
			return nil
		}
		_, err := fmt.Fprintln(w, event.Line.Text)
		return err
	})
}
