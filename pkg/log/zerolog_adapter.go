package log

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter mirrors capture events into an operational zerolog logger
// at debug level (errors at warn). Useful during development when a capture
// file is overkill.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates an adapter writing to logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event as one structured log entry.
func (a *ZerologAdapter) Log(event Event) {
	e := a.logger.Debug()
	if event.Category == CategoryError {
		e = a.logger.Warn()
	}
	if !e.Enabled() {
		return
	}

	e = e.Str("session", event.SessionID).
		Str("direction", event.Direction.String()).
		Str("layer", event.Layer.String()).
		Str("category", event.Category.String())
	if event.RemoteAddr != "" {
		e = e.Str("remote", event.RemoteAddr)
	}
	if event.Format != "" {
		e = e.Str("format", event.Format)
	}

	switch {
	case event.Line != nil:
		e = e.Int("size", event.Line.Size).Str("line", event.Line.Text)
		if event.Line.Truncated {
			e = e.Bool("truncated", true)
		}
	case event.Message != nil:
		e = e.Uint32("pgn", event.Message.PGN).
			Uint8("prio", event.Message.Priority).
			Uint8("src", event.Message.Source).
			Uint8("dst", event.Message.Destination).
			Int("len", event.Message.Length)
		if event.Message.Dialect != "" {
			e = e.Str("dialect", event.Message.Dialect)
		}
		if event.Message.Reason != "" {
			e = e.Str("reason", event.Message.Reason)
		}
	case event.StateChange != nil:
		e = e.Str("entity", event.StateChange.Entity.String()).
			Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			e = e.Str("reason", event.StateChange.Reason)
		}
	case event.Error != nil:
		e = e.Str("error_layer", event.Error.Layer.String()).
			Str("error", event.Error.Message)
		if event.Error.Context != "" {
			e = e.Str("context", event.Error.Context)
		}
	}

	e.Msg("capture")
}

var _ Logger = (*ZerologAdapter)(nil)
