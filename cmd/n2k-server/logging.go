package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// newLogger builds the process logger. An unparsable level falls back to
// info; config.Validate rejects those before we get here.
func newLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "n2k-server").Logger()
}

// n2kFormat keeps unknown names as-is: a session with an unknown format
// writes nothing rather than refusing to start.
func n2kFormat(name string) n2k.Format {
	if f, err := n2k.ParseFormat(name); err == nil {
		return f
	}
	return n2k.Format(name)
}

// drainFormat resolves --drain-format. Empty keeps canonical text.
func drainFormat(name string) (n2k.Format, error) {
	if name == "" {
		return "", nil
	}
	return n2k.ParseFormat(name)
}
