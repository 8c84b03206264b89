// Package log provides structured protocol capture for the N2K relay.
//
// This package defines the Logger interface and Event types for recording
// what each relay session sees and does: lines read and written, decoded
// messages, lifecycle transitions and errors. It is separate from
// operational logging (zerolog) - a capture is a complete machine-readable
// trace for debugging gateways and clients.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: mirror events to the console logger
//	cfg.Capture = log.NewZerologAdapter(logger)
//
//	// For production: write to a binary file
//	cfg.Capture, _ = log.NewFileLogger("/var/log/n2k/relay.n2kcap")
//
//	// Both: use MultiLogger
//	cfg.Capture = log.NewMultiLogger(
//	    log.NewZerologAdapter(logger),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw text lines (LineEvent)
//   - Codec: decoded messages (MessageEvent)
//   - Service: session and listener state changes (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys. The
// n2k-log CLI tool views, filters and exports them.
package log
