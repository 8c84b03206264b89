// Package transport implements the relay's client-facing side.
//
// The transport layer handles:
//   - TCP (and optional WebSocket) listeners with start/stop lifecycle
//   - Newline framing of arbitrarily chunked input
//   - One Session per client, relaying between the client and the bus
//
// # Data Flow
//
//	┌────────────┐  KindRawOutput   ┌─────────┐  Render(format)  ┌────────┐
//	│    Bus     │ ───────────────► │ Session │ ───────────────► │ client │
//	│            │ ◄─────────────── │         │ ◄─────────────── │        │
//	└────────────┘  KindSend        └─────────┘  LineFramer      └────────┘
//	                (canonical text)              + codec.Parse
//
// Each Session runs as a single goroutine that owns all writes to its
// client; a helper goroutine reads and frames input. The output format is
// fixed per session. Inbound lines are decoded independently of it, by
// detecting the dialect from the line itself.
//
// # Failure Isolation
//
// Read errors, write errors, oversize lines and bus queue overflow end only
// the affected session. Lines that fail to decode are ignored and the
// session stays open.
package transport
