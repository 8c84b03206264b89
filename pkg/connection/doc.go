// Package connection keeps a relay client connected.
//
// A Manager owns the lifecycle of one client connection: the initial
// connect, loss detection reported by the caller, and background
// reconnection with exponential backoff.
//
// # Reconnection
//
// After a connection is lost the manager waits before each attempt:
//
//  1. Initial delay: 500 milliseconds
//  2. Doubling on each failure: 1s, 2s, 4s, 8s, 16s
//  3. Capped at 30 seconds, then retried at 30s until it succeeds
//  4. Back to 500ms after a successful connect
//
// Each delay is stretched by a random jitter of up to 20% so that many
// consoles pointed at one relay do not reconnect in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.2)
package connection
