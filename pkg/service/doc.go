// Package service runs the relay as a host plugin.
//
// A Relay owns the canonical bus and, while started, the TCP listener plus
// the optional WebSocket listener, metrics endpoint, mDNS advertisement and
// capture file, all configured from one config.Config:
//
//	relay := service.New(service.Options{Logger: logger})
//	if err := relay.Start(ctx, cfg); err != nil {
//		// bind failure; the relay stays stopped
//	}
//	defer relay.Stop()
//
// The host feeds frames received from the NMEA 2000 bus with
// relay.Bus().Publish and consumes "frame to send" events from it.
package service
