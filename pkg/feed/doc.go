// Package feed connects the relay bus to plain line streams.
//
// Replay reads recorded NMEA 2000 traffic in any supported dialect and
// publishes it as "raw frame received" events, standing in for a live
// gateway. Drain writes every "frame to send" event to a writer so that
// input from clients can be observed or forwarded to real hardware.
package feed
