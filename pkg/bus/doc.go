// Package bus implements the process-wide canonical event bus that connects
// the NMEA 2000 source with relay sessions.
//
// Two event kinds flow over the bus:
//   - KindRawOutput ("raw frame received"): frames observed on the physical
//     or virtual bus, either as canonical text or as a structured frame.
//   - KindSend ("frame to send"): canonical serial text destined for the bus.
//
// Subscribers attach and detach at any time. Each subscription has its own
// bounded queue; Publish never blocks. When a queue is full the
// subscription's overflow policy applies: OverflowDisconnect stops delivery
// and signals Overflow(), OverflowDrop discards the event and counts it.
//
// Unsubscribing closes the subscription's event channel exactly once.
package bus
