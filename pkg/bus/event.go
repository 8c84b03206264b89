package bus

import (
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// Kind identifies an event stream on the bus.
type Kind uint8

const (
	// KindRawOutput carries frames received from the NMEA 2000 bus.
	KindRawOutput Kind = iota

	// KindSend carries canonical serial text to transmit on the bus.
	KindSend
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRawOutput:
		return "RAW_OUTPUT"
	case KindSend:
		return "SEND"
	default:
		return "UNKNOWN"
	}
}

// RawOutput is the payload of a KindRawOutput event. Exactly one of Text
// and Frame is set.
type RawOutput struct {
	// Text is a pre-formatted canonical text line.
	Text string

	// Frame is a structured frame.
	Frame *n2k.Frame
}

// IsText reports whether the payload is the text variant.
func (r RawOutput) IsText() bool {
	return r.Frame == nil
}

// Event is a single bus event.
type Event struct {
	Kind Kind

	// Output is set for KindRawOutput events.
	Output RawOutput

	// Line is set for KindSend events.
	Line string

	// Origin optionally names the publisher (a session id for republished
	// client input). Subscribers may use it for echo suppression.
	Origin string
}

// RawTextEvent builds a KindRawOutput event carrying canonical text.
func RawTextEvent(text string) Event {
	return Event{Kind: KindRawOutput, Output: RawOutput{Text: text}}
}

// RawFrameEvent builds a KindRawOutput event carrying a structured frame.
func RawFrameEvent(f *n2k.Frame) Event {
	return Event{Kind: KindRawOutput, Output: RawOutput{Frame: f}}
}

// SendEvent builds a KindSend event.
func SendEvent(line, origin string) Event {
	return Event{Kind: KindSend, Line: line, Origin: origin}
}
