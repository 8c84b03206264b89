package log

import (
	"time"
)

// Event represents a capture event recorded at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the relay session (UUID). Empty for listener events.
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the relay.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Format is the session's output wire format.
	Format string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Codec layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Lifecycle
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data received from a client.
	DirectionIn Direction = 0
	// DirectionOut indicates data written to a client.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the line framing layer (raw text).
	LayerTransport Layer = 0
	// LayerCodec is the wire codec layer (decoded messages).
	LayerCodec Layer = 1
	// LayerService is the session and listener lifecycle layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerCodec:
		return "CODEC"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a line or decoded message.
	CategoryMessage Category = 0
	// CategoryDrop indicates input that was discarded (decode failure,
	// suppressed echo).
	CategoryDrop Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDrop:
		return "DROP"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures one text line at the transport layer.
type LineEvent struct {
	// Size is the line length in bytes (excluding the terminator).
	Size int `cbor:"1,keyasint"`

	// Text is the line (may be truncated for long lines).
	Text string `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Text was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message at the codec layer.
type MessageEvent struct {
	PGN         uint32 `cbor:"1,keyasint"`
	Priority    uint8  `cbor:"2,keyasint"`
	Source      uint8  `cbor:"3,keyasint"`
	Destination uint8  `cbor:"4,keyasint"`
	Length      int    `cbor:"5,keyasint"`

	// Dialect is the wire format the message was decoded from or encoded to.
	Dialect string `cbor:"6,keyasint,omitempty"`

	// Reason explains a drop (CategoryDrop only).
	Reason string `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures session and listener lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 0
	// StateEntityListener indicates a listener state change.
	StateEntityListener StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityListener:
		return "LISTENER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// MaxCaptureLineSize is the maximum line length kept in a LineEvent.
const MaxCaptureLineSize = 1024

// NewLineEvent builds a LineEvent, truncating long lines.
func NewLineEvent(line string) *LineEvent {
	ev := &LineEvent{Size: len(line), Text: line}
	if len(line) > MaxCaptureLineSize {
		ev.Text = line[:MaxCaptureLineSize]
		ev.Truncated = true
	}
	return ev
}
