package transport

// Observer receives session counters. pkg/metrics provides a Prometheus
// implementation; a nil Observer in a config means NopObserver.
type Observer interface {
	SessionOpened(format string)
	SessionClosed(format string, reason string)
	LineReceived(format string)
	LinesWritten(format string, n int)
	Republished(dialect string)
	Dropped(direction string, reason string)
}

// Drop reasons reported to Observer.Dropped.
const (
	DropDecode      = "decode"
	DropEncode      = "encode"
	DropEcho        = "echo"
	DropUnsupported = "unsupported_format"
)

// NopObserver discards all counters.
type NopObserver struct{}

func (NopObserver) SessionOpened(string)         {}
func (NopObserver) SessionClosed(string, string) {}
func (NopObserver) LineReceived(string)          {}
func (NopObserver) LinesWritten(string, int)     {}
func (NopObserver) Republished(string)           {}
func (NopObserver) Dropped(string, string)       {}

var _ Observer = NopObserver{}
