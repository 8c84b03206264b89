package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/codec"
	"github.com/n2k-relay/n2k-go/pkg/log"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// SessionState is the lifecycle state of a session.
type SessionState int32

const (
	// StateConnecting indicates the session is subscribed but not running.
	StateConnecting SessionState = iota

	// StateActive indicates the session is relaying in both directions.
	StateActive

	// StateClosing indicates teardown is in progress.
	StateClosing

	// StateClosed indicates the session has released all resources.
	StateClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session errors.
var (
	// ErrQueueOverflow indicates the session fell behind the bus and its
	// delivery queue filled.
	ErrQueueOverflow = errors.New("outbound queue overflow")
)

// Close reasons reported in logs and to the Observer.
const (
	reasonEOF      = "eof"
	reasonClosed   = "closed"
	reasonShutdown = "shutdown"
	reasonBus      = "bus_closed"
	reasonError    = "error"
)

// inboundQueue is the number of framed lines buffered between the reader
// goroutine and the session goroutine.
const inboundQueue = 64

// Stream is the byte stream a session runs over. net.Conn satisfies it.
type Stream interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

// SessionConfig configures a session.
type SessionConfig struct {
	// Format is the wire format written to the client. It is fixed for
	// the life of the session. An unknown format writes nothing.
	Format n2k.Format

	// MaxLineLength bounds inbound lines (0 = unbounded).
	MaxLineLength int

	// QueueSize is the bus delivery queue length (default bus.DefaultQueueSize).
	QueueSize int

	// WriteTimeout bounds each line write (0 = no deadline).
	WriteTimeout time.Duration

	// SuppressEcho drops outbound messages this session itself republished
	// within EchoWindow.
	SuppressEcho bool
	EchoWindow   time.Duration

	// Logger for operational logging.
	Logger zerolog.Logger

	// Capture receives protocol capture events (optional).
	Capture log.Logger

	// Observer receives counters (optional).
	Observer Observer

	// Now overrides the clock used for canonical timestamps.
	Now func() time.Time
}

// Session relays between one client stream and the bus. A single goroutine
// (Run) owns the framer output, the fast-packet assembler, the echo filter
// and all writes; a reader goroutine feeds it framed lines.
type Session struct {
	id     string
	stream Stream
	remote string
	format n2k.Format
	cfg    SessionConfig

	bus *bus.Bus
	sub *bus.Subscription

	reader    *LineReader
	writer    *LineWriter
	assembler *n2k.Assembler
	echo      *echoFilter

	logger   zerolog.Logger
	capture  log.Logger
	observer Observer
	now      func() time.Time

	state       atomic.Int32
	closeCh     chan struct{}
	closeOnce   sync.Once
	releaseOnce sync.Once
	done        chan struct{}
}

// NewSession subscribes a new session to raw output on b. The session does
// nothing until Run is called.
func NewSession(stream Stream, b *bus.Bus, cfg SessionConfig) (*Session, error) {
	sub, err := b.Subscribe(bus.KindRawOutput, bus.SubscribeOptions{
		QueueSize: cfg.QueueSize,
		Overflow:  bus.OverflowDisconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s := &Session{
		id:        uuid.New().String(),
		stream:    stream,
		format:    cfg.Format,
		cfg:       cfg,
		bus:       b,
		sub:       sub,
		assembler: n2k.NewAssembler(),
		capture:   cfg.Capture,
		observer:  cfg.Observer,
		now:       cfg.Now,
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	if addr := stream.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.SuppressEcho {
		s.echo = newEchoFilter(cfg.EchoWindow)
	}

	s.logger = cfg.Logger.With().
		Str("session", s.id).
		Str("remote", s.remote).
		Str("format", string(s.format)).
		Logger()

	s.reader = NewLineReaderWithMax(stream, cfg.MaxLineLength)
	s.writer = NewLineWriter(stream, cfg.WriteTimeout)
	if s.capture != nil {
		s.reader.SetLogger(s.capture, s.id)
		s.writer.SetLogger(s.capture, s.id)
	}

	s.state.Store(int32(StateConnecting))
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Format returns the session's output format.
func (s *Session) Format() n2k.Format {
	return s.format
}

// RemoteAddr returns the client address.
func (s *Session) RemoteAddr() string {
	return s.remote
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close releases the bus subscription and closes the stream. Run returns
// shortly after. Safe to call multiple times and concurrently with Run.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.stream.Close()
	})
	s.release()
	return err
}

// Run relays until the stream ends, ctx is cancelled, Close is called or a
// transport error occurs. It returns the transport error, or nil for an
// orderly end.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.setState(StateActive, "")
	s.observer.SessionOpened(string(s.format))
	s.logger.Info().Msg("session opened")

	lines := make(chan string, inboundQueue)
	readerDone := make(chan struct{})
	var readErr error
	go func() {
		defer close(readerDone)
		defer close(lines)
		for {
			line, err := s.reader.ReadLine()
			if err != nil {
				readErr = err
				return
			}
			select {
			case lines <- line:
			case <-s.closeCh:
				return
			}
		}
	}()

	var (
		cause  error
		reason string
	)
loop:
	for {
		select {
		case <-ctx.Done():
			reason = reasonShutdown
			break loop

		case <-s.closeCh:
			reason = reasonClosed
			break loop

		case <-s.sub.Overflow():
			cause = ErrQueueOverflow
			break loop

		case ev, ok := <-s.sub.Events():
			if !ok {
				reason = reasonBus
				if s.closing() {
					reason = reasonClosed
				}
				break loop
			}
			if err := s.outbound(ev); err != nil {
				cause = err
				break loop
			}

		case line, ok := <-lines:
			if !ok {
				reason, cause = s.readEnd(readErr)
				break loop
			}
			s.inbound(line)
		}
	}

	if cause != nil {
		reason = reasonError
	}
	s.teardown(cause, reason)
	<-readerDone
	return cause
}

func (s *Session) closing() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// readEnd classifies the reader's terminal error.
func (s *Session) readEnd(err error) (string, error) {
	if s.closing() {
		return reasonClosed, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return reasonEOF, nil
	}
	return reasonError, fmt.Errorf("read: %w", err)
}

func (s *Session) teardown(cause error, reason string) {
	s.setState(StateClosing, reason)
	s.release()
	s.closeOnce.Do(func() {
		close(s.closeCh)
		_ = s.stream.Close()
	})

	if cause != nil {
		s.logger.Warn().Err(cause).Msg("session error")
		s.logCapture(log.Event{
			Layer:    log.LayerTransport,
			Category: log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: cause.Error(),
				Context: "session",
			},
		})
	}
	s.logger.Info().Str("reason", reason).Msg("session closed")

	s.setState(StateClosed, reason)
	s.observer.SessionClosed(string(s.format), reason)
}

// release detaches the session from the bus exactly once.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		if err := s.sub.Close(); err != nil && !errors.Is(err, bus.ErrSubscriptionNotFound) {
			s.logger.Debug().Err(err).Msg("unsubscribe")
		}
	})
}

// outbound writes one bus event to the client in the session's format.
func (s *Session) outbound(ev bus.Event) error {
	now := s.now()
	lines, msg, drop := Render(s.format, ev.Output, now)
	if drop != "" {
		s.observer.Dropped("out", drop)
		s.logger.Trace().Str("drop", drop).Msg("outbound event dropped")
		return nil
	}
	if s.echo != nil && msg != nil && s.echo.echo(msg, now) {
		s.observer.Dropped("out", DropEcho)
		s.logDrop(log.DirectionOut, msg, "", DropEcho)
		return nil
	}
	if len(lines) == 0 {
		return nil
	}
	if err := s.writer.WriteLines(lines...); err != nil {
		return err
	}
	s.observer.LinesWritten(string(s.format), len(lines))
	return nil
}

// inbound decodes a client line and republishes it as a frame to send.
func (s *Session) inbound(line string) {
	s.observer.LineReceived(string(s.format))

	msg, dialect, err := codec.ParseDialect(line)
	if err != nil {
		s.observer.Dropped("in", DropDecode)
		s.logger.Debug().Err(err).Str("line", line).Msg("inbound line ignored")
		s.logCapture(log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerCodec,
			Category:  log.CategoryDrop,
			Message:   &log.MessageEvent{Reason: err.Error()},
		})
		return
	}
	if dialect.FrameBased() {
		if msg = s.assembler.Add(msg); msg == nil {
			return
		}
	}

	now := s.now()
	text := codec.ToActisenseSerial(msg, now)
	if s.echo != nil {
		s.echo.remember(msg, now)
	}
	s.bus.Publish(bus.SendEvent(text, s.id))
	s.observer.Republished(string(dialect))
	s.logger.Debug().Str("line", text).Msg("republished")
	s.logCapture(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerCodec,
		Category:  log.CategoryMessage,
		Message:   messageEvent(msg, string(dialect), ""),
	})
}

// Render converts a raw output event to the lines a client in format f
// receives. It returns the decoded message when there is one, and a drop
// reason when nothing is written because of a failure.
func Render(f n2k.Format, out bus.RawOutput, now time.Time) ([]string, *n2k.Message, string) {
	text := out.Text
	if out.Frame != nil {
		text = codec.FrameToActisense(out.Frame, now)
		if f == n2k.FormatActisense {
			msg, _ := codec.Parse(text)
			return []string{text}, msg, ""
		}
	}

	msg, err := codec.Parse(text)
	if err != nil {
		return nil, nil, DropDecode
	}
	if f == n2k.FormatCanboat {
		return []string{text}, msg, ""
	}
	enc, ok := codec.Encoder(f)
	if !ok {
		return nil, msg, DropUnsupported
	}
	lines, err := enc(msg)
	if err != nil {
		return nil, msg, DropEncode
	}
	return lines, msg, ""
}

func (s *Session) setState(state SessionState, reason string) {
	old := SessionState(s.state.Swap(int32(state)))
	if old == state {
		return
	}
	s.logCapture(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: old.String(),
			NewState: state.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logDrop(dir log.Direction, msg *n2k.Message, dialect, reason string) {
	s.logCapture(log.Event{
		Direction: dir,
		Layer:     log.LayerCodec,
		Category:  log.CategoryDrop,
		Message:   messageEvent(msg, dialect, reason),
	})
}

func (s *Session) logCapture(ev log.Event) {
	if s.capture == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.SessionID = s.id
	ev.RemoteAddr = s.remote
	ev.Format = string(s.format)
	s.capture.Log(ev)
}

func messageEvent(msg *n2k.Message, dialect, reason string) *log.MessageEvent {
	return &log.MessageEvent{
		PGN:         msg.PGN,
		Priority:    msg.Priority,
		Source:      msg.Source,
		Destination: msg.Destination,
		Length:      len(msg.Data),
		Dialect:     dialect,
		Reason:      reason,
	}
}
