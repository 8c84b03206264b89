package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/log"
)

// Framing constants.
const (
	// LineDelimiter terminates every line in both directions.
	LineDelimiter = '\n'

	// DefaultReadBufferSize is the chunk size used by LineReader.
	DefaultReadBufferSize = 4096
)

// Framing errors.
var (
	// ErrLineTooLong indicates a line exceeded the configured maximum.
	ErrLineTooLong = errors.New("line too long")
)

// LineFramer splits a byte stream delivered in arbitrary chunks into
// newline-terminated lines. A trailing '\r' is stripped from each line.
// Empty lines are emitted. A LineFramer is not safe for concurrent use.
type LineFramer struct {
	partial []byte
	max     int
}

// NewLineFramer creates a framer. maxLineLength bounds the length of a
// single line; 0 disables the bound.
func NewLineFramer(maxLineLength int) *LineFramer {
	if maxLineLength < 0 {
		maxLineLength = 0
	}
	return &LineFramer{max: maxLineLength}
}

// Push consumes a chunk and returns the lines it completes, in order.
// If a line exceeds the maximum, the lines completed before it are returned
// together with ErrLineTooLong and the buffered partial line is discarded.
func (f *LineFramer) Push(chunk []byte) ([]string, error) {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, LineDelimiter)
		if i < 0 {
			f.partial = append(f.partial, chunk...)
			break
		}
		f.partial = append(f.partial, chunk[:i]...)
		chunk = chunk[i+1:]

		line := f.partial
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if f.max > 0 && len(line) > f.max {
			n := len(line)
			f.partial = f.partial[:0]
			return lines, fmt.Errorf("%w: %d > %d", ErrLineTooLong, n, f.max)
		}
		lines = append(lines, string(line))
		f.partial = f.partial[:0]
	}

	if f.max > 0 && len(f.partial) > f.max {
		n := len(f.partial)
		f.partial = f.partial[:0]
		return lines, fmt.Errorf("%w: %d > %d bytes unterminated", ErrLineTooLong, n, f.max)
	}
	return lines, nil
}

// Pending returns the number of buffered bytes of the unterminated line.
func (f *LineFramer) Pending() int {
	return len(f.partial)
}

// Reset discards the unterminated line. Called at end of stream.
func (f *LineFramer) Reset() {
	f.partial = f.partial[:0]
}

// LineReader reads framed lines from an underlying reader.
type LineReader struct {
	r      io.Reader
	framer *LineFramer
	buf    []byte
	queue  []string
	err    error

	logger    log.Logger
	sessionID string
}

// NewLineReader creates a reader with no line length bound.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderWithMax(r, 0)
}

// NewLineReaderWithMax creates a reader that fails with ErrLineTooLong on
// lines longer than maxLineLength.
func NewLineReaderWithMax(r io.Reader, maxLineLength int) *LineReader {
	return &LineReader{
		r:      r,
		framer: NewLineFramer(maxLineLength),
		buf:    make([]byte, DefaultReadBufferSize),
	}
}

// SetLogger configures capture for this reader. Pass nil to disable.
func (lr *LineReader) SetLogger(logger log.Logger, sessionID string) {
	lr.logger = logger
	lr.sessionID = sessionID
}

// ReadLine returns the next line. At end of stream any unterminated line
// is discarded and io.EOF is returned.
func (lr *LineReader) ReadLine() (string, error) {
	for len(lr.queue) == 0 {
		if lr.err != nil {
			return "", lr.err
		}
		n, err := lr.r.Read(lr.buf)
		if n > 0 {
			lines, ferr := lr.framer.Push(lr.buf[:n])
			lr.queue = append(lr.queue, lines...)
			if ferr != nil {
				lr.err = ferr
			}
		}
		if err != nil && lr.err == nil {
			if errors.Is(err, io.EOF) {
				lr.framer.Reset()
			}
			lr.err = err
		}
	}

	line := lr.queue[0]
	lr.queue = lr.queue[1:]
	if lr.logger != nil {
		lr.logger.Log(lineEvent(lr.sessionID, line, log.DirectionIn))
	}
	return line, nil
}

// deadlineWriter is implemented by net.Conn and the websocket stream.
type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// LineWriter writes newline-terminated lines. Each line is a single Write
// call so message-oriented transports see one line per message.
type LineWriter struct {
	w       io.Writer
	timeout time.Duration
	mu      sync.Mutex

	logger    log.Logger
	sessionID string
}

// NewLineWriter creates a writer. A positive timeout sets a write deadline
// per line when the underlying writer supports deadlines.
func NewLineWriter(w io.Writer, timeout time.Duration) *LineWriter {
	return &LineWriter{w: w, timeout: timeout}
}

// SetLogger configures capture for this writer. Pass nil to disable.
func (lw *LineWriter) SetLogger(logger log.Logger, sessionID string) {
	lw.logger = logger
	lw.sessionID = sessionID
}

// WriteLines writes each line followed by '\n', in order.
// Thread-safe: can be called from multiple goroutines.
func (lw *LineWriter) WriteLines(lines ...string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	dw, hasDeadline := lw.w.(deadlineWriter)
	buf := make([]byte, 0, 128)
	for _, line := range lines {
		buf = append(buf[:0], line...)
		buf = append(buf, LineDelimiter)

		if hasDeadline && lw.timeout > 0 {
			_ = dw.SetWriteDeadline(time.Now().Add(lw.timeout))
		}
		if _, err := lw.w.Write(buf); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
		if lw.logger != nil {
			lw.logger.Log(lineEvent(lw.sessionID, line, log.DirectionOut))
		}
	}
	return nil
}

func lineEvent(sessionID, line string, direction log.Direction) log.Event {
	return log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Line:      log.NewLineEvent(line),
	}
}
