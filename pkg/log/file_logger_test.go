package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.n2kcap")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.n2kcap")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	ts := time.Date(2024, 1, 2, 17, 33, 21, 107000000, time.UTC)
	logger.Log(Event{
		Timestamp:  ts,
		SessionID:  "sess-1",
		Direction:  DirectionIn,
		Layer:      LayerTransport,
		Category:   CategoryMessage,
		RemoteAddr: "127.0.0.1:50000",
		Line:       NewLineEvent("2024-01-02T17:33:21.107Z,2,127250,5,255,2,01,02"),
	})
	logger.Log(Event{
		Timestamp: ts,
		SessionID: "sess-1",
		Layer:     LayerCodec,
		Message:   &MessageEvent{PGN: 127250, Priority: 2, Source: 5, Destination: 255, Length: 2, Dialect: "actisense"},
	})
	if got := logger.Written(); got != 2 {
		t.Errorf("Written() = %d, want 2", got)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !first.Timestamp.Equal(ts) {
		t.Errorf("timestamp: got %v, want %v", first.Timestamp, ts)
	}
	if first.Line == nil || first.Line.Size != 47 {
		t.Errorf("line event: got %+v", first.Line)
	}
	if first.RemoteAddr != "127.0.0.1:50000" {
		t.Errorf("remote: got %q", first.RemoteAddr)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if second.Message == nil || second.Message.PGN != 127250 || second.Message.Dialect != "actisense" {
		t.Errorf("message event: got %+v", second.Message)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.n2kcap")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), SessionID: "s"})
		logger.Close()
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("got %d events, want 2", count)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "relay.n2kcap"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	// Logging after close is ignored.
	logger.Log(Event{SessionID: "late"})
	if logger.Written() != 0 {
		t.Error("event written after close")
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.n2kcap")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				logger.Log(Event{Timestamp: time.Now(), SessionID: "c", Line: NewLineEvent("x")})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	count := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		count++
	}
	if count != 400 {
		t.Errorf("got %d events, want 400", count)
	}
}
