package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/codec"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
	"github.com/n2k-relay/n2k-go/pkg/transport"
)

// ErrNotSeekable is returned when Loop is requested on a one-shot reader.
var ErrNotSeekable = errors.New("loop requires a seekable reader")

// DefaultMaxLineLength bounds replayed lines.
const DefaultMaxLineLength = 4096

// ReplayConfig configures Replay.
type ReplayConfig struct {
	// Interval is the pause between published messages. Zero publishes as
	// fast as the bus accepts them.
	Interval time.Duration

	// Structured publishes structured frames instead of canonical text.
	Structured bool

	// Loop rewinds the reader at the end. The reader must be an io.Seeker.
	Loop bool

	MaxLineLength int
	Logger        zerolog.Logger

	// Now stamps lines that carry no timestamp of their own.
	Now func() time.Time
}

// ReplayStats summarizes a replay. Blank lines are not counted.
type ReplayStats struct {
	Lines     int
	Published int
	Skipped   int // comments
	Invalid   int
}

// Replay publishes every message read from r onto b until r is exhausted
// or ctx is done. Blank lines and lines starting with '#' are skipped.
// Fast-packet frames in CAN-frame dialects are reassembled first.
func Replay(ctx context.Context, r io.Reader, b *bus.Bus, cfg ReplayConfig) (ReplayStats, error) {
	var stats ReplayStats
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	seeker, seekable := r.(io.Seeker)
	if cfg.Loop && !seekable {
		return stats, ErrNotSeekable
	}

	p := &replayer{cfg: cfg, bus: b, assembler: n2k.NewAssembler(), stats: &stats}
	for {
		if err := p.pass(ctx, r); err != nil {
			return stats, err
		}
		if !cfg.Loop {
			return stats, nil
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return stats, fmt.Errorf("rewind: %w", err)
		}
	}
}

type replayer struct {
	cfg       ReplayConfig
	bus       *bus.Bus
	assembler *n2k.Assembler
	stats     *ReplayStats
	published bool
}

func (p *replayer) pass(ctx context.Context, r io.Reader) error {
	// The trailing newline keeps an unterminated last line.
	lr := transport.NewLineReaderWithMax(io.MultiReader(r, strings.NewReader("\n")), p.cfg.MaxLineLength)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := lr.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", p.stats.Lines+1, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p.stats.Lines++

		ev, ok := p.event(line)
		if !ok {
			continue
		}
		if err := p.pace(ctx); err != nil {
			return err
		}
		p.bus.Publish(ev)
		p.stats.Published++
	}
}

// event converts one line to a bus event.
func (p *replayer) event(line string) (bus.Event, bool) {
	if strings.HasPrefix(line, "#") {
		p.stats.Skipped++
		return bus.Event{}, false
	}

	msg, dialect, err := codec.ParseDialect(line)
	if err != nil {
		p.stats.Invalid++
		p.cfg.Logger.Debug().Err(err).Int("line", p.stats.Lines).Msg("replay line not decodable")
		return bus.Event{}, false
	}
	if dialect.FrameBased() {
		if msg = p.assembler.Add(msg); msg == nil {
			return bus.Event{}, false
		}
	}

	if p.cfg.Structured {
		return bus.RawFrameEvent(&n2k.Frame{
			PGN:         msg.PGN,
			Priority:    msg.Priority,
			Source:      msg.Source,
			Destination: msg.Destination,
			Data:        n2k.HexTokens(msg.Data),
			Length:      len(msg.Data),
		}), true
	}
	if dialect == n2k.FormatActisense {
		return bus.RawTextEvent(line), true
	}
	return bus.RawTextEvent(codec.ToActisenseSerial(msg, p.stamp(msg))), true
}

func (p *replayer) stamp(msg *n2k.Message) time.Time {
	if msg.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err == nil {
			return t
		}
	}
	return p.cfg.Now()
}

// pace waits Interval before every message but the first.
func (p *replayer) pace(ctx context.Context) error {
	if !p.published {
		p.published = true
		return nil
	}
	if p.cfg.Interval <= 0 {
		return nil
	}
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
