package feed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/codec"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
	"github.com/n2k-relay/n2k-go/pkg/transport"
)

// DrainConfig configures Drain.
type DrainConfig struct {
	// Format re-encodes each line in the send form of a gateway speaking
	// that format. Empty, actisense and canboat write canonical text.
	Format n2k.Format

	QueueSize    int
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

// Drain writes the line of every "frame to send" event to w, one per line,
// until ctx is done or the bus closes. Events that arrive faster than w
// accepts them are dropped rather than stalling publishers.
func Drain(ctx context.Context, b *bus.Bus, w io.Writer, cfg DrainConfig) error {
	if cfg.Format != "" && !cfg.Format.Valid() {
		return fmt.Errorf("%w: %q", n2k.ErrUnknownFormat, cfg.Format)
	}

	sub, err := b.Subscribe(bus.KindSend, bus.SubscribeOptions{
		QueueSize: cfg.QueueSize,
		Overflow:  bus.OverflowDrop,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		_ = sub.Close()
		if n := sub.Dropped(); n > 0 {
			cfg.Logger.Warn().Uint64("dropped", n).Msg("drain fell behind")
		}
	}()

	lw := transport.NewLineWriter(w, cfg.WriteTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			lines, err := transmitLines(cfg.Format, ev.Line)
			if err != nil {
				cfg.Logger.Debug().Err(err).Str("line", ev.Line).Msg("drain skipped line")
				continue
			}
			if err := lw.WriteLines(lines...); err != nil {
				return err
			}
			cfg.Logger.Trace().Str("origin", ev.Origin).Str("line", ev.Line).Msg("drained")
		}
	}
}

func transmitLines(f n2k.Format, line string) ([]string, error) {
	switch f {
	case "", n2k.FormatActisense, n2k.FormatCanboat:
		return []string{line}, nil
	}
	msg, err := codec.Parse(line)
	if err != nil {
		return nil, err
	}
	return codec.EncodeTransmit(f, msg)
}
