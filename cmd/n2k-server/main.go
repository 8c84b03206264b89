// Command n2k-server runs the NMEA 2000 relay as a standalone process.
//
// Without a host bus the server needs a source of "raw frame received"
// events: --replay plays a recording (or stdin with "-") into the bus.
// --drain prints the lines clients send, as canonical serial text or, with
// --drain-format, in the send form of a gateway.
//
// Usage:
//
//	n2k-server [flags]
//
// Examples:
//
//	# Serve candump1 on the default port, replaying a recording forever
//	n2k-server --format candump1 --replay boat.log --replay-loop --replay-interval 50ms
//
//	# Pipe a live gateway in and show client input
//	socat - TCP:gateway:1457 | n2k-server --replay - --drain
//
//	# Everything from a file, with a WebSocket listener and metrics
//	n2k-server --config /etc/n2k/relay.yaml --ws :3002 --metrics :9101
//
// SIGHUP reloads the configuration file and restarts the listeners.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/feed"
	"github.com/n2k-relay/n2k-go/pkg/service"
	"github.com/n2k-relay/n2k-go/pkg/version"
)

type options struct {
	configPath string

	port          int
	address       string
	format        string
	wsAddress     string
	metricsAddr   string
	discovery     bool
	instance      string
	capturePath   string
	logLevel      string
	pretty        bool
	suppressEcho  bool
	maxLineLength int

	replay         string
	replayInterval time.Duration
	replayLoop     bool
	structured     bool
	drain          bool
	drainFormat    string
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "n2k-server",
		Short:         "Relay NMEA 2000 traffic to TCP clients in their own wire format",
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, *opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	f.IntVarP(&opts.port, "port", "p", config.DefaultPort, "TCP listen port")
	f.StringVar(&opts.address, "address", "", "TCP listen address (overrides --port)")
	f.StringVarP(&opts.format, "format", "f", string(config.Default().Format), "Wire format sent to clients")
	f.StringVar(&opts.wsAddress, "ws", "", "WebSocket listen address")
	f.StringVar(&opts.metricsAddr, "metrics", "", "Prometheus metrics listen address")
	f.BoolVar(&opts.discovery, "mdns", false, "Advertise the listener over mDNS")
	f.StringVar(&opts.instance, "instance", "", "mDNS instance name")
	f.StringVar(&opts.capturePath, "capture", "", "Write a protocol capture file")
	f.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level: trace, debug, info, warn, error")
	f.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs")
	f.BoolVar(&opts.suppressEcho, "suppress-echo", false, "Do not send clients their own republished messages")
	f.IntVar(&opts.maxLineLength, "max-line-length", 0, "Close clients that send longer lines (0 = unlimited)")

	f.StringVar(&opts.replay, "replay", "", "Replay a recording into the bus (\"-\" for stdin)")
	f.DurationVar(&opts.replayInterval, "replay-interval", 0, "Pause between replayed messages")
	f.BoolVar(&opts.replayLoop, "replay-loop", false, "Restart the recording at its end")
	f.BoolVar(&opts.structured, "replay-structured", false, "Replay as structured frames instead of text")
	f.BoolVar(&opts.drain, "drain", false, "Print client input (frames to send) on stdout")
	f.StringVar(&opts.drainFormat, "drain-format", "", "Print drained frames in the send form of this gateway format (e.g. ydraw, ikonvert)")

	return cmd, opts
}

// loadConfig reads the configuration file, if any, then applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = opts.port
	}
	if f.Changed("address") {
		cfg.Address = opts.address
	}
	if f.Changed("format") {
		cfg.Format = n2kFormat(opts.format)
	}
	if f.Changed("ws") {
		cfg.WebSocket.Address = opts.wsAddress
	}
	if f.Changed("metrics") {
		cfg.Metrics.Address = opts.metricsAddr
	}
	if f.Changed("mdns") {
		cfg.Discovery.Enabled = opts.discovery
	}
	if f.Changed("instance") {
		cfg.Discovery.Instance = opts.instance
	}
	if f.Changed("capture") {
		cfg.Capture.Path = opts.capturePath
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("pretty") {
		cfg.Log.Pretty = opts.pretty
	}
	if f.Changed("suppress-echo") {
		cfg.SuppressEcho = opts.suppressEcho
	}
	if f.Changed("max-line-length") {
		cfg.MaxLineLength = opts.maxLineLength
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	outFormat, err := drainFormat(opts.drainFormat)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := service.New(service.Options{Logger: logger})
	defer relay.Close()

	if err := relay.Start(ctx, cfg); err != nil {
		return err
	}

	if opts.drain {
		drainCfg := feed.DrainConfig{Format: outFormat, Logger: logger}
		go func() {
			if err := feed.Drain(ctx, relay.Bus(), cmd.OutOrStdout(), drainCfg); err != nil {
				logger.Error().Err(err).Msg("drain stopped")
			}
		}()
	}
	if opts.replay != "" {
		go replay(ctx, relay, opts, cmd.InOrStdin(), logger)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return nil
		case <-hup:
			reloaded, err := loadConfig(cmd, opts)
			if err != nil {
				logger.Error().Err(err).Msg("reload failed, keeping current configuration")
				continue
			}
			if err := relay.Restart(ctx, reloaded); err != nil {
				logger.Error().Err(err).Msg("restart failed")
				continue
			}
			logger.Info().Msg("configuration reloaded")
		}
	}
}

func replay(ctx context.Context, relay *service.Relay, opts options, stdin io.Reader, logger zerolog.Logger) {
	src := stdin
	if opts.replay != "-" {
		f, err := os.Open(opts.replay)
		if err != nil {
			logger.Error().Err(err).Msg("open replay file")
			return
		}
		defer f.Close()
		src = f
	}

	stats, err := feed.Replay(ctx, src, relay.Bus(), feed.ReplayConfig{
		Interval:   opts.replayInterval,
		Structured: opts.structured,
		Loop:       opts.replayLoop,
		Logger:     logger,
	})
	ev := logger.Info()
	if err != nil && !errors.Is(err, context.Canceled) {
		ev = logger.Error().Err(err)
	}
	ev.Int("lines", stats.Lines).
		Int("published", stats.Published).
		Int("invalid", stats.Invalid).
		Msg("replay finished")
}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
