// Command n2k-console is an interactive client for an NMEA 2000 relay.
//
// It prints every line the relay sends and forwards typed lines to the
// relay, which republishes them as frames to send. The connection is
// re-established with backoff when it drops.
//
// Usage:
//
//	n2k-console [host:port] [flags]
//
// Examples:
//
//	# Connect to a local relay and decode what arrives
//	n2k-console localhost:3001 --decode
//
//	# Find a relay over mDNS and connect to the first one that answers
//	n2k-console --discover
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/discovery"
	"github.com/n2k-relay/n2k-go/pkg/version"
)

type options struct {
	discover    bool
	decode      bool
	noReconnect bool
	timeout     time.Duration
	verbose     bool
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "n2k-console [host:port]",
		Short:         "Interactive client for an NMEA 2000 relay",
		Version:       version.Current,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ""
			if len(args) == 1 {
				addr = args[0]
			}
			return run(cmd.Context(), addr, *opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.discover, "discover", false, "Find the relay over mDNS")
	f.BoolVar(&opts.decode, "decode", false, "Decode received lines")
	f.BoolVar(&opts.noReconnect, "no-reconnect", false, "Exit instead of reconnecting when the relay goes away")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Discovery timeout")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	return cmd, opts
}

// resolveAddress turns the positional argument into a dial address. A bare
// host gets the default relay port.
func resolveAddress(arg string) string {
	if arg == "" {
		return ""
	}
	if !strings.Contains(arg, ":") {
		return fmt.Sprintf("%s:%d", arg, config.DefaultPort)
	}
	return arg
}

func discoverFirst(ctx context.Context, timeout time.Duration, logger zerolog.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found, err := discovery.NewBrowser(discovery.BrowserConfig{}).Browse(ctx)
	if err != nil {
		return "", err
	}
	for svc := range found {
		if ok, err := version.CheckCompatible(svc.Version); err != nil || !ok {
			logger.Warn().Str("instance", svc.Instance).Str("version", svc.Version).Msg("skipping incompatible relay")
			continue
		}
		if addr := svc.Dial(); addr != "" {
			logger.Info().Str("instance", svc.Instance).Str("addr", addr).Msg("discovered relay")
			return addr, nil
		}
	}
	return "", errors.New("no relay found")
}

func run(ctx context.Context, arg string, opts options) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "n2k> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: rl.Stderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	addr := resolveAddress(arg)
	if addr == "" {
		if !opts.discover {
			return errors.New("no relay address given (pass host:port or --discover)")
		}
		if addr, err = discoverFirst(ctx, opts.timeout, logger); err != nil {
			return err
		}
	}

	c := newConsole(ConsoleConfig{
		Address:   addr,
		Decode:    opts.decode,
		Reconnect: !opts.noReconnect,
		Out:       rl.Stdout(),
		Logger:    logger,
	})
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	fmt.Fprintln(rl.Stdout(), "Type /help for commands.")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if err != nil {
				readErr <- err
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case <-c.Gone():
			return errors.New("relay connection closed")
		case line := <-lines:
			if c.Handle(ctx, line) {
				return nil
			}
		}
	}
}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
