package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/n2k-relay/n2k-go/pkg/codec"
	"github.com/n2k-relay/n2k-go/pkg/connection"
	"github.com/n2k-relay/n2k-go/pkg/discovery"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
	"github.com/n2k-relay/n2k-go/pkg/transport"
	"github.com/n2k-relay/n2k-go/pkg/version"
)

// Console is an interactive relay client. Lines typed by the user are sent
// to the relay; lines from the relay are printed, optionally decoded.
type Console struct {
	client *transport.Client
	mgr    *connection.Manager
	out    io.Writer
	outMu  sync.Mutex
	logger zerolog.Logger
	decode atomic.Bool

	mu   sync.Mutex
	addr string
	conn *transport.ClientConn

	received atomic.Uint64
	sent     atomic.Uint64

	reconnect bool
	gone      chan struct{}

	browse func(ctx context.Context) (<-chan *discovery.RelayService, error)
}

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	Address   string
	Decode    bool
	Reconnect bool
	Backoff   connection.BackoffConfig
	Out       io.Writer
	Logger    zerolog.Logger
}

func newConsole(cfg ConsoleConfig) *Console {
	c := &Console{
		client: transport.NewClient(transport.ClientConfig{WriteTimeout: 5 * time.Second}),
		out:    cfg.Out,
		logger: cfg.Logger,
		addr:   cfg.Address,

		reconnect: cfg.Reconnect,
		gone:      make(chan struct{}, 1),
		browse: discovery.NewBrowser(discovery.BrowserConfig{}).Browse,
	}
	c.decode.Store(cfg.Decode)
	c.mgr = connection.NewManagerWithConfig(c.dial, connection.ManagerConfig{
		Backoff:          cfg.Backoff,
		DisableReconnect: !cfg.Reconnect,
		Logger:           cfg.Logger,
	})
	c.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		c.printf("-- reconnecting to %s in %s (attempt %d)\n", c.address(), delay.Round(time.Millisecond), attempt)
	})
	c.mgr.OnConnected(func() {
		c.printf("-- connected to %s\n", c.address())
	})
	c.mgr.StartReconnectLoop()
	return c
}

// Connect performs the initial connect.
func (c *Console) Connect(ctx context.Context) error {
	return c.mgr.Connect(ctx)
}

// Close disconnects and stops reconnecting.
func (c *Console) Close() {
	c.mgr.Close()
	c.dropConn()
}

// Gone signals a lost connection when reconnecting is disabled.
func (c *Console) Gone() <-chan struct{} {
	return c.gone
}

func (c *Console) address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// dial is the connection.ConnectFunc.
func (c *Console) dial(ctx context.Context) error {
	addr := c.address()
	if addr == "" {
		return fmt.Errorf("no relay address")
	}
	conn, err := c.client.Connect(ctx, addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	go c.readLoop(conn)
	return nil
}

func (c *Console) readLoop(conn *transport.ClientConn) {
	for {
		line, err := conn.Receive(0)
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			if current {
				c.conn = nil
			}
			c.mu.Unlock()
			if current {
				c.printf("-- connection lost: %v\n", err)
				c.mgr.NotifyConnectionLost()
				if !c.reconnect {
					select {
					case c.gone <- struct{}{}:
					default:
					}
				}
			}
			return
		}
		c.received.Add(1)
		c.printf("%s\n", describe(line, c.decode.Load()))
	}
}

func (c *Console) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Console) current() *transport.ClientConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Handle executes one input line and reports whether the console should
// exit. Input starting with '/' is a command; anything else is sent.
func (c *Console) Handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if !strings.HasPrefix(input, "/") {
		c.send(input)
		return false
	}

	parts := strings.Fields(input[1:])
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "quit", "exit", "q":
		return true
	case "decode":
		c.cmdDecode(args)
	case "raw":
		c.cmdRaw(strings.TrimSpace(strings.TrimPrefix(input[1:], parts[0])))
	case "status":
		c.cmdStatus()
	case "connect":
		c.cmdConnect(ctx, args)
	case "discover":
		c.cmdDiscover(ctx, args)
	case "formats":
		c.cmdFormats()
	default:
		c.printf("Unknown command: /%s (type /help for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	c.printf(`
N2K Relay Console:
  <line>              - Send a line to the relay (any supported dialect)
  /raw <text>         - Send text without a line terminator
  /decode [on|off]    - Toggle decoding of received lines
  /status             - Show connection status
  /connect <host:port>- Switch to another relay
  /discover [seconds] - Browse the local network for relays
  /formats            - List wire formats
  /help               - Show this help
  /quit               - Exit
`)
}

func (c *Console) send(line string) {
	conn := c.current()
	if conn == nil {
		c.printf("-- not connected (%s)\n", c.mgr.State())
		return
	}
	if _, _, err := codec.ParseDialect(line); err != nil {
		c.printf("-- warning: relay will drop this line: %v\n", err)
	}
	if err := conn.Send(line); err != nil {
		c.printf("-- send failed: %v\n", err)
		return
	}
	c.sent.Add(1)
}

func (c *Console) cmdRaw(text string) {
	conn := c.current()
	if conn == nil {
		c.printf("-- not connected (%s)\n", c.mgr.State())
		return
	}
	if err := conn.SendRaw([]byte(text)); err != nil {
		c.printf("-- send failed: %v\n", err)
	}
}

func (c *Console) cmdDecode(args []string) {
	switch {
	case len(args) == 0:
		c.decode.Store(!c.decode.Load())
	case strings.EqualFold(args[0], "on"):
		c.decode.Store(true)
	case strings.EqualFold(args[0], "off"):
		c.decode.Store(false)
	default:
		c.printf("Usage: /decode [on|off]\n")
		return
	}
	c.printf("-- decode %s\n", onOff(c.decode.Load()))
}

func (c *Console) cmdStatus() {
	c.printf("Relay:     %s\n", c.address())
	c.printf("State:     %s\n", c.mgr.State())
	c.printf("Received:  %d lines\n", c.received.Load())
	c.printf("Sent:      %d lines\n", c.sent.Load())
	c.printf("Decode:    %s\n", onOff(c.decode.Load()))
	if n := c.mgr.BackoffAttempts(); n > 0 {
		c.printf("Attempts:  %d\n", n)
	}
}

func (c *Console) cmdConnect(ctx context.Context, args []string) {
	if len(args) != 1 {
		c.printf("Usage: /connect <host:port>\n")
		return
	}
	c.mu.Lock()
	c.addr = args[0]
	c.mu.Unlock()

	c.dropConn()
	c.mgr.Disconnect()
	if c.mgr.State() == connection.StateDisconnected {
		if err := c.mgr.Connect(ctx); err != nil {
			c.printf("-- connect failed: %v\n", err)
		}
	}
}

func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	wait := 3 * time.Second
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0] + "s")
		if err != nil {
			c.printf("Usage: /discover [seconds]\n")
			return
		}
		wait = d
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	found, err := c.browse(ctx)
	if err != nil {
		c.printf("-- discovery failed: %v\n", err)
		return
	}

	n := 0
	for svc := range found {
		n++
		c.printf("  %-24s %-22s format=%s version=%s%s\n",
			svc.Instance, svc.Dial(), svc.Format, orDash(svc.Version), compatNote(svc.Version))
	}
	c.printf("-- %d relay(s) found\n", n)
}

func (c *Console) cmdFormats() {
	for _, f := range n2k.Formats() {
		note := ""
		if f == n2k.DefaultFormat {
			note = " (default)"
		}
		c.printf("  %s%s\n", f, note)
	}
}

// describe renders a received line, followed by its decoded header when
// decode is on.
func describe(line string, decode bool) string {
	if !decode {
		return line
	}
	msg, dialect, err := codec.ParseDialect(line)
	if err != nil {
		return line + "\n    (not decodable)"
	}
	return fmt.Sprintf("%s\n    %s pgn=%d prio=%d src=%d dst=%d len=%d data=%s",
		line, dialect, msg.PGN, msg.Priority, msg.Source, msg.Destination,
		len(msg.Data), strings.Join(n2k.HexTokens(msg.Data), " "))
}

func compatNote(v string) string {
	ok, err := version.CheckCompatible(v)
	if err != nil || !ok {
		return " (incompatible)"
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
