package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/connection"
	"github.com/n2k-relay/n2k-go/pkg/discovery"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
	"github.com/n2k-relay/n2k-go/pkg/transport"
)

const rudderLine = "2023-06-01T10:00:00.000Z,2,127250,5,255,2,01,02"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startRelay(t *testing.T, b *bus.Bus) *transport.Server {
	t.Helper()
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Bus:     b,
		Session: transport.SessionConfig{Format: n2k.FormatActisense},
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { server.Stop() })
	return server
}

func newTestConsole(t *testing.T, addr string, reconnect bool) (*Console, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	c := newConsole(ConsoleConfig{
		Address:   addr,
		Reconnect: reconnect,
		Backoff:   connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		Out:       out,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(c.Close)
	return c, out
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, rudderLine, describe(rudderLine, false))

	got := describe(rudderLine, true)
	assert.True(t, strings.HasPrefix(got, rudderLine+"\n"))
	assert.Contains(t, got, "actisense pgn=127250 prio=2 src=5 dst=255 len=2 data=01 02")

	assert.Contains(t, describe("hello there", true), "(not decodable)")
}

func TestResolveAddress(t *testing.T) {
	assert.Equal(t, "", resolveAddress(""))
	assert.Equal(t, "boat.local:3001", resolveAddress("boat.local"))
	assert.Equal(t, "10.0.0.2:4000", resolveAddress("10.0.0.2:4000"))
}

func TestConsoleReceivesAndSends(t *testing.T) {
	b := bus.New()
	server := startRelay(t, b)
	sends, err := b.Subscribe(bus.KindSend, bus.SubscribeOptions{})
	require.NoError(t, err)

	c, out := newTestConsole(t, server.Addr().String(), true)
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool { return b.Count(bus.KindRawOutput) == 1 }, 2*time.Second, 5*time.Millisecond)

	b.Publish(bus.RawTextEvent(rudderLine))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), ",127250,") }, 2*time.Second, 5*time.Millisecond)

	assert.False(t, c.Handle(context.Background(), rudderLine))
	select {
	case ev := <-sends.Events():
		assert.Contains(t, ev.Line, ",127250,5,255,2,01,02")
	case <-time.After(2 * time.Second):
		t.Fatal("line was not republished")
	}
	assert.EqualValues(t, 1, c.sent.Load())
	assert.EqualValues(t, 1, c.received.Load())
}

func TestConsoleCommands(t *testing.T) {
	c, out := newTestConsole(t, "127.0.0.1:1", false)
	ctx := context.Background()

	assert.True(t, c.Handle(ctx, "/quit"))
	assert.True(t, c.Handle(ctx, "  /EXIT  "))
	assert.False(t, c.Handle(ctx, ""))

	c.Handle(ctx, "/decode")
	assert.True(t, c.decode.Load())
	c.Handle(ctx, "/decode off")
	assert.False(t, c.decode.Load())
	c.Handle(ctx, "/decode maybe")
	assert.Contains(t, out.String(), "Usage: /decode")

	c.Handle(ctx, "/bogus")
	assert.Contains(t, out.String(), "Unknown command: /bogus")

	c.Handle(ctx, rudderLine)
	assert.Contains(t, out.String(), "not connected (DISCONNECTED)")

	c.Handle(ctx, "/status")
	assert.Contains(t, out.String(), "State:     DISCONNECTED")

	c.Handle(ctx, "/formats")
	assert.Contains(t, out.String(), "actisense-n2k-ascii (default)")

	c.Handle(ctx, "/connect")
	assert.Contains(t, out.String(), "Usage: /connect")
}

func TestConsoleSwitchRelay(t *testing.T) {
	b1, b2 := bus.New(), bus.New()
	first := startRelay(t, b1)
	second := startRelay(t, b2)

	c, _ := newTestConsole(t, first.Addr().String(), false)
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool { return b1.Count(bus.KindRawOutput) == 1 }, 2*time.Second, 5*time.Millisecond)

	c.Handle(context.Background(), "/connect "+second.Addr().String())
	assert.Equal(t, second.Addr().String(), c.address())
	assert.Equal(t, connection.StateConnected, c.mgr.State())
	require.Eventually(t, func() bool { return b2.Count(bus.KindRawOutput) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return b1.Count(bus.KindRawOutput) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestConsoleGoneWithoutReconnect(t *testing.T) {
	b := bus.New()
	server := startRelay(t, b)

	c, out := newTestConsole(t, server.Addr().String(), false)
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool { return server.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, server.Stop())
	select {
	case <-c.Gone():
	case <-time.After(2 * time.Second):
		t.Fatal("lost connection not signalled")
	}
	assert.Contains(t, out.String(), "connection lost")
	assert.Equal(t, connection.StateDisconnected, c.mgr.State())
}

func TestConsoleDiscover(t *testing.T) {
	c, out := newTestConsole(t, "", false)
	c.browse = func(ctx context.Context) (<-chan *discovery.RelayService, error) {
		ch := make(chan *discovery.RelayService, 2)
		ch <- &discovery.RelayService{Instance: "Helm", Host: "helm.local.", Port: 3001,
			Addresses: []string{"192.168.1.20"}, Format: "ydraw", Version: "1.4.0"}
		ch <- &discovery.RelayService{Instance: "Old", Host: "old.local.", Port: 3001,
			Addresses: []string{"192.168.1.21"}, Format: "actisense", Version: "0.9.0"}
		close(ch)
		return ch, nil
	}

	c.Handle(context.Background(), "/discover 1")
	text := out.String()
	assert.Contains(t, text, "Helm")
	assert.Contains(t, text, "format=ydraw version=1.4.0\n")
	assert.Contains(t, text, "version=0.9.0 (incompatible)")
	assert.Contains(t, text, "2 relay(s) found")

	c.Handle(context.Background(), "/discover soon")
	assert.Contains(t, out.String(), "Usage: /discover")
}
