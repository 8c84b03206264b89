package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/bus"
	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/discovery"
	"github.com/n2k-relay/n2k-go/pkg/log"
	"github.com/n2k-relay/n2k-go/pkg/metrics"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
	"github.com/n2k-relay/n2k-go/pkg/service/mocks"
	"github.com/n2k-relay/n2k-go/pkg/transport"
	"github.com/n2k-relay/n2k-go/pkg/version"
)

const rudderText = "2024-01-02T17:33:21.107Z,2,127250,5,255,2,01,02"

type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.Format = n2k.FormatCandump1
	return cfg
}

func newRelay(t *testing.T) *Relay {
	t.Helper()
	r := New(Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func dial(t *testing.T, addr net.Addr) *transport.ClientConn {
	t.Helper()
	conn, err := transport.NewClient(transport.ClientConfig{}).Connect(context.Background(), addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelayPluginIdentity(t *testing.T) {
	r := newRelay(t)
	assert.Equal(t, "signalk-n2k-server", r.ID())
	assert.Equal(t, "SignalK N2K Server", r.Name())
	assert.NotEmpty(t, r.Description())
	assert.Contains(t, r.Schema()["properties"], "port")
	assert.NotNil(t, r.UISchema())
	assert.Empty(t, r.UISchema())
	assert.Equal(t, StateIdle, r.State())
}

func TestRelayServesBus(t *testing.T) {
	r := newRelay(t)
	require.NoError(t, r.Start(context.Background(), testConfig()))
	assert.Equal(t, StateRunning, r.State())

	sends, err := r.Bus().Subscribe(bus.KindSend, bus.SubscribeOptions{})
	require.NoError(t, err)

	c := dial(t, r.Addr())
	require.Eventually(t, func() bool { return r.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	r.Bus().Publish(bus.RawTextEvent(rudderText))
	line, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "<0x09f11205> [2] 01 02", line)

	require.NoError(t, c.Send("<0x09f11205> [2] 03 04"))
	select {
	case ev := <-sends.Events():
		assert.True(t, strings.HasSuffix(ev.Line, ",2,127250,5,255,2,03,04"), ev.Line)
	case <-time.After(2 * time.Second):
		t.Fatal("client input was not republished")
	}

	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())
	assert.Nil(t, r.Addr())
	assert.Zero(t, r.Bus().Count(bus.KindRawOutput), "sessions released on stop")
}

func TestRelayLifecycleErrors(t *testing.T) {
	logs := &lockedBuffer{}
	r := New(Options{Logger: zerolog.New(logs)})
	t.Cleanup(func() { _ = r.Close() })

	assert.NoError(t, r.Stop(), "stop before start is a no-op")
	assert.Equal(t, StateIdle, r.State())

	require.NoError(t, r.Start(context.Background(), testConfig()))
	assert.ErrorIs(t, r.Start(context.Background(), testConfig()), ErrAlreadyStarted)
	assert.Contains(t, logs.String(), ErrAlreadyStarted.Error())
	assert.Equal(t, StateRunning, r.State())

	bad := testConfig()
	bad.QueueSize = -1
	require.NoError(t, r.Stop())
	assert.ErrorIs(t, r.Start(context.Background(), bad), ErrInvalidConfig)
	assert.Equal(t, StateStopped, r.State())
}

func TestRelayBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	r := newRelay(t)
	cfg := testConfig()
	cfg.Address = taken.Addr().String()

	assert.NotPanics(t, func() {
		err = r.Start(context.Background(), cfg)
	})
	require.Error(t, err)
	assert.Equal(t, StateStopped, r.State())
	assert.Nil(t, r.Addr())

	// A later start on a free address works.
	require.NoError(t, r.Start(context.Background(), testConfig()))
	assert.NotNil(t, r.Addr())
}

func TestRelaySecondaryBindFailureTearsDown(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	r := newRelay(t)
	cfg := testConfig()
	cfg.Metrics.Address = taken.Addr().String()

	require.Error(t, r.Start(context.Background(), cfg))
	assert.Equal(t, StateStopped, r.State())
	assert.Nil(t, r.Addr(), "tcp listener closed after metrics bind failure")
}

func TestRelayRestart(t *testing.T) {
	r := newRelay(t)
	require.NoError(t, r.Start(context.Background(), testConfig()))
	dial(t, r.Addr())
	require.Eventually(t, func() bool { return r.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	cfg := testConfig()
	cfg.Format = n2k.FormatYDRAW
	require.NoError(t, r.Restart(context.Background(), cfg))
	assert.Equal(t, n2k.FormatYDRAW, r.Config().Format)
	assert.Zero(t, r.SessionCount())
	assert.Equal(t, StateRunning, r.State())
}

func TestRelayMetricsEndpoint(t *testing.T) {
	r := newRelay(t)
	cfg := testConfig()
	cfg.Metrics.Address = "127.0.0.1:0"
	require.NoError(t, r.Start(context.Background(), cfg))

	dial(t, r.Addr())
	require.Eventually(t, func() bool { return r.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	scrape := func() string {
		resp, err := http.Get("http://" + r.MetricsAddr().String() + metrics.Path)
		if err != nil {
			return ""
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	var body string
	require.Eventually(t, func() bool {
		body = scrape()
		return strings.Contains(body, `n2k_relay_sessions_active{format="candump1"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "n2k_relay_bus_subscribers")
}

func TestRelayAdvertises(t *testing.T) {
	var info discovery.RelayInfo
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything).Run(func(i discovery.RelayInfo) { info = i }).Return(nil).Once()
	adv.EXPECT().Stop().Return().Once()

	var gotCfg discovery.AdvertiserConfig
	r := New(Options{
		Logger: zerolog.Nop(),
		NewAdvertiser: func(cfg discovery.AdvertiserConfig) Advertiser {
			gotCfg = cfg
			return adv
		},
	})
	t.Cleanup(func() { _ = r.Close() })

	cfg := testConfig()
	cfg.Discovery = config.DiscoveryConfig{Enabled: true, Instance: "Saloon", Interface: "eth0"}
	cfg.WebSocket.Address = "127.0.0.1:0"
	require.NoError(t, r.Start(context.Background(), cfg))

	assert.Equal(t, "Saloon", info.Instance)
	assert.Equal(t, r.Addr().(*net.TCPAddr).Port, info.Port)
	assert.Equal(t, "candump1", info.Format)
	assert.Equal(t, version.Current, info.Version)
	assert.Equal(t, transport.DefaultWebSocketPath, info.WebSocketPath)
	assert.Equal(t, "eth0", gotCfg.Interface)

	require.NoError(t, r.Stop())
}

func TestRelayAdvertiseFailureIsNotFatal(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything).Return(errors.New("no multicast interface")).Once()

	r := New(Options{
		Logger: zerolog.Nop(),
		NewAdvertiser: func(discovery.AdvertiserConfig) Advertiser {
			return adv
		},
	})
	t.Cleanup(func() { _ = r.Close() })

	cfg := testConfig()
	cfg.Discovery.Enabled = true
	require.NoError(t, r.Start(context.Background(), cfg))
	assert.Equal(t, StateRunning, r.State())
}

func TestRelayCaptureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.cbor")
	r := newRelay(t)
	cfg := testConfig()
	cfg.Capture.Path = path
	require.NoError(t, r.Start(context.Background(), cfg))

	c := dial(t, r.Addr())
	require.Eventually(t, func() bool { return r.SessionCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	r.Bus().Publish(bus.RawTextEvent(rudderText))
	_, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	require.NoError(t, r.Stop())

	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var lines int
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Line != nil && ev.Direction == log.DirectionOut {
			lines++
			assert.Equal(t, "<0x09f11205> [2] 01 02", ev.Line.Text)
		}
	}
	assert.Equal(t, 1, lines)
}

func TestRelaySharedBus(t *testing.T) {
	b := bus.New()
	defer b.Close()

	r := New(Options{Bus: b, Logger: zerolog.Nop()})
	require.NoError(t, r.Start(context.Background(), testConfig()))
	require.NoError(t, r.Close())

	// The host's bus outlives the relay.
	_, err := b.Subscribe(bus.KindSend, bus.SubscribeOptions{})
	assert.NoError(t, err)
}
