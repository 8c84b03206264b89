package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/bus"
)

func TestObserverCounters(t *testing.T) {
	m := New()

	m.SessionOpened("ydraw")
	m.SessionOpened("ydraw")
	m.SessionClosed("ydraw", "eof")
	m.LineReceived("ydraw")
	m.LinesWritten("ydraw", 3)
	m.Republished("candump1")
	m.Dropped("in", "decode")
	m.Dropped("in", "decode")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive.WithLabelValues("ydraw")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("ydraw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues("ydraw", "eof")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.linesWritten.WithLabelValues("ydraw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.republished.WithLabelValues("candump1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues("in", "decode")))
}

func TestBusCollector(t *testing.T) {
	b := bus.New()
	_, err := b.Subscribe(bus.KindRawOutput, bus.SubscribeOptions{})
	require.NoError(t, err)
	b.Publish(bus.RawTextEvent("x"))
	b.Publish(bus.RawTextEvent("y"))

	m := New()
	require.NoError(t, m.Register(NewBusCollector(b)))

	expected := `
# HELP n2k_relay_bus_published_total Events published on the canonical bus.
# TYPE n2k_relay_bus_published_total counter
n2k_relay_bus_published_total 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"n2k_relay_bus_published_total"))
}

func TestServerServesScrape(t *testing.T) {
	m := New()
	m.SessionOpened("actisense")

	srv := NewServer("127.0.0.1:0", m, zerolog.Nop())
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())
	assert.Error(t, srv.Start(), "second start")

	resp, err := http.Get("http://" + srv.Addr().String() + Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `n2k_relay_sessions_active{format="actisense"} 1`)

	require.NoError(t, srv.Stop(context.Background()))
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}
