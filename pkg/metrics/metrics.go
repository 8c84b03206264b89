// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/n2k-relay/n2k-go/pkg/transport"
)

const namespace = "n2k_relay"

// Metrics holds the relay collectors and their registry. It implements
// transport.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive *prometheus.GaugeVec
	sessionsTotal  *prometheus.CounterVec
	sessionsClosed *prometheus.CounterVec
	linesReceived  *prometheus.CounterVec
	linesWritten   *prometheus.CounterVec
	republished    *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, with Go runtime and
// process collectors included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connected clients.",
		}, []string{"format"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total client sessions opened.",
		}, []string{"format"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Client sessions closed, by reason.",
		}, []string{"format", "reason"}),
		linesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Lines read from clients.",
		}, []string{"format"}),
		linesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_written_total",
			Help:      "Lines written to clients.",
		}, []string{"format"}),
		republished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "republished_total",
			Help:      "Client messages republished to the bus, by input dialect.",
		}, []string{"dialect"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Messages dropped, by direction and reason.",
		}, []string{"direction", "reason"}),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.sessionsClosed,
		m.linesReceived,
		m.linesWritten,
		m.republished,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register adds an extra collector, such as a BusCollector.
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

func (m *Metrics) SessionOpened(format string) {
	m.sessionsActive.WithLabelValues(format).Inc()
	m.sessionsTotal.WithLabelValues(format).Inc()
}

func (m *Metrics) SessionClosed(format, reason string) {
	m.sessionsActive.WithLabelValues(format).Dec()
	m.sessionsClosed.WithLabelValues(format, reason).Inc()
}

func (m *Metrics) LineReceived(format string) {
	m.linesReceived.WithLabelValues(format).Inc()
}

func (m *Metrics) LinesWritten(format string, n int) {
	m.linesWritten.WithLabelValues(format).Add(float64(n))
}

func (m *Metrics) Republished(dialect string) {
	m.republished.WithLabelValues(dialect).Inc()
}

func (m *Metrics) Dropped(direction, reason string) {
	m.dropped.WithLabelValues(direction, reason).Inc()
}

var _ transport.Observer = (*Metrics)(nil)
