package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/n2k-relay/n2k-go/pkg/bus"
)

// BusCollector reports bus totals at scrape time.
type BusCollector struct {
	bus *bus.Bus

	published   *prometheus.Desc
	subscribers *prometheus.Desc
}

// NewBusCollector creates a collector for b.
func NewBusCollector(b *bus.Bus) *BusCollector {
	return &BusCollector{
		bus: b,
		published: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "published_total"),
			"Events published on the canonical bus.", nil, nil),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "subscribers"),
			"Live bus subscriptions, by kind.", []string{"kind"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *BusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.subscribers
}

// Collect implements prometheus.Collector.
func (c *BusCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(c.bus.Published()))
	for _, k := range []bus.Kind{bus.KindRawOutput, bus.KindSend} {
		ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue,
			float64(c.bus.Count(k)), k.String())
	}
}
