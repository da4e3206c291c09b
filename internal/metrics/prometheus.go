package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "nf5gen"

// Collector отдает счетчики PerformanceMetrics в Prometheus без дублирования состояния
type Collector struct {
	m *PerformanceMetrics

	generated      *prometheus.Desc
	sent           *prometheus.Desc
	failed         *prometheus.Desc
	dropped        *prometheus.Desc
	invalidSources *prometheus.Desc
	bytesSent      *prometheus.Desc
	sequence       *prometheus.Desc
	connections    *prometheus.Desc
	uptime         *prometheus.Desc
}

// NewCollector runID попадает в const label run_id
func NewCollector(m *PerformanceMetrics, runID string) *Collector {
	labels := prometheus.Labels{"run_id": runID}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}

	return &Collector{
		m:              m,
		generated:      desc("packets_generated_total", "NetFlow packets built and enqueued."),
		sent:           desc("packets_sent_total", "NetFlow packets handed to the transport."),
		failed:         desc("packets_failed_total", "Packets that failed to build or send."),
		dropped:        desc("packets_dropped_total", "Packets dropped because the send queue was full."),
		invalidSources: desc("invalid_sources_total", "Enrichment addresses rejected at synthesis."),
		bytesSent:      desc("bytes_sent_total", "Bytes handed to the transport."),
		sequence:       desc("flow_sequence", "Last flow sequence number used."),
		connections:    desc("transport_open", "Open transport sockets or files."),
		uptime:         desc("uptime_seconds", "Seconds since metrics start."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.generated
	ch <- c.sent
	ch <- c.failed
	ch <- c.dropped
	ch <- c.invalidSources
	ch <- c.bytesSent
	ch <- c.sequence
	ch <- c.connections
	ch <- c.uptime
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.GetDetailedStats()

	ch <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, float64(s.Generated))
	ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(s.Sent))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.invalidSources, prometheus.CounterValue, float64(s.InvalidSources))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(s.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.sequence, prometheus.GaugeValue, float64(s.LastSequence))
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Connections))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.Uptime.Seconds())
}

// Register регистрирует collector и стандартные go/process метрики в reg
func Register(reg prometheus.Registerer, m *PerformanceMetrics, runID string) error {
	cs := []prometheus.Collector{
		NewCollector(m, runID),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
