package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamStats is the per-stream snapshot the metrics endpoint exports.
// The streams module registers a provider, keeping the dependency one way.
type StreamStats struct {
	Name         string
	Codec        string
	BytesIn      uint64
	PacksFed     uint64
	PacksSkipped uint64
	BytesFed     uint64
	QueueLen     int
}

var statsProvider func() []StreamStats

// SetStatsProvider wires the function /metrics snapshots streams through.
func SetStatsProvider(fn func() []StreamStats) {
	statsProvider = fn
}

type streamsCollector struct {
	bytesIn      *prometheus.Desc
	packsFed     *prometheus.Desc
	packsSkipped *prometheus.Desc
	bytesFed     *prometheus.Desc
	queueLen     *prometheus.Desc
}

func newStreamsCollector() *streamsCollector {
	labels := []string{"stream", "codec"}
	return &streamsCollector{
		bytesIn: prometheus.NewDesc(
			prometheus.BuildFQName("espack", "stream", "bytes_in_total"),
			"Bitstream bytes accepted from the source", labels, nil),
		packsFed: prometheus.NewDesc(
			prometheus.BuildFQName("espack", "stream", "packs_fed_total"),
			"Packs handed to the sink", labels, nil),
		packsSkipped: prometheus.NewDesc(
			prometheus.BuildFQName("espack", "stream", "packs_skipped_total"),
			"Packs skipped while waiting for a reopening point", labels, nil),
		bytesFed: prometheus.NewDesc(
			prometheus.BuildFQName("espack", "stream", "bytes_fed_total"),
			"Bitstream bytes handed to the sink", labels, nil),
		queueLen: prometheus.NewDesc(
			prometheus.BuildFQName("espack", "stream", "queue_packs"),
			"Packs currently buffered", labels, nil),
	}
}

func (c *streamsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesIn
	ch <- c.packsFed
	ch <- c.packsSkipped
	ch <- c.bytesFed
	ch <- c.queueLen
}

func (c *streamsCollector) Collect(ch chan<- prometheus.Metric) {
	if statsProvider == nil {
		return
	}
	for _, s := range statsProvider() {
		ch <- prometheus.MustNewConstMetric(
			c.bytesIn, prometheus.CounterValue, float64(s.BytesIn), s.Name, s.Codec)
		ch <- prometheus.MustNewConstMetric(
			c.packsFed, prometheus.CounterValue, float64(s.PacksFed), s.Name, s.Codec)
		ch <- prometheus.MustNewConstMetric(
			c.packsSkipped, prometheus.CounterValue, float64(s.PacksSkipped), s.Name, s.Codec)
		ch <- prometheus.MustNewConstMetric(
			c.bytesFed, prometheus.CounterValue, float64(s.BytesFed), s.Name, s.Codec)
		ch <- prometheus.MustNewConstMetric(
			c.queueLen, prometheus.GaugeValue, float64(s.QueueLen), s.Name, s.Codec)
	}
}

func initMetrics() {
	prometheus.MustRegister(newStreamsCollector())
	HandleFunc("metrics", promhttp.Handler().ServeHTTP)
}
