package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sqsbridge"

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultFailed   = "failed"
)

// Metrics holds the pipeline collectors. Each instance owns its registry so
// tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	fetchedTotal  prometheus.Counter
	fetchErrors   *prometheus.CounterVec
	postTotal     *prometheus.CounterVec
	postLatency   prometheus.Histogram
	postsInFlight prometheus.Gauge
	deleteTotal   *prometheus.CounterVec
	running       prometheus.Gauge
	fatal         prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		fetchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_messages_total",
			Help:      "Total number of messages received from the queue.",
		}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed receive calls by anomaly category.",
		}, []string{"category"}),
		postTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_total",
			Help:      "Total number of POST attempts by result.",
		}, []string{"result"}),
		postLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "post_duration_seconds",
			Help:      "Latency distribution of POST attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		postsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "posts_in_flight",
			Help:      "Current number of outstanding POST requests.",
		}),
		deleteTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_total",
			Help:      "Total number of deletions by result.",
		}, []string{"result"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "Whether the pipeline is currently running (1/0).",
		}),
		fatal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fatal",
			Help:      "Whether the pipeline stopped on a fatal anomaly (1/0).",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Fetched(n int) {
	m.fetchedTotal.Add(float64(n))
}

func (m *Metrics) FetchError(category string) {
	m.fetchErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) PostStarted() {
	m.postsInFlight.Inc()
}

// PostFinished records the outcome and duration of one POST started with
// PostStarted.
func (m *Metrics) PostFinished(result string, seconds float64) {
	m.postsInFlight.Dec()
	m.postTotal.WithLabelValues(result).Inc()
	m.postLatency.Observe(seconds)
}

func (m *Metrics) Deleted(result string, n int) {
	if n <= 0 {
		return
	}
	m.deleteTotal.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) SetRunning(running bool) {
	m.running.Set(boolToFloat(running))
}

func (m *Metrics) SetFatal(fatal bool) {
	m.fatal.Set(boolToFloat(fatal))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
