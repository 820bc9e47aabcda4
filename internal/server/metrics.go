package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/claimgate/internal/gatekeeper"
)

// Metrics holds retrieval counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	returned prometheus.Histogram
	excluded prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics registers the retrieval metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_retrievals_total",
			Help: "Retrievals by outcome code.",
		}, []string{"code"}),
		returned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimgate_claims_returned",
			Help:    "Claims returned per successful retrieval.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claimgate_invalid_claims_total",
			Help: "Claims excluded for invalid data.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimgate_retrieval_duration_seconds",
			Help:    "Retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.requests, m.returned, m.excluded, m.duration)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(res *gatekeeper.Result, err error, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.requests.WithLabelValues(gatekeeper.ErrorCode(err)).Inc()
		return
	}
	m.requests.WithLabelValues("OK").Inc()
	m.returned.Observe(float64(len(res.Claims)))
	m.excluded.Add(float64(len(res.Warnings)))
}
