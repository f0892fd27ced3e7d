package dns

import "github.com/prometheus/client_golang/prometheus"

var (
	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curate_validations_total",
			Help: "Domain validations by verdict and where the verdict came from",
		},
		[]string{"verdict", "source"},
	)
	upstreamQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curate_upstream_queries_total",
			Help: "DNS queries sent to upstreams by protocol and outcome",
		},
		[]string{"protocol", "outcome"},
	)
	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curate_upstream_request_duration_seconds",
			Help:    "DNS upstream request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)
	upstreamCircuitOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curate_upstream_circuit_opened_total",
			Help: "Times an upstream circuit breaker opened",
		},
		[]string{"server"},
	)
	upstreamSkippedUnhealthy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curate_upstream_skipped_unhealthy_total",
			Help: "Upstream attempts skipped while the circuit was open",
		},
		[]string{"server"},
	)
)

func init() {
	prometheus.MustRegister(validations, upstreamQueries, upstreamLatency, upstreamCircuitOpened, upstreamSkippedUnhealthy)
}

// WriteMetrics dumps every registered metric to path in the textfile
// collector format, for node_exporter to pick up.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
