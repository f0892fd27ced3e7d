package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	ruleCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curate_rules",
			Help: "Rules written by the last successful run",
		},
		[]string{"action"},
	)
	lineCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curate_lines",
			Help: "Input lines seen by the last successful run, by outcome",
		},
		[]string{"outcome"},
	)
	runDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curate_run_duration_seconds",
			Help: "Duration of the last successful run",
		},
	)
	lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curate_last_run_timestamp_seconds",
			Help: "Unix time the last successful run finished",
		},
	)
)

func init() {
	prometheus.MustRegister(ruleCount, lineCount, runDuration, lastRun)
}

func recordRun(res *Result) {
	s := res.Stats
	ruleCount.WithLabelValues("block").Set(float64(s.Block))
	ruleCount.WithLabelValues("allow").Set(float64(s.Allow))

	lineCount.WithLabelValues("comment").Set(float64(s.Comments))
	lineCount.WithLabelValues("unparseable").Set(float64(s.Unparseable))
	lineCount.WithLabelValues("excluded").Set(float64(s.Excluded))
	lineCount.WithLabelValues("invalid").Set(float64(s.Invalid))
	lineCount.WithLabelValues("kept").Set(float64(s.Kept))

	runDuration.Set(res.Elapsed.Seconds())
	lastRun.Set(float64(res.Started.Add(res.Elapsed).Unix()))
}
