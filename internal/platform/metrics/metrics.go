package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JudgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeclash_judge_requests_total",
			Help: "Requests sent to the remote judge, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	JudgePollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeclash_judge_poll_attempts",
			Help:    "Polls needed before a judge token reached a terminal status",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 15, 20},
		},
	)
	Verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeclash_verdicts_total",
			Help: "Terminal verdicts written to submissions",
		},
		[]string{"verdict"},
	)
	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeclash_evaluation_duration_seconds",
			Help:    "Wall time spent evaluating one submission",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
	LeaderboardReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeclash_leaderboard_reads_total",
			Help: "Leaderboard reads, by source (snapshot or computed)",
		},
		[]string{"source"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codeclash_judge_queue_depth",
			Help: "Submissions waiting in the judge queue at last sample",
		},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(JudgeRequests)
	registry.MustRegister(JudgePollAttempts)
	registry.MustRegister(Verdicts)
	registry.MustRegister(EvaluationDuration)
	registry.MustRegister(LeaderboardReads)
	registry.MustRegister(QueueDepth)
}

// Handler serves the private registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
