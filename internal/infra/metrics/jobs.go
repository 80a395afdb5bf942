package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsSubmittedTotal, jobsProcessedTotal) }

var jobsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_submitted_total",
		Help: "Jobs accepted by the submission API, labeled by plan.",
	},
	[]string{"plan"},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_processed_total",
		Help: "Jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'submitted', 'failed', 'exhausted'
)

func IncJobSubmitted(plan string) {
	jobsSubmittedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}
