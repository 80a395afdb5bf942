package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dispatchAttemptsTotal, workerCallSeconds) }

var dispatchAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Dispatch attempts by outcome (success/failure/rate_limited/auth_failure).",
	},
	[]string{"outcome"},
)

var workerCallSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "worker_call_seconds",
		Help:    "Latency of a single browser-worker generation round trip.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
	},
	[]string{"outcome"},
)

func IncDispatchAttempt(outcome string) {
	dispatchAttemptsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveWorkerCall(outcome string, seconds float64) {
	workerCallSeconds.WithLabelValues(norm(outcome)).Observe(seconds)
}
