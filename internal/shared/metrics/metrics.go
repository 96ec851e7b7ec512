package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casabid",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casabid",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response latency (seconds) for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	VerificationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casabid",
			Name:      "verification_transitions_total",
			Help:      "Verification status transitions",
		},
		[]string{"from", "to"},
	)
	CheckResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casabid",
			Name:      "verification_check_results_total",
			Help:      "Automated check results by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casabid",
			Name:      "verification_check_duration_seconds",
			Help:      "Latency of external check provider calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)
	StatusWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "casabid",
			Name:      "verification_status_waiters",
			Help:      "Long-poll status requests currently waiting",
		},
	)
)
