// Package metrics holds the service's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerrest_submissions_total",
		Help: "Payment submissions by final engine outcome",
	}, []string{"outcome"})

	SubmissionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerrest_submission_retries_total",
		Help: "Transient submission failures that triggered a retry",
	})

	ResolverClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerrest_resolver_classifications_total",
		Help: "Notification resolver classifications by outcome",
	}, []string{"outcome"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerrest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerrest_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "endpoint"})
)
