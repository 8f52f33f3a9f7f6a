package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for lookup operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehydrate_lookup_requests_total",
		Help: "Total lookup requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rehydrate_lookup_request_duration_seconds",
		Help:    "Lookup request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_lookup_records_total",
		Help: "Total records returned by the lookup endpoint",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_lookup_dropped_total",
		Help: "Total requested IDs the lookup endpoint returned no record for",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehydrate_lookup_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rehydrate_lookup_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehydrate_lookup_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)
