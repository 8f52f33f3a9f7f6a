package hydrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch outcomes used as the "outcome" label.
const (
	outcomeComplete        = "complete"
	outcomeAlreadyComplete = "already_complete"
	outcomeFailed          = "failed"
)

// Prometheus metrics for the hydration driver.
var (
	rowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_rows_written_total",
		Help: "Total output rows appended to in-progress artifacts",
	})

	flushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_flushes_total",
		Help: "Total non-empty flushes to in-progress artifacts",
	})

	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rehydrate_flush_duration_seconds",
		Help:    "Duration of one append and fsync in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehydrate_batches_total",
		Help: "Total batches processed by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rehydrate_batch_duration_seconds",
		Help:    "Wall time spent per batch in seconds",
		Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400},
	})

	resolveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehydrate_resolve_errors_total",
		Help: "Total batches stopped by a resolver error",
	})
)
