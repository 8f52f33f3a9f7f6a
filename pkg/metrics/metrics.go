// Package metrics exposes the Prometheus metrics of a hydration run.
// All metrics are defined in their respective packages (hydrate, lookup,
// status) and registered via promauto; this package serves them and
// documents them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Gatherer is the registry served on /metrics.
// All metrics are automatically registered via promauto in their respective packages.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// NewMux returns a handler serving /metrics from Gatherer and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Serve listens on addr and serves NewMux until ctx is done.
// It returns once the listener is bound; serve errors are logged.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return ln.Addr(), nil
}

// Metrics Documentation
//
// Hydration Metrics (pkg/hydrate):
//   - rehydrate_rows_written_total (Counter): Rows appended to in-progress artifacts
//   - rehydrate_flushes_total (Counter): Non-empty flushes
//   - rehydrate_flush_duration_seconds (Histogram): Duration of one append and fsync
//   - rehydrate_batches_total{outcome} (Counter): Batches by outcome (complete, already_complete, failed)
//   - rehydrate_batch_duration_seconds (Histogram): Wall time per batch
//   - rehydrate_resolve_errors_total (Counter): Batches stopped by a resolver error
//
// Lookup Metrics (pkg/lookup):
//   - rehydrate_lookup_requests_total{status} (Counter): Requests by HTTP status or network_error
//   - rehydrate_lookup_request_duration_seconds (Histogram): Request duration
//   - rehydrate_lookup_records_total (Counter): Records returned
//   - rehydrate_lookup_dropped_total (Counter): Requested IDs without a returned record
//
// Retry Metrics (pkg/lookup):
//   - rehydrate_lookup_retries_total{error_class} (Counter): Retry attempts by error class
//   - rehydrate_lookup_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - rehydrate_lookup_retry_exhausted_total{error_class} (Counter): Lookups that exhausted max retries
//
// Status Metrics (pkg/status):
//   - rehydrate_status_updates_total{phase} (Counter): Batch status writes to Redis by phase
//   - rehydrate_status_errors_total (Counter): Failed status writes
//
// Example Prometheus Queries:
//
//   # Rows per second
//   rate(rehydrate_rows_written_total[5m])
//
//   # Share of requested IDs that no longer resolve
//   rate(rehydrate_lookup_dropped_total[1h]) /
//   (rate(rehydrate_lookup_records_total[1h]) + rate(rehydrate_lookup_dropped_total[1h]))
//
//   # Retry pressure by class
//   sum by (error_class) (rate(rehydrate_lookup_retries_total[5m]))
//
//   # P95 flush latency
//   histogram_quantile(0.95, rate(rehydrate_flush_duration_seconds_bucket[5m]))
