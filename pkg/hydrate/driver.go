// Package hydrate drives batches from their input ID files to complete
// output artifacts.
//
// A batch moves through three phases:
//
//	NotStarted → InProgress   artifact.Prepare creates the .partial file and its header
//	InProgress → InProgress   each flush appends rows; the header is never rewritten
//	InProgress → Complete     after the stream ends and the final flush, artifact.Promote
//
// The driver holds no progress state of its own. Every run recomputes the
// remaining IDs from the artifact via checkpoint.Resolve, so a batch can be
// stopped at any point and resumed later. Only one driver may work on a given
// batch at a time; nothing enforces this.
package hydrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/rehydrate/pkg/artifact"
	"github.com/Sternrassler/rehydrate/pkg/batch"
	"github.com/Sternrassler/rehydrate/pkg/checkpoint"
	"github.com/Sternrassler/rehydrate/pkg/logging"
	"github.com/Sternrassler/rehydrate/pkg/status"
	"github.com/rs/zerolog"
)

// DefaultFlushEvery is the default number of rows buffered between flushes.
const DefaultFlushEvery = 100

// Phase is the lifecycle phase of a batch.
type Phase = status.Phase

// Batch phases.
const (
	PhaseNotStarted = status.PhaseNotStarted
	PhaseInProgress = status.PhaseInProgress
	PhaseComplete   = status.PhaseComplete
)

// Config holds the driver configuration.
type Config struct {
	// FlushEvery is the number of buffered rows that triggers a flush.
	// It bounds the rows held in memory per batch.
	FlushEvery int

	// ContinueOnError makes Run move on to the next batch after a resolver
	// or artifact error. Missing input files never stop Run.
	ContinueOnError bool
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		FlushEvery:      DefaultFlushEvery,
		ContinueOnError: false,
	}
}

// StatusRecorder receives batch status updates.
// *status.Tracker implements it.
type StatusRecorder interface {
	Record(ctx context.Context, st status.BatchStatus) error
}

// ProgressFunc is called after every state change and every non-empty flush.
type ProgressFunc func(Result)

// Result describes what a call to Hydrate did to one batch.
type Result struct {
	// Batch is the batch root name.
	Batch string

	// Start tells how the batch was entered.
	Start checkpoint.Start

	// Phase is the phase the batch ended in.
	Phase Phase

	// Total is the number of distinct input IDs.
	Total int

	// Remaining is the number of IDs requested from the resolver.
	Remaining int

	// Written is the number of rows flushed in this run.
	Written int

	// PeakBuffered is the largest number of rows held in memory at once.
	PeakBuffered int

	// Duration is the wall time spent on the batch.
	Duration time.Duration
}

// Dropped returns how many requested IDs produced no row.
func (r Result) Dropped() int {
	if r.Phase != PhaseComplete || r.Remaining < r.Written {
		return 0
	}
	return r.Remaining - r.Written
}

// Summary aggregates the results of Run.
type Summary struct {
	Results []Result
	Failed  []BatchError
}

// BatchError pairs a failed batch with its error.
type BatchError struct {
	Batch string
	Err   error
}

// Error implements the error interface.
func (e BatchError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.Batch, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e BatchError) Unwrap() error {
	return e.Err
}

// Err joins the errors of all failed batches, or returns nil.
func (s Summary) Err() error {
	errs := make([]error, len(s.Failed))
	for i, f := range s.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithStatus mirrors batch status into rec. Recording failures are logged
// and never fail a batch.
func WithStatus(rec StatusRecorder) Option {
	return func(d *Driver) {
		d.status = rec
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) {
		d.progress = fn
	}
}

// Driver hydrates batches sequentially using an injected Resolver.
type Driver struct {
	resolver Resolver
	config   Config
	logger   zerolog.Logger
	status   StatusRecorder
	progress ProgressFunc
}

// New creates a driver. The resolver's lifecycle stays with the caller.
func New(resolver Resolver, cfg Config, opts ...Option) (*Driver, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}
	if cfg.FlushEvery <= 0 {
		return nil, fmt.Errorf("flush_every must be > 0 (got %d)", cfg.FlushEvery)
	}

	d := &Driver{
		resolver: resolver,
		config:   cfg,
		logger:   logging.NewLogger("hydrate"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run hydrates batches in order.
//
// A batch whose input file is missing is recorded in the summary and skipped.
// Other failures stop Run unless ContinueOnError is set. Cancelling ctx stops
// Run before the next batch and returns ctx.Err().
func (d *Driver) Run(ctx context.Context, batches []batch.Batch) (Summary, error) {
	var sum Summary

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := d.Hydrate(ctx, b)
		sum.Results = append(sum.Results, res)
		if err == nil {
			continue
		}

		sum.Failed = append(sum.Failed, BatchError{Batch: b.Root, Err: err})

		switch {
		case ctx.Err() != nil:
			return sum, ctx.Err()
		case errors.Is(err, checkpoint.ErrMissingInput), d.config.ContinueOnError:
			continue
		default:
			return sum, err
		}
	}

	return sum, nil
}

// Hydrate brings one batch to completion, resuming from whatever the
// in-progress artifact already holds.
//
// Resolver failures are returned as *ResolveError. Rows flushed before a
// failure are kept and the canonical artifact is not created.
func (d *Driver) Hydrate(ctx context.Context, b batch.Batch) (Result, error) {
	started := time.Now()
	logger := logging.WithBatch(d.logger, b.Root)
	res := Result{Batch: b.Root, Phase: PhaseNotStarted}

	res, err := d.hydrate(ctx, b, res, logger)
	res.Duration = time.Since(started)
	batchDuration.Observe(res.Duration.Seconds())

	if err != nil {
		batchesTotal.WithLabelValues(outcomeFailed).Inc()
		logger.Error().
			Err(err).
			Str("phase", string(res.Phase)).
			Int("written", res.Written).
			Int("remaining", res.Remaining).
			Msg("Batch failed")
		d.report(ctx, res, err)
		return res, err
	}

	if res.Start == checkpoint.StartComplete {
		batchesTotal.WithLabelValues(outcomeAlreadyComplete).Inc()
	} else {
		batchesTotal.WithLabelValues(outcomeComplete).Inc()
	}

	logger.Info().
		Str("start", string(res.Start)).
		Int("written", res.Written).
		Int("remaining", res.Remaining).
		Int("dropped", res.Dropped()).
		Dur("duration", res.Duration).
		Msg("Batch complete")
	d.report(ctx, res, nil)

	return res, nil
}

func (d *Driver) hydrate(ctx context.Context, b batch.Batch, res Result, logger zerolog.Logger) (Result, error) {
	cp, err := checkpoint.Resolve(b.Input, b.Output)
	if err != nil {
		return res, fmt.Errorf("checkpoint: %w", err)
	}
	res.Start = cp.Start
	res.Total = cp.Total
	res.Remaining = len(cp.Remaining)

	if cp.Complete() {
		res.Phase = PhaseComplete
		logger.Info().Str("path", b.Output.Canonical()).Msg("Batch already complete")
		return res, nil
	}

	created, err := artifact.Prepare(b.Output)
	if err != nil {
		return res, fmt.Errorf("prepare artifact: %w", err)
	}
	res.Phase = PhaseInProgress

	logger.Info().
		Str("start", string(cp.Start)).
		Bool("created", created).
		Int("total", cp.Total).
		Int("remaining", len(cp.Remaining)).
		Msg("Batch started")
	d.report(ctx, res, nil)

	if len(cp.Remaining) > 0 {
		if err := d.stream(ctx, b, cp.Remaining, &res, logger); err != nil {
			return res, err
		}
	}

	if err := artifact.Promote(b.Output); err != nil {
		return res, fmt.Errorf("promote artifact: %w", err)
	}
	res.Phase = PhaseComplete

	return res, nil
}

// stream pulls records for ids, buffering at most FlushEvery rows.
func (d *Driver) stream(ctx context.Context, b batch.Batch, ids []string, res *Result, logger zerolog.Logger) error {
	fl := artifact.NewFlusher(b.Output.Path(artifact.StateInProgress), d.config.FlushEvery)
	defer func() {
		res.PeakBuffered = fl.Peak()
	}()

	for rec, err := range d.resolver.Resolve(ctx, ids) {
		if err != nil {
			resolveErrorsTotal.Inc()
			// Keep what was fetched; the next run skips these IDs
			if ferr := d.flush(ctx, fl, res, logger); ferr != nil {
				logger.Warn().Err(ferr).Msg("Failed to flush buffered rows after resolver error")
			}
			return &ResolveError{Batch: b.Root, Written: res.Written, Err: err}
		}

		if fl.Add(rec.Row()) {
			if err := d.flush(ctx, fl, res, logger); err != nil {
				return err
			}
		}
	}

	// Final flush; also verifies the artifact is still in place
	return d.flush(ctx, fl, res, logger)
}

func (d *Driver) flush(ctx context.Context, fl *artifact.Flusher, res *Result, logger zerolog.Logger) error {
	started := time.Now()
	n, err := fl.Flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if n == 0 {
		return nil
	}

	flushDuration.Observe(time.Since(started).Seconds())
	flushesTotal.Inc()
	rowsWrittenTotal.Add(float64(n))
	res.Written += n

	logger.Debug().
		Int("flushed", n).
		Int("written", res.Written).
		Int("remaining", res.Remaining).
		Msg("Rows flushed")
	d.report(ctx, *res, nil)

	return nil
}

// report publishes progress to the callback and the status recorder.
func (d *Driver) report(ctx context.Context, res Result, err error) {
	if d.progress != nil {
		d.progress(res)
	}
	if d.status == nil {
		return
	}

	st := status.BatchStatus{
		Root:       res.Batch,
		Phase:      res.Phase,
		Start:      string(res.Start),
		Total:      res.Total,
		Remaining:  res.Remaining,
		Written:    res.Written,
		LastUpdate: time.Now(),
	}
	if err != nil {
		st.Phase = status.PhaseFailed
		st.LastError = err.Error()
	}

	// Record even when ctx is already cancelled
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := d.status.Record(rctx, st); rerr != nil {
		d.logger.Warn().Err(rerr).Str("batch", res.Batch).Msg("Failed to record batch status")
	}
}
