package hydrate

import (
	"errors"
	"fmt"
)

// ErrNilResolver is returned by New when no resolver is given.
var ErrNilResolver = errors.New("resolver is required")

// ResolveError reports a failure of the resolve capability while a batch was
// streaming. Rows flushed before the failure stay in the in-progress
// artifact, so the batch resumes from there on the next run.
type ResolveError struct {
	// Batch is the root name of the failed batch.
	Batch string

	// Written is the number of rows flushed in this run before the failure.
	Written int

	// Err is the resolver's error.
	Err error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve batch %s (after %d rows): %v", e.Batch, e.Written, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
