// Package status mirrors batch progress into Redis so long runs can be
// watched from outside the process. The output artifacts stay the source of
// truth; nothing here is read back to decide what to fetch.
package status

import (
	"time"
)

// Redis keys for batch status storage.
const (
	// RedisKeyBatchPrefix prefixes the hash holding one batch's status.
	RedisKeyBatchPrefix = "rehydrate:batch:"

	// RedisKeyBatches is the set of all batch roots ever recorded.
	RedisKeyBatches = "rehydrate:batches"
)

// Phase is the lifecycle phase of a batch as seen by the driver.
type Phase string

const (
	// PhaseNotStarted means no output artifact exists yet.
	PhaseNotStarted Phase = "not_started"

	// PhaseInProgress means the in-progress artifact exists and is growing.
	PhaseInProgress Phase = "in_progress"

	// PhaseComplete means the artifact has been promoted to its canonical name.
	PhaseComplete Phase = "complete"

	// PhaseFailed means the last attempt stopped with an error.
	// The batch is still resumable.
	PhaseFailed Phase = "failed"
)

// BatchStatus is the externally visible state of one batch.
type BatchStatus struct {
	// Root is the batch name.
	Root string `json:"root"`

	// Phase is the current lifecycle phase.
	Phase Phase `json:"phase"`

	// Start tells how the current run entered the batch (fresh, resumed, already_complete).
	Start string `json:"start"`

	// Total is the number of distinct input IDs.
	Total int `json:"total"`

	// Remaining is the number of IDs requested in the current run.
	Remaining int `json:"remaining"`

	// Written is the number of rows flushed in the current run.
	Written int `json:"written"`

	// LastError holds the error text of a failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastUpdate is when this status was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the status is older than maxAge.
// A stale in-progress batch usually means its worker died.
func (s *BatchStatus) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsTerminal returns true once the batch is complete.
func (s *BatchStatus) IsTerminal() bool {
	return s.Phase == PhaseComplete
}

// Progress returns the fraction of the current run's IDs written, in [0, 1].
// IDs the remote side no longer resolves keep it below 1 even after completion.
func (s *BatchStatus) Progress() float64 {
	if s.Remaining <= 0 {
		if s.Phase == PhaseComplete {
			return 1
		}
		return 0
	}
	p := float64(s.Written) / float64(s.Remaining)
	if p > 1 {
		return 1
	}
	return p
}
