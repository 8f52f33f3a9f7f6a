package artifact

import "errors"

// Common errors returned by the artifact package.
var (
	// ErrMissingArtifact is returned when rows are flushed before the
	// in-progress file and its header exist. It indicates a caller ordering bug.
	ErrMissingArtifact = errors.New("in-progress artifact missing")

	// ErrAlreadyComplete is returned when an operation that requires an
	// in-progress artifact finds the canonical file instead.
	ErrAlreadyComplete = errors.New("artifact already complete")
)
