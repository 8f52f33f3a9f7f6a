package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InProgressSuffix is appended to the canonical path while a batch is incomplete.
const InProgressSuffix = ".partial"

// State is the lifecycle state of an output artifact.
type State int

const (
	// StateInProgress marks a file that may still be missing rows.
	StateInProgress State = iota + 1

	// StateComplete marks a file that covers every resolvable ID of its batch.
	StateComplete
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Artifact identifies the output file of one batch by its canonical path.
type Artifact struct {
	canonical string
}

// New returns the artifact whose complete form lives at canonical.
func New(canonical string) Artifact {
	return Artifact{canonical: canonical}
}

// Parse maps a path found on disk back to its artifact and state.
// Only an exact InProgressSuffix marks an in-progress file.
func Parse(path string) (Artifact, State) {
	if base, ok := strings.CutSuffix(path, InProgressSuffix); ok && base != "" {
		return New(base), StateInProgress
	}
	return New(path), StateComplete
}

// Canonical returns the path of the complete artifact.
func (a Artifact) Canonical() string {
	return a.canonical
}

// Path returns the file path used in the given state.
func (a Artifact) Path(s State) string {
	if s == StateInProgress {
		return a.canonical + InProgressSuffix
	}
	return a.canonical
}

// Current reports which state is present on disk.
// ok is false when neither file exists (the batch has not started).
func (a Artifact) Current() (state State, ok bool, err error) {
	for _, s := range []State{StateComplete, StateInProgress} {
		exists, err := fileExists(a.Path(s))
		if err != nil {
			return 0, false, err
		}
		if exists {
			return s, true, nil
		}
	}
	return 0, false, nil
}

// Prepare makes sure the in-progress file exists and starts with the header.
//
// A missing or zero-length file gets the header; created reports that case.
// So does a file whose first line is not the header: it holds no usable rows
// and is reset to the header alone. If the last append was torn by a crash,
// the unterminated final record is cut back so the next append starts on a
// fresh line. Complete rows are never truncated or rewritten, including the
// ones following a malformed row.
func Prepare(a Artifact) (created bool, err error) {
	complete, err := fileExists(a.Path(StateComplete))
	if err != nil {
		return false, err
	}
	if complete {
		return false, fmt.Errorf("%w: %s", ErrAlreadyComplete, a.canonical)
	}

	path := a.Path(StateInProgress)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("open in-progress artifact: %w", err)
	}
	defer f.Close()

	res, err := scan(f)
	if err != nil {
		return false, err
	}

	if res.complete < res.size {
		if err := f.Truncate(res.complete); err != nil {
			return false, fmt.Errorf("truncate in-progress artifact: %w", err)
		}
	}

	if res.complete == 0 {
		header, err := encodeRows([][]string{Header})
		if err != nil {
			return false, err
		}
		if _, err := f.Write(header); err != nil {
			return false, fmt.Errorf("write header: %w", err)
		}
		created = true
	}

	if err := f.Sync(); err != nil {
		return false, fmt.Errorf("sync in-progress artifact: %w", err)
	}
	return created, nil
}

// Promote atomically renames the in-progress file to the canonical path.
// It is the only transition into StateComplete.
func Promote(a Artifact) error {
	from, to := a.Path(StateInProgress), a.Path(StateComplete)

	complete, err := fileExists(to)
	if err != nil {
		return err
	}
	if complete {
		return fmt.Errorf("%w: %s", ErrAlreadyComplete, to)
	}

	if err := os.Rename(from, to); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, from)
		}
		return fmt.Errorf("promote artifact: %w", err)
	}

	// Persist the rename itself; not every platform supports syncing a directory.
	if dir, err := os.Open(filepath.Dir(to)); err == nil {
		_ = dir.Sync()
		dir.Close()
	}
	return nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
