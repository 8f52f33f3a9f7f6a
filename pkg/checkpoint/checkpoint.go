// Package checkpoint computes which IDs of a batch still need to be fetched.
//
// Progress is never stored separately: the output artifact is the checkpoint.
// Resolve compares the batch's input IDs with the IDs already written to the
// in-progress artifact and returns the difference in a stable order.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/Sternrassler/rehydrate/pkg/artifact"
)

// ErrMissingInput is returned when a batch's input ID file does not exist.
var ErrMissingInput = errors.New("input id file missing")

// maxLineSize bounds a single line of an input ID file.
const maxLineSize = 1 << 20

// Start describes how a batch is entered.
type Start string

const (
	// StartComplete means the canonical artifact exists; nothing is left to do.
	StartComplete Start = "already_complete"

	// StartResumed means an in-progress artifact exists and is continued.
	StartResumed Start = "resumed"

	// StartFresh means no artifact exists yet.
	StartFresh Start = "fresh"
)

// Checkpoint is the resume point of one batch.
type Checkpoint struct {
	// Start tells whether the batch is complete, resumed or fresh.
	Start Start

	// Remaining holds the IDs still to fetch, de-duplicated and sorted.
	// Empty when Start is StartComplete.
	Remaining []string

	// Total is the number of distinct input IDs.
	Total int

	// Written is the number of input IDs already present in the artifact.
	Written int
}

// Complete reports whether the batch needs no further work.
func (c Checkpoint) Complete() bool {
	return c.Start == StartComplete
}

// Resolve computes the checkpoint for the batch reading IDs from inputPath
// and writing to out. It only reads from disk.
//
// An in-progress artifact that is empty, header-only or unreadable as CSV
// contributes no written IDs, so the batch degrades to a full fetch instead
// of failing.
func Resolve(inputPath string, out artifact.Artifact) (Checkpoint, error) {
	ids, err := ReadIDs(inputPath)
	if err != nil {
		return Checkpoint{}, err
	}

	state, ok, err := out.Current()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("inspect artifact: %w", err)
	}

	cp := Checkpoint{Total: len(ids)}
	switch {
	case ok && state == artifact.StateComplete:
		cp.Start = StartComplete
		cp.Written = len(ids)
		return cp, nil

	case !ok:
		cp.Start = StartFresh
		cp.Remaining = ids
		return cp, nil
	}

	written, err := artifact.WrittenIDs(out.Path(artifact.StateInProgress))
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read written ids: %w", err)
	}

	cp.Start = StartResumed
	cp.Remaining = make([]string, 0, len(ids))
	for _, id := range ids {
		if _, done := written[id]; done {
			cp.Written++
			continue
		}
		cp.Remaining = append(cp.Remaining, id)
	}
	return cp, nil
}

// ReadIDs reads a newline-delimited ID file. A leading UTF-8 byte order mark,
// surrounding whitespace and blank lines are dropped, duplicates removed, and
// the result sorted.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	ids := make([]string, 0)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for first := true; sc.Scan(); first = false {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}

	slices.Sort(ids)
	return ids, nil
}
