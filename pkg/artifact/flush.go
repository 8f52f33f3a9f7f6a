package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Flush appends rows to the in-progress file at path.
//
// The file must already exist and hold at least the header; Flush never
// creates it and returns ErrMissingArtifact otherwise. All rows are encoded
// up front and written with a single append followed by fsync.
func Flush(path string, rows []Row) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return fmt.Errorf("open artifact for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s has no header", ErrMissingArtifact, path)
	}

	if len(rows) == 0 {
		return nil
	}

	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Fields()
	}
	data, err := encodeRows(records)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	return nil
}

// Flusher buffers rows for one in-progress file and appends them in chunks.
// Not safe for concurrent use.
type Flusher struct {
	path  string
	every int
	buf   []Row
	peak  int
}

// NewFlusher creates a flusher for path that asks to be flushed every n rows.
// n <= 0 means 1.
func NewFlusher(path string, n int) *Flusher {
	if n <= 0 {
		n = 1
	}
	return &Flusher{
		path:  path,
		every: n,
		buf:   make([]Row, 0, n),
	}
}

// Add buffers a row and reports whether the flush cadence has been reached.
func (f *Flusher) Add(row Row) bool {
	f.buf = append(f.buf, row)
	if len(f.buf) > f.peak {
		f.peak = len(f.buf)
	}
	return len(f.buf) >= f.every
}

// Flush appends the buffered rows and clears the buffer.
// It returns the number of rows written. On error the buffer is kept.
func (f *Flusher) Flush() (int, error) {
	if err := Flush(f.path, f.buf); err != nil {
		return 0, err
	}
	n := len(f.buf)
	clear(f.buf)
	f.buf = f.buf[:0]
	return n, nil
}

// Len returns the number of buffered rows.
func (f *Flusher) Len() int {
	return len(f.buf)
}

// Peak returns the largest buffer size observed so far.
func (f *Flusher) Peak() int {
	return f.peak
}
