// Package artifact manages the per-batch output file and its lifecycle.
//
// An output artifact lives at one of two paths:
//
//   - in progress: the canonical path plus InProgressSuffix (".partial")
//   - complete:    the canonical path
//
// The state is carried explicitly as a State value next to the canonical
// path, so a canonical name that happens to end in ".partial" characters is
// never mistaken for an in-progress file.
//
// # Lifecycle
//
//	out := artifact.New("hydrated_files/2020-03-01.csv")
//
//	// NotStarted -> InProgress: create the file and write the header once
//	if _, err := artifact.Prepare(out); err != nil {
//		return err
//	}
//
//	// InProgress -> InProgress: append rows in bounded chunks
//	f := artifact.NewFlusher(out.Path(artifact.StateInProgress), 100)
//	if f.Add(row) {
//		if _, err := f.Flush(); err != nil {
//			return err
//		}
//	}
//
//	// InProgress -> Complete: single atomic rename
//	if err := artifact.Promote(out); err != nil {
//		return err
//	}
//
// # File Format
//
// Artifacts are UTF-8 CSV files. The first line is Header; every following
// line is one Row in the same column order. Fields containing the delimiter,
// a quote or a newline are quoted per RFC 4180.
//
// Appends never truncate or rewrite complete rows. A crash between two
// flushes loses at most the rows still buffered in memory; a crash during a
// flush leaves a torn tail that Prepare cuts back on the next run.
package artifact
