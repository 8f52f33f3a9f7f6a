// Package batch discovers the batches of a hydration run.
//
// A batch is one input ID file in the input directory. Its root name is the
// file name without the ".txt" extension and its output lives at
// <outDir>/<root>.csv.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sternrassler/rehydrate/pkg/artifact"
)

const (
	// InputExt is the extension of input ID files.
	InputExt = ".txt"

	// OutputExt is the extension of output artifacts.
	OutputExt = ".csv"
)

// Batch is one unit of work: an input ID file and its output artifact.
type Batch struct {
	// Root is the batch name shared by input and output.
	Root string

	// Input is the path of the newline-delimited ID file.
	Input string

	// Output is the batch's output artifact.
	Output artifact.Artifact
}

// New builds the batch for root from the input and output directories.
func New(root, inDir, outDir string) Batch {
	return Batch{
		Root:   root,
		Input:  filepath.Join(inDir, root+InputExt),
		Output: artifact.New(filepath.Join(outDir, root+OutputExt)),
	}
}

// Enumerate lists the batches found in inDir, ordered by root name.
// Directories, hidden files and files without InputExt are skipped.
func Enumerate(inDir, outDir string) ([]Batch, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("list input directory: %w", err)
	}

	roots := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		root, ok := strings.CutSuffix(name, InputExt)
		if !ok || root == "" {
			continue
		}
		roots = append(roots, root)
	}
	slices.Sort(roots)

	batches := make([]Batch, 0, len(roots))
	for _, root := range roots {
		batches = append(batches, New(root, inDir, outDir))
	}
	return batches, nil
}
