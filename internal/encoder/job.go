package encoder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// File is a named in-memory buffer handed between stages. The byte slice
// must not be modified once produced.
type File struct {
	Name string
	Data []byte
}

// Job is one unit of work dispatched to a worker.
type Job struct {
	Args   []string
	Inputs []File
}

// Worker runs a single job. onLog receives each diagnostic line exactly once
// and in order; it may be nil.
type Worker interface {
	Run(ctx context.Context, job Job, onLog func(string)) ([]File, error)
}

// WorkerFunc adapts an ordinary function to the Worker interface.
type WorkerFunc func(ctx context.Context, job Job, onLog func(string)) ([]File, error)

// Run calls f.
func (f WorkerFunc) Run(ctx context.Context, job Job, onLog func(string)) ([]File, error) {
	return f(ctx, job, onLog)
}

// Lookup returns the first file with the given name.
func Lookup(files []File, name string) (File, bool) {
	for _, f := range files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// TotalSize sums the byte length of files.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	return total
}

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("empty file name")
	}
	if trimmed != name || filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
