// Package file exports runs as JSON lines to a local file, one file per
// project under the .researcher/traces directory.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/papercomputeco/researcher/pkg/tracing"
)

const maxLineSize = 16 * 1024 * 1024

// Path returns the trace file for project under dir.
func Path(dir, project string) string {
	if project == "" {
		project = "default"
	}
	return filepath.Join(dir, "traces", project+".jsonl")
}

// Exporter appends runs to a JSONL file.
type Exporter struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewExporter opens path for appending, creating parent directories.
func NewExporter(path string) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &Exporter{f: f, path: path}, nil
}

// Export writes one line per run.
func (e *Exporter) Export(_ context.Context, runs []*tracing.Run) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := bufio.NewWriter(e.f)
	enc := json.NewEncoder(w)
	for _, run := range runs {
		if run == nil {
			return tracing.ErrNilRun
		}
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encoding run %s: %w", run.ID, err)
		}
	}
	return w.Flush()
}

// Close closes the file.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.f.Close()
}

// ReadRuns returns the last limit runs in path, oldest first. A
// non-positive limit returns every run. A missing file yields no runs.
func ReadRuns(path string, limit int) ([]*tracing.Run, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var runs []*tracing.Run
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		run := &tracing.Run{}
		if err := json.Unmarshal(scanner.Bytes(), run); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		runs = append(runs, run)
		if limit > 0 && len(runs) > limit {
			runs = runs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}
	return runs, nil
}
