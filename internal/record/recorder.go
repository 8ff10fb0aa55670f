// Package record writes the submission audit log. One CSV line per field
// attempted, flushed as soon as it is written so a crash mid-run leaves a
// legible partial log.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"carlog/internal/types"
)

// Header is the fixed column set of the submission log.
var Header = []string{"RowIndex", "Field", "SourceValue", "ObservedValue", "Status"}

// Recorder owns the submission log file for one run. The file is created
// fresh at construction (one run, one audit artifact); a prior log at the
// same path is truncated.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewRecorder creates the log file at path and writes the header.
func NewRecorder(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission log: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to flush log header: %w", err)
	}

	return &Recorder{file: file, writer: writer}, nil
}

// Record appends one outcome and flushes it to disk immediately.
func (r *Recorder) Record(o types.FieldOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("submission log already finalized")
	}

	line := []string{
		strconv.Itoa(o.RowIndex),
		o.Field,
		o.Source,
		o.Observed,
		string(o.Status),
	}
	if err := r.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush outcome: %w", err)
	}
	return nil
}

// Finalize flushes and closes the log. Safe to call more than once.
func (r *Recorder) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.writer.Flush()
	flushErr := r.writer.Error()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush submission log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close submission log: %w", closeErr)
	}
	return nil
}
