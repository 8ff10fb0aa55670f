// Package types holds the shared data model for the upload pipeline:
// spreadsheet rows, per-field outcomes, and run summaries.
package types

import "strings"

// Row is one spreadsheet record: an ordered mapping from column name to
// cell value. Rows are immutable after the loader produces them; Index is
// the 1-based position among data rows (the header row is not counted).
type Row struct {
	Index   int
	Columns []string
	values  map[string]string
}

// NewRow builds a row from ordered columns and their values.
func NewRow(index int, columns []string, values map[string]string) Row {
	vals := make(map[string]string, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return Row{Index: index, Columns: columns, values: vals}
}

// Value returns the cell value for a column, and whether the column exists.
func (r Row) Value(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Status classifies the result of setting one form control.
type Status string

const (
	// StatusMatched means the control's post-set value equals the source
	// value under Normalize.
	StatusMatched Status = "matched"
	// StatusMismatched means the control accepted a value, but not the one
	// the sheet supplied (e.g. a dropdown settled on a partial match).
	StatusMismatched Status = "mismatched"
	// StatusFailed means the control could not be located or set.
	StatusFailed Status = "failed"
	// StatusSkipped means the source cell was empty and the control was
	// left untouched.
	StatusSkipped Status = "skipped"
)

// FieldOutcome records one attempt to set one control from one row's cell.
type FieldOutcome struct {
	RowIndex int
	Field    string
	Source   string
	Observed string
	Status   Status
	Err      string
}

// Compare builds the status for a source/observed pair.
func Compare(source, observed string) Status {
	if Equivalent(source, observed) {
		return StatusMatched
	}
	return StatusMismatched
}

// Normalize is the fixed comparison normalization: surrounding whitespace
// is ignored and comparison is case-insensitive. Interior whitespace and
// punctuation are significant.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equivalent reports whether two values are equal under Normalize.
func Equivalent(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Summary aggregates a full run for the interface layer.
type Summary struct {
	RunID         string
	RowsProcessed int
	RowsSubmitted int
	FieldsTotal   int
	Matched       int
	Mismatched    int
	Failed        int
	Skipped       int
}

// Add folds one outcome into the summary counts.
func (s *Summary) Add(o FieldOutcome) {
	s.FieldsTotal++
	switch o.Status {
	case StatusMatched:
		s.Matched++
	case StatusMismatched:
		s.Mismatched++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}
