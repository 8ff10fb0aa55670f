// Package sheet loads the tabular input file and exposes it as an ordered
// sequence of rows. Both .xlsx workbooks and plain CSV are accepted; the
// first row is always the header.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"carlog/internal/types"
)

var (
	// ErrNotFound means the input path does not exist.
	ErrNotFound = errors.New("input file not found")
	// ErrBadFormat means the file exists but is not a readable table with a
	// header row and the required columns.
	ErrBadFormat = errors.New("malformed input file")
)

// Reader reads one input file. Re-invoking Read re-reads the file; it is
// not a live cursor.
type Reader struct {
	path     string
	fileType string // "xlsx" or "csv"

	// canonical maps a normalized header to its canonical column name, so
	// "start mileage" and "Start_Mileage" land on the same mapping.
	canonical map[string]string
	required  []string
}

// NewReader creates a reader for path. columns are the canonical column
// names the field mappings use; required are the columns that must appear
// in the header.
func NewReader(path string, columns, required []string) *Reader {
	ext := strings.ToLower(filepath.Ext(path))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}

	canonical := make(map[string]string, len(columns))
	for _, c := range columns {
		canonical[normalizeHeader(c)] = c
	}
	return &Reader{path: path, fileType: fileType, canonical: canonical, required: required}
}

// Read loads the file into rows. The row order is the file order and each
// row preserves the header's column order.
func (r *Reader) Read() ([]types.Row, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.path)
	}

	var (
		raw [][]string
		err error
	)
	switch r.fileType {
	case "csv":
		raw, err = r.readCSV()
	default:
		raw, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	return r.processRows(raw)
}

func (r *Reader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrBadFormat)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return rows, nil
}

func (r *Reader) readCSV() ([][]string, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return rows, nil
}

// processRows converts raw cells into typed rows: headers are trimmed and
// renamed to their canonical column names, cells are trimmed, and short
// rows are padded with empty cells.
func (r *Reader) processRows(raw [][]string) ([]types.Row, error) {
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrBadFormat)
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		h = strings.TrimSpace(h)
		if canon, ok := r.canonical[normalizeHeader(h)]; ok {
			h = canon
		}
		headers[i] = h
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range r.required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %v", ErrBadFormat, missing)
	}

	rows := make([]types.Row, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		values := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(raw[i]) {
				values[h] = strings.TrimSpace(raw[i][j])
			} else {
				values[h] = ""
			}
		}
		rows = append(rows, types.NewRow(len(rows)+1, headers, values))
	}
	return rows, nil
}

// normalizeHeader folds case and treats spaces and underscores as the same
// separator, matching how operators name columns by hand.
func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}
