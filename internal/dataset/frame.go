// Package dataset loads tabular training data from CSV files or Postgres
// tables into an in-memory Frame of string cells.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrColumnNotFound is returned when a required column is absent.
var ErrColumnNotFound = errors.New("column not found")

// Frame is a loaded table. Rows may be shorter than Headers; missing trailing
// cells read as empty.
type Frame struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (f *Frame) Len() int { return len(f.Rows) }

// ColumnIndex returns the index of the named column. Matching is exact
// first, then case-insensitive.
func (f *Frame) ColumnIndex(name string) (int, error) {
	for i, h := range f.Headers {
		if h == name {
			return i, nil
		}
	}
	for i, h := range f.Headers {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: %w: %q", f.Name, ErrColumnNotFound, name)
}

// HasColumns reports the first missing column, if any.
func (f *Frame) HasColumns(names ...string) error {
	for _, n := range names {
		if _, err := f.ColumnIndex(n); err != nil {
			return err
		}
	}
	return nil
}

// Cell returns the trimmed value at row r, column c.
func (f *Frame) Cell(r, c int) string {
	row := f.Rows[r]
	if c < 0 || c >= len(row) {
		return ""
	}
	return row[c]
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	idx, err := f.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.Rows))
	for r := range f.Rows {
		out[r] = f.Cell(r, idx)
	}
	return out, nil
}

// Floats parses the named column. Any missing or non-numeric cell is an
// error; fill or drop missing values first.
func (f *Frame) Floats(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, v := range col {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: column %q row %d: %q is not numeric", f.Name, name, i+1, v)
		}
		out[i] = x
	}
	return out, nil
}

// Mean is the average of the parseable, non-missing values in a column.
func (f *Frame) Mean(name string) (float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for _, v := range col {
		if IsMissing(v) {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: column %q has no numeric values", f.Name, name)
	}
	return sum / float64(n), nil
}

// Mode returns the most frequent non-missing value. Ties resolve to the
// lexicographically smallest value.
func (f *Frame) Mode(name string) (string, error) {
	col, err := f.Column(name)
	if err != nil {
		return "", err
	}
	counts := make(map[string]int)
	for _, v := range col {
		if !IsMissing(v) {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", fmt.Errorf("%s: column %q has no values", f.Name, name)
	}
	var best string
	bestN := -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, nil
}

// Unique returns the distinct non-missing values in first-seen order.
func (f *Frame) Unique(name string) ([]string, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, v := range col {
		if IsMissing(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// FillMissing replaces missing cells of a column in place and returns how
// many were filled.
func (f *Frame) FillMissing(name, value string) (int, error) {
	idx, err := f.ColumnIndex(name)
	if err != nil {
		return 0, err
	}
	n := 0
	for r, row := range f.Rows {
		if idx >= len(row) {
			grown := make([]string, len(f.Headers))
			copy(grown, row)
			f.Rows[r] = grown
			row = grown
		}
		if IsMissing(row[idx]) {
			row[idx] = value
			n++
		}
	}
	return n, nil
}

// DropMissing returns a frame without the rows that miss any of the given
// columns. The returned frame shares row slices with f.
func (f *Frame) DropMissing(names ...string) (*Frame, error) {
	idxs := make([]int, len(names))
	for i, n := range names {
		idx, err := f.ColumnIndex(n)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	out := &Frame{Name: f.Name, Headers: f.Headers, Rows: make([][]string, 0, len(f.Rows))}
	for r, row := range f.Rows {
		keep := true
		for _, idx := range idxs {
			if IsMissing(f.Cell(r, idx)) {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// NumericColumns lists the columns whose non-missing values all parse as
// numbers, in header order.
func (f *Frame) NumericColumns() []string {
	var out []string
	for c, h := range f.Headers {
		numeric, seen := true, false
		for r := range f.Rows {
			v := f.Cell(r, c)
			if IsMissing(v) {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && seen {
			out = append(out, h)
		}
	}
	return out
}

// SortedUnique is Unique sorted ascending.
func (f *Frame) SortedUnique(name string) ([]string, error) {
	vals, err := f.Unique(name)
	if err != nil {
		return nil, err
	}
	sort.Strings(vals)
	return vals, nil
}

var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"<na>": {},
	"#n/a": {},
}

// IsMissing reports whether a cell counts as a missing value. The literal
// "None" is a real category in rotation data and is not treated as missing.
func IsMissing(v string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
