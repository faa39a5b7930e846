// Package analysis profiles training datasets: inferred column types, basic
// numeric statistics, null rates and cardinality.
package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"cropwise-go/internal/dataset"
	"cropwise-go/internal/models"
)

// Column types reported by the profiler.
const (
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeDate   = "date"
	TypeString = "string"
)

const (
	topValues = 5
	// string columns with at most this many categories list them all
	maxListedValues = 20
)

type Profiler struct {
	// SampleSize bounds the rows inspected for type inference. Zero means
	// all rows.
	SampleSize int
}

func NewProfiler() *Profiler {
	return &Profiler{SampleSize: 200}
}

// Profile summarises every column of the frame.
func (p *Profiler) Profile(frame *dataset.Frame, source string) models.DatasetProfile {
	out := models.DatasetProfile{
		Name:    frame.Name,
		Source:  source,
		Rows:    frame.Len(),
		Columns: make([]models.ColumnProfile, 0, len(frame.Headers)),
	}

	for c, name := range frame.Headers {
		col := models.ColumnProfile{
			Name: name,
			Type: p.inferColumnType(frame, c),
		}

		nulls := 0
		counts := make(map[string]int)
		for r := range frame.Rows {
			v := frame.Cell(r, c)
			if dataset.IsMissing(v) {
				nulls++
				continue
			}
			counts[v]++
		}
		if frame.Len() > 0 {
			col.NullRate = float64(nulls) / float64(frame.Len())
		}
		col.Distinct = len(counts)

		if col.Type == TypeInt || col.Type == TypeFloat {
			if s, err := CalculateStats(frame, c); err == nil {
				col.Min, col.Max, col.Mean, col.Median = &s.Min, &s.Max, &s.Mean, &s.Median
			}
		} else {
			col.Top = mostFrequent(counts, topValues)
			if col.Type == TypeString && col.Distinct <= maxListedValues {
				col.Values, _ = frame.SortedUnique(name)
			}
		}

		out.Columns = append(out.Columns, col)
	}
	return out
}

func (p *Profiler) inferColumnType(frame *dataset.Frame, c int) string {
	sampleSize := frame.Len()
	if p.SampleSize > 0 && sampleSize > p.SampleSize {
		sampleSize = p.SampleSize
	}

	isInt, isFloat, isDate := true, true, true
	seen := false
	for r := 0; r < sampleSize; r++ {
		val := frame.Cell(r, c)
		if dataset.IsMissing(val) {
			continue
		}
		seen = true
		if _, err := strconv.Atoi(val); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			isFloat = false
		}
		if !isDateString(val) {
			isDate = false
		}
	}

	switch {
	case !seen:
		return TypeString
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isDate:
		return TypeDate
	default:
		return TypeString
	}
}

func isDateString(val string) bool {
	formats := []string{
		time.RFC3339,
		"2006-01-02",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
	}
	for _, f := range formats {
		if _, err := time.Parse(f, val); err == nil {
			return true
		}
	}
	return false
}

// Stats are the summary statistics of a numeric column.
type Stats struct {
	Min, Max, Mean, Median float64
	Count                  int
}

// CalculateStats computes stats over the parseable values of column c.
func CalculateStats(frame *dataset.Frame, c int) (Stats, error) {
	values := []float64{}
	for r := range frame.Rows {
		if val, err := strconv.ParseFloat(frame.Cell(r, c), 64); err == nil {
			values = append(values, val)
		}
	}
	if len(values) == 0 {
		return Stats{}, fmt.Errorf("no numeric values")
	}

	sort.Float64s(values)
	s := Stats{
		Min:   values[0],
		Max:   values[len(values)-1],
		Count: len(values),
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(len(values))

	mid := len(values) / 2
	if len(values)%2 == 0 {
		s.Median = (values[mid-1] + values[mid]) / 2
	} else {
		s.Median = values[mid]
	}
	return s, nil
}

// mostFrequent returns up to n values by descending count, ties by value.
func mostFrequent(counts map[string]int, n int) []string {
	vals := make([]string, 0, len(counts))
	for v := range counts {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		if counts[vals[i]] != counts[vals[j]] {
			return counts[vals[i]] > counts[vals[j]]
		}
		return vals[i] < vals[j]
	})
	if len(vals) > n {
		vals = vals[:n]
	}
	return vals
}
