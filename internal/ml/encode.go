package ml

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// LabelEncoder maps category strings to integer codes in sorted order.
type LabelEncoder struct {
	Classes []string
}

// FitLabelEncoder builds an encoder over the distinct values.
func FitLabelEncoder(values []string) (*LabelEncoder, error) {
	classes := slices.Clone(values)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	if len(classes) == 0 {
		return nil, errors.New("ml: label encoder needs at least one value")
	}
	return &LabelEncoder{Classes: classes}, nil
}

func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Transform encodes a value that must have been seen during fit.
func (e *LabelEncoder) Transform(v string) (int, error) {
	if i, ok := slices.BinarySearch(e.Classes, v); ok {
		return i, nil
	}
	return -1, fmt.Errorf("ml: unseen label %q", v)
}

// TransformAll encodes a column.
func (e *LabelEncoder) TransformAll(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, err := e.Transform(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// Lookup matches v exactly, then ignoring case and surrounding whitespace.
func (e *LabelEncoder) Lookup(v string) (int, bool) {
	if i, err := e.Transform(v); err == nil {
		return i, true
	}
	v = strings.TrimSpace(v)
	for i, c := range e.Classes {
		if strings.EqualFold(strings.TrimSpace(c), v) {
			return i, true
		}
	}
	return -1, false
}

// Inverse decodes a code back to its label.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("ml: label code %d out of range", code)
	}
	return e.Classes[code], nil
}

// OneHotEncoder expands categorical columns into indicator features. Values
// not seen during fit encode as an all-zero block.
type OneHotEncoder struct {
	Columns    []string
	Categories [][]string
}

// FitOneHotEncoder learns sorted categories per column. values[j] holds all
// values of Columns[j].
func FitOneHotEncoder(columns []string, values [][]string) (*OneHotEncoder, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("ml: %d columns but %d value lists", len(columns), len(values))
	}
	enc := &OneHotEncoder{Columns: slices.Clone(columns), Categories: make([][]string, len(columns))}
	for j, vals := range values {
		cats := slices.Clone(vals)
		slices.Sort(cats)
		enc.Categories[j] = slices.Compact(cats)
	}
	return enc, nil
}

// Width is the number of output features.
func (e *OneHotEncoder) Width() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// FeatureNames returns Column_value for every output feature.
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, e.Columns[j]+"_"+c)
		}
	}
	return names
}

// Transform encodes one row holding a value per column.
func (e *OneHotEncoder) Transform(row []string) ([]float64, error) {
	out := make([]float64, e.Width())
	if err := e.TransformInto(out, row); err != nil {
		return nil, err
	}
	return out, nil
}

// TransformInto writes the encoding of row into dst[:Width()].
func (e *OneHotEncoder) TransformInto(dst []float64, row []string) error {
	if len(row) != len(e.Columns) {
		return fmt.Errorf("ml: one-hot row has %d values, expected %d", len(row), len(e.Columns))
	}
	offset := 0
	for j, cats := range e.Categories {
		for k := range cats {
			dst[offset+k] = 0
		}
		if k, ok := lookupCategory(cats, row[j]); ok {
			dst[offset+k] = 1
		}
		offset += len(cats)
	}
	return nil
}

// Known reports whether v is a fitted category of column j.
func (e *OneHotEncoder) Known(j int, v string) bool {
	_, ok := lookupCategory(e.Categories[j], v)
	return ok
}

func lookupCategory(cats []string, v string) (int, bool) {
	if k, ok := slices.BinarySearch(cats, v); ok {
		return k, true
	}
	v = strings.TrimSpace(v)
	for k, c := range cats {
		if strings.EqualFold(c, v) {
			return k, true
		}
	}
	return -1, false
}
