package service

import (
	"fmt"
	"strconv"
	"strings"

	"cropwise-go/internal/dataset"
	"cropwise-go/internal/ml"
)

// TrainOptions are the knobs shared by every predictor's training run.
type TrainOptions struct {
	NEstimators int
	Seed        int64
	TestSize    float64
	Workers     int
	// Algorithm selects the yield regressor; the other predictors always
	// use random forests.
	Algorithm string

	// Zero values keep the ml defaults.
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	NoBootstrap     bool
}

func (o TrainOptions) forest() []ml.ForestOption {
	opts := []ml.ForestOption{ml.WithSeed(o.Seed), ml.WithWorkers(o.Workers)}
	if o.NEstimators > 0 {
		opts = append(opts, ml.WithEstimators(o.NEstimators))
	}
	if o.MaxDepth > 0 {
		opts = append(opts, ml.WithForestMaxDepth(o.MaxDepth))
	}
	if o.MinSamplesSplit > 0 {
		opts = append(opts, ml.WithForestMinSplit(o.MinSamplesSplit))
	}
	if o.MinSamplesLeaf > 0 {
		opts = append(opts, ml.WithForestMinLeaf(o.MinSamplesLeaf))
	}
	if o.MaxFeatures > 0 {
		opts = append(opts, ml.WithForestFeatures(o.MaxFeatures))
	}
	if o.NoBootstrap {
		opts = append(opts, ml.WithBootstrap(false))
	}
	return opts
}

func (o TrainOptions) estimators() int {
	if o.NEstimators > 0 {
		return o.NEstimators
	}
	return 100
}

// columnMeans returns the mean of every named numeric column.
func columnMeans(frame *dataset.Frame, cols []string) ([]float64, error) {
	means := make([]float64, len(cols))
	for i, c := range cols {
		m, err := frame.Mean(c)
		if err != nil {
			return nil, err
		}
		means[i] = m
	}
	return means, nil
}

// numericRows parses the named columns row by row, substituting fill[j] for
// missing cells of column j.
func numericRows(frame *dataset.Frame, cols []string, fill []float64) ([][]float64, error) {
	idx := make([]int, len(cols))
	for j, c := range cols {
		i, err := frame.ColumnIndex(c)
		if err != nil {
			return nil, err
		}
		idx[j] = i
	}

	out := make([][]float64, frame.Len())
	for r := range frame.Rows {
		row := make([]float64, len(cols))
		for j, c := range idx {
			v := frame.Cell(r, c)
			if dataset.IsMissing(v) {
				row[j] = fill[j]
				continue
			}
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %q row %d: %q is not numeric", frame.Name, cols[j], r+1, v)
			}
			row[j] = x
		}
		out[r] = row
	}
	return out, nil
}

// categoricalColumn returns a column with missing cells replaced by fill.
func categoricalColumn(frame *dataset.Frame, col, fill string) ([]string, error) {
	vals, err := frame.Column(col)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if dataset.IsMissing(v) {
			vals[i] = fill
		}
	}
	return vals, nil
}

// holdout splits n rows per opts. With too few rows to hold any out every
// row trains and test is empty.
func holdout(n int, opts TrainOptions) (train, test []int) {
	if n < 5 {
		return ml.TrainTestSplit(n, 0, opts.Seed)
	}
	return ml.TrainTestSplit(n, opts.TestSize, opts.Seed)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
