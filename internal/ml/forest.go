package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestOption configures a random forest.
type ForestOption func(*forestParams)

type forestParams struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means the task default
	Bootstrap       bool
	Seed            uint64
	Workers         int
}

func WithEstimators(n int) ForestOption     { return func(p *forestParams) { p.NEstimators = n } }
func WithForestMaxDepth(d int) ForestOption { return func(p *forestParams) { p.MaxDepth = d } }
func WithForestMinSplit(n int) ForestOption { return func(p *forestParams) { p.MinSamplesSplit = n } }
func WithForestMinLeaf(n int) ForestOption  { return func(p *forestParams) { p.MinSamplesLeaf = n } }
func WithForestFeatures(k int) ForestOption { return func(p *forestParams) { p.MaxFeatures = k } }
func WithBootstrap(on bool) ForestOption    { return func(p *forestParams) { p.Bootstrap = on } }
func WithSeed(seed int64) ForestOption      { return func(p *forestParams) { p.Seed = uint64(seed) } }
func WithWorkers(n int) ForestOption        { return func(p *forestParams) { p.Workers = n } }

func defaultForestParams(opts []ForestOption) forestParams {
	p := forestParams{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
	for _, o := range opts {
		o(&p)
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// fitTrees grows n trees concurrently. Each tree gets its own seed and
// bootstrap sample drawn up front from the forest seed, so results do not
// depend on scheduling.
func fitTrees(p forestParams, nSamples int, newTree func(seed uint64) *DecisionTree, fit func(t *DecisionTree, idx []int)) ([]*DecisionTree, error) {
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("ml: n_estimators must be positive, got %d", p.NEstimators)
	}

	master := rand.New(rand.NewPCG(p.Seed, 0))
	trees := make([]*DecisionTree, p.NEstimators)
	samples := make([][]int, p.NEstimators)
	for i := range trees {
		trees[i] = newTree(master.Uint64())
		if p.Bootstrap {
			samples[i] = bootstrap(master, nSamples)
		} else {
			samples[i] = allIndices(nSamples)
		}
	}

	var g errgroup.Group
	g.SetLimit(p.Workers)
	for i := range trees {
		g.Go(func() error {
			fit(trees[i], samples[i])
			samples[i] = nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

func bootstrap(r *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = r.IntN(n)
	}
	return idx
}

// RandomForestClassifier averages the class probabilities of bootstrapped
// gini trees that each consider sqrt(p) features per split.
type RandomForestClassifier struct {
	NClasses  int
	NFeatures int
	Trees     []*DecisionTree

	opts []ForestOption
}

func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	return &RandomForestClassifier{opts: opts}
}

// Fit trains on labels in [0, nClasses).
func (f *RandomForestClassifier) Fit(X [][]float64, y []int, nClasses int) error {
	if err := checkXY(X, len(y)); err != nil {
		return err
	}
	for _, c := range y {
		if c < 0 || c >= nClasses {
			return fmt.Errorf("ml: class label %d out of range [0,%d)", c, nClasses)
		}
	}

	p := defaultForestParams(f.opts)
	nf := len(X[0])
	k := p.MaxFeatures
	if k <= 0 {
		k = max(1, int(math.Sqrt(float64(nf))))
	}

	trees, err := fitTrees(p, len(X),
		func(seed uint64) *DecisionTree {
			return NewDecisionTree(Classification,
				WithMaxDepth(p.MaxDepth),
				WithMinSamplesSplit(p.MinSamplesSplit),
				WithMinSamplesLeaf(p.MinSamplesLeaf),
				WithMaxFeatures(k),
				WithTreeSeed(seed),
				withClasses(nClasses))
		},
		func(t *DecisionTree, idx []int) { t.fit(X, nil, y, idx) })
	if err != nil {
		return err
	}

	f.NClasses = nClasses
	f.NFeatures = nf
	f.Trees = trees
	return nil
}

// PredictProba returns the mean tree probability for every class.
func (f *RandomForestClassifier) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, f.NClasses)
	for _, t := range f.Trees {
		if err := t.checkSample(x); err != nil {
			return nil, err
		}
		for c, p := range t.predictLeaf(x).Dist {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the most probable class per row. Ties go to the lower
// class index.
func (f *RandomForestClassifier) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		proba, err := f.PredictProba(x)
		if err != nil {
			return nil, err
		}
		out[i] = argmax(proba)
	}
	return out, nil
}

// RandomForestRegressor averages bootstrapped regression trees that consider
// every feature at each split.
type RandomForestRegressor struct {
	NFeatures int
	Trees     []*DecisionTree

	opts []ForestOption
}

func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	return &RandomForestRegressor{opts: opts}
}

func (f *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, len(y)); err != nil {
		return err
	}
	p := defaultForestParams(f.opts)

	trees, err := fitTrees(p, len(X),
		func(seed uint64) *DecisionTree {
			return NewDecisionTree(Regression,
				WithMaxDepth(p.MaxDepth),
				WithMinSamplesSplit(p.MinSamplesSplit),
				WithMinSamplesLeaf(p.MinSamplesLeaf),
				WithMaxFeatures(p.MaxFeatures),
				WithTreeSeed(seed))
		},
		func(t *DecisionTree, idx []int) { t.fit(X, y, nil, idx) })
	if err != nil {
		return err
	}

	f.NFeatures = len(X[0])
	f.Trees = trees
	return nil
}

func (f *RandomForestRegressor) PredictOne(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	var sum float64
	for _, t := range f.Trees {
		v, err := t.PredictValue(x)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

func (f *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	return predictRows(f, X)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
