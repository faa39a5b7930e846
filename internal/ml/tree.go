package ml

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Task selects the split criterion and leaf payload of a tree.
type Task int

const (
	// Classification splits on gini impurity; leaves hold class
	// probabilities.
	Classification Task = iota
	// Regression splits on squared error; leaves hold the mean target.
	Regression
)

const leaf = -1

// Node is one node of a fitted tree, stored in a flat slice so trees gob
// encode without pointers. Feature is -1 for leaves.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Dist      []float64
}

// DecisionTree is a CART tree. Samples with x[Feature] <= Threshold go left.
type DecisionTree struct {
	Task            Task
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features tried per split, 0 means all
	Seed            uint64

	NFeatures int
	NClasses  int
	Nodes     []Node
}

type TreeOption func(*DecisionTree)

func WithMaxDepth(d int) TreeOption        { return func(t *DecisionTree) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) TreeOption { return func(t *DecisionTree) { t.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) TreeOption  { return func(t *DecisionTree) { t.MinSamplesLeaf = n } }
func WithMaxFeatures(k int) TreeOption     { return func(t *DecisionTree) { t.MaxFeatures = k } }
func WithTreeSeed(seed uint64) TreeOption  { return func(t *DecisionTree) { t.Seed = seed } }
func withClasses(n int) TreeOption         { return func(t *DecisionTree) { t.NClasses = n } }

// NewDecisionTree returns an unfitted tree for the given task.
func NewDecisionTree(task Task, opts ...TreeOption) *DecisionTree {
	t := &DecisionTree{
		Task:            task,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// FitClassifier fits the tree on integer class labels in [0, nClasses).
func (t *DecisionTree) FitClassifier(X [][]float64, y []int) error {
	if err := checkXY(X, len(y)); err != nil {
		return err
	}
	if t.NClasses == 0 {
		t.NClasses = slices.Max(y) + 1
	}
	for _, c := range y {
		if c < 0 || c >= t.NClasses {
			return fmt.Errorf("ml: class label %d out of range [0,%d)", c, t.NClasses)
		}
	}
	t.Task = Classification
	t.fit(X, nil, y, allIndices(len(X)))
	return nil
}

// FitRegressor fits the tree on continuous targets.
func (t *DecisionTree) FitRegressor(X [][]float64, y []float64) error {
	if err := checkXY(X, len(y)); err != nil {
		return err
	}
	t.Task = Regression
	t.fit(X, y, nil, allIndices(len(X)))
	return nil
}

// fit grows the tree on the samples in idx. idx may repeat samples, which is
// how bootstrap draws reach the tree.
func (t *DecisionTree) fit(X [][]float64, yr []float64, yc []int, idx []int) {
	t.NFeatures = len(X[0])
	t.Nodes = t.Nodes[:0]
	b := &builder{
		tree: t,
		X:    X,
		yr:   yr,
		yc:   yc,
		rnd:  rand.New(rand.NewPCG(t.Seed, t.Seed^0x9e3779b97f4a7c15)),
	}
	b.grow(idx, 0)
}

// predictLeaf walks x down to its leaf.
func (t *DecisionTree) predictLeaf(x []float64) *Node {
	n := &t.Nodes[0]
	for n.Feature != leaf {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// PredictValue returns the regression output for one sample.
func (t *DecisionTree) PredictValue(x []float64) (float64, error) {
	if err := t.checkSample(x); err != nil {
		return 0, err
	}
	return t.predictLeaf(x).Value, nil
}

// PredictProba returns class probabilities for one sample.
func (t *DecisionTree) PredictProba(x []float64) ([]float64, error) {
	if err := t.checkSample(x); err != nil {
		return nil, err
	}
	return slices.Clone(t.predictLeaf(x).Dist), nil
}

// Depth returns the depth of the deepest leaf.
func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}

func (t *DecisionTree) checkSample(x []float64) error {
	if len(t.Nodes) == 0 {
		return ErrNotFitted
	}
	if len(x) != t.NFeatures {
		return fmt.Errorf("ml: sample has %d features, tree expects %d", len(x), t.NFeatures)
	}
	return nil
}

type builder struct {
	tree *DecisionTree
	X    [][]float64
	yr   []float64
	yc   []int
	rnd  *rand.Rand
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples [0,pos) of the sorted order go left
	score     float64
	order     []int
}

func (b *builder) grow(idx []int, depth int) int {
	t := b.tree
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, b.leafNode(idx))

	if len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf {
		return nodeID
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return nodeID
	}
	if b.pure(idx) {
		return nodeID
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return nodeID
	}

	left := slices.Clone(best.order[:best.pos])
	right := slices.Clone(best.order[best.pos:])
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	n := &t.Nodes[nodeID]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	n.Dist = nil
	return nodeID
}

func (b *builder) leafNode(idx []int) Node {
	n := Node{Feature: leaf}
	if b.tree.Task == Regression {
		var sum float64
		for _, i := range idx {
			sum += b.yr[i]
		}
		n.Value = sum / float64(len(idx))
		return n
	}
	n.Dist = make([]float64, b.tree.NClasses)
	for _, i := range idx {
		n.Dist[b.yc[i]]++
	}
	best := 0
	for c := range n.Dist {
		n.Dist[c] /= float64(len(idx))
		if n.Dist[c] > n.Dist[best] {
			best = c
		}
	}
	n.Value = float64(best)
	return n
}

func (b *builder) pure(idx []int) bool {
	first := idx[0]
	for _, i := range idx[1:] {
		if b.tree.Task == Regression {
			if b.yr[i] != b.yr[first] {
				return false
			}
		} else if b.yc[i] != b.yc[first] {
			return false
		}
	}
	return true
}

// bestSplit tries features in random order. At least MaxFeatures features
// are evaluated; the search keeps going past that only while no valid split
// has been found.
func (b *builder) bestSplit(idx []int) (split, bool) {
	t := b.tree
	k := t.MaxFeatures
	if k <= 0 || k > t.NFeatures {
		k = t.NFeatures
	}

	var features []int
	if k == t.NFeatures {
		features = allIndices(t.NFeatures)
	} else {
		features = b.rnd.Perm(t.NFeatures)
	}

	parent := b.parentScore(idx)
	best := split{score: parent}
	found := false
	for tried, f := range features {
		if tried >= k && found {
			break
		}
		if s, ok := b.evalFeature(idx, f); ok && s.score > best.score+1e-12 {
			best = s
			found = true
		}
	}
	return best, found
}

// parentScore is the proxy the split search maximises, evaluated without a
// split: sum(y)^2/n for regression, sum(count^2)/n for gini.
func (b *builder) parentScore(idx []int) float64 {
	n := float64(len(idx))
	if b.tree.Task == Regression {
		var sum float64
		for _, i := range idx {
			sum += b.yr[i]
		}
		return sum * sum / n
	}
	counts := make([]float64, b.tree.NClasses)
	for _, i := range idx {
		counts[b.yc[i]]++
	}
	var sq float64
	for _, c := range counts {
		sq += c * c
	}
	return sq / n
}

func (b *builder) evalFeature(idx []int, f int) (split, bool) {
	order := slices.Clone(idx)
	slices.SortFunc(order, func(a, c int) int { return cmp.Compare(b.X[a][f], b.X[c][f]) })

	n := len(order)
	minLeaf := max(b.tree.MinSamplesLeaf, 1)
	if b.X[order[0]][f] == b.X[order[n-1]][f] {
		return split{}, false
	}

	best := split{feature: f, score: -1}
	found := false

	if b.tree.Task == Regression {
		var total float64
		for _, i := range order {
			total += b.yr[i]
		}
		var left float64
		for p := 1; p < n; p++ {
			left += b.yr[order[p-1]]
			if p < minLeaf || n-p < minLeaf {
				continue
			}
			lo, hi := b.X[order[p-1]][f], b.X[order[p]][f]
			if lo == hi {
				continue
			}
			right := total - left
			score := left*left/float64(p) + right*right/float64(n-p)
			if score > best.score {
				best.score, best.pos, best.threshold = score, p, lo+(hi-lo)/2
				found = true
			}
		}
	} else {
		nc := b.tree.NClasses
		leftC := make([]float64, nc)
		rightC := make([]float64, nc)
		for _, i := range order {
			rightC[b.yc[i]]++
		}
		var leftSq, rightSq float64
		for _, c := range rightC {
			rightSq += c * c
		}
		for p := 1; p < n; p++ {
			c := b.yc[order[p-1]]
			// moving one sample of class c from right to left
			leftSq += 2*leftC[c] + 1
			rightSq -= 2*rightC[c] - 1
			leftC[c]++
			rightC[c]--
			if p < minLeaf || n-p < minLeaf {
				continue
			}
			lo, hi := b.X[order[p-1]][f], b.X[order[p]][f]
			if lo == hi {
				continue
			}
			score := leftSq/float64(p) + rightSq/float64(n-p)
			if score > best.score {
				best.score, best.pos, best.threshold = score, p, lo+(hi-lo)/2
				found = true
			}
		}
	}

	if found && best.threshold == b.X[order[best.pos]][f] {
		// midpoint rounded onto the upper value; keep the lower one so the
		// sample still routes right
		best.threshold = b.X[order[best.pos-1]][f]
	}
	best.order = order
	return best, found
}

// ErrNotFitted is returned when predicting with an unfitted model.
var ErrNotFitted = errors.New("ml: model is not fitted")

func checkXY(X [][]float64, ny int) error {
	if len(X) == 0 {
		return errors.New("ml: empty training set")
	}
	if len(X) != ny {
		return fmt.Errorf("ml: X has %d rows but y has %d", len(X), ny)
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("ml: no features")
	}
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("ml: row %d has %d features, expected %d", i, len(row), p)
		}
	}
	return nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
