package ml

import "fmt"

// GradientBoostingRegressor fits shallow regression trees to the residuals
// of the running prediction under squared loss.
type GradientBoostingRegressor struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int

	NFeatures int
	Init      float64
	Trees     []*DecisionTree
}

func NewGradientBoostingRegressor(nEstimators int) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:  nEstimators,
		LearningRate: 0.1,
		MaxDepth:     3,
	}
}

func (g *GradientBoostingRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, len(y)); err != nil {
		return err
	}
	if g.NEstimators < 1 {
		return fmt.Errorf("ml: n_estimators must be positive, got %d", g.NEstimators)
	}
	if g.LearningRate <= 0 {
		return fmt.Errorf("ml: learning rate must be positive, got %g", g.LearningRate)
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.Init = sum / float64(len(y))
	g.NFeatures = len(X[0])
	g.Trees = make([]*DecisionTree, 0, g.NEstimators)

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.Init
	}
	residual := make([]float64, len(y))
	idx := allIndices(len(X))

	for m := 0; m < g.NEstimators; m++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		t := NewDecisionTree(Regression, WithMaxDepth(g.MaxDepth), WithTreeSeed(uint64(m)))
		t.fit(X, residual, nil, idx)
		for i, x := range X {
			pred[i] += g.LearningRate * t.predictLeaf(x).Value
		}
		g.Trees = append(g.Trees, t)
	}
	return nil
}

func (g *GradientBoostingRegressor) PredictOne(x []float64) (float64, error) {
	if len(g.Trees) == 0 {
		return 0, ErrNotFitted
	}
	out := g.Init
	for _, t := range g.Trees {
		v, err := t.PredictValue(x)
		if err != nil {
			return 0, err
		}
		out += g.LearningRate * v
	}
	return out, nil
}

func (g *GradientBoostingRegressor) Predict(X [][]float64) ([]float64, error) {
	return predictRows(g, X)
}
