// Package ml implements the tabular learners behind the predictors: label
// and one-hot encoders, CART trees, random forests, gradient boosting and
// the usual evaluation helpers.
//
// Every fitted model keeps its state in exported fields so it round-trips
// through encoding/gob. Hyperparameters passed as options are not persisted;
// a decoded model predicts but refits with defaults.
package ml

import "encoding/gob"

// Regressor predicts one continuous target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
	PredictOne(x []float64) (float64, error)
}

var (
	_ Regressor = (*RandomForestRegressor)(nil)
	_ Regressor = (*GradientBoostingRegressor)(nil)
)

func init() {
	// Regressor values are stored behind the interface in artifacts.
	gob.Register(&RandomForestRegressor{})
	gob.Register(&GradientBoostingRegressor{})
}

type oneRowPredictor interface {
	PredictOne(x []float64) (float64, error)
}

func predictRows(m oneRowPredictor, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := m.PredictOne(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
