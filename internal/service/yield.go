package service

import (
	"fmt"
	"math"

	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/ml"
	"cropwise-go/internal/models"
)

var yieldFeatures = []string{"Crop", "Season", "State"}

const colYield = "Yield"

// YieldPredictor predicts yield per hectare from label-encoded crop, season
// and state.
type YieldPredictor struct {
	Encoders  []*ml.LabelEncoder
	Modes     []int
	Algorithm string
	Model     ml.Regressor
	Info      models.ModelInfo
}

func TrainYield(frame *dataset.Frame, opts TrainOptions) (*YieldPredictor, error) {
	if err := frame.HasColumns(append([]string{colYield}, yieldFeatures...)...); err != nil {
		return nil, err
	}
	frame, err := frame.DropMissing(colYield)
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%s: no rows with a yield", frame.Name)
	}

	p := &YieldPredictor{
		Encoders: make([]*ml.LabelEncoder, len(yieldFeatures)),
		Modes:    make([]int, len(yieldFeatures)),
	}
	X := make([][]float64, frame.Len())
	for r := range X {
		X[r] = make([]float64, len(yieldFeatures))
	}
	for j, c := range yieldFeatures {
		mode, err := frame.Mode(c)
		if err != nil {
			return nil, err
		}
		vals, err := categoricalColumn(frame, c, mode)
		if err != nil {
			return nil, err
		}
		enc, err := ml.FitLabelEncoder(vals)
		if err != nil {
			return nil, err
		}
		codes, err := enc.TransformAll(vals)
		if err != nil {
			return nil, err
		}
		for r, code := range codes {
			X[r][j] = float64(code)
		}
		p.Encoders[j] = enc
		p.Modes[j], _ = enc.Transform(mode)
	}

	targets, err := numericRows(frame, []string{colYield}, []float64{0})
	if err != nil {
		return nil, err
	}
	y := make([]float64, len(targets))
	for r, t := range targets {
		y[r] = t[0]
	}

	switch opts.Algorithm {
	case config.AlgorithmGradientBoosting:
		p.Algorithm = config.AlgorithmGradientBoosting
		gb := ml.NewGradientBoostingRegressor(opts.estimators())
		if opts.MaxDepth > 0 {
			gb.MaxDepth = opts.MaxDepth
		}
		p.Model = gb
	default:
		p.Algorithm = config.AlgorithmRandomForest
		p.Model = ml.NewRandomForestRegressor(opts.forest()...)
	}

	train, test := holdout(len(X), opts)
	if err := p.Model.Fit(ml.Select(X, train), ml.Select(y, train)); err != nil {
		return nil, fmt.Errorf("failed to fit yield model: %w", err)
	}

	p.Info = newModelInfo(KindYield, p.Algorithm, frame, len(train), len(test))
	if len(test) > 0 {
		pred, err := p.Model.Predict(ml.Select(X, test))
		if err != nil {
			return nil, err
		}
		yTrue := ml.Select(y, test)
		p.Info.Metrics = map[string]float64{
			"r2":   ml.R2(yTrue, pred),
			"mse":  ml.MSE(yTrue, pred),
			"mae":  ml.MAE(yTrue, pred),
			"rmse": ml.RMSE(yTrue, pred),
		}
	}
	return p, nil
}

// Predict returns the yield in t/ha, never negative. Unknown or absent
// categories use the most common training value. When an area is given the
// total production is reported as well.
func (p *YieldPredictor) Predict(req models.YieldRequest) (models.YieldResponse, error) {
	if p == nil || p.Model == nil {
		return models.YieldResponse{}, ErrNotTrained
	}

	inputs := []*string{req.Crop, req.Season, req.State}
	x := make([]float64, len(yieldFeatures))
	for j, v := range inputs {
		code := p.Modes[j]
		if v != nil {
			if c, ok := p.Encoders[j].Lookup(*v); ok {
				code = c
			}
		}
		x[j] = float64(code)
	}

	v, err := p.Model.PredictOne(x)
	if err != nil {
		return models.YieldResponse{}, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return models.YieldResponse{}, fmt.Errorf("yield model produced a non-finite value")
	}
	v = math.Max(v, 0)

	resp := models.YieldResponse{YieldTPerHa: v}
	if req.AreaHectares != nil {
		area := *req.AreaHectares
		production := v * area
		resp.AreaHectares = &area
		resp.ProductionT = &production
	}
	return resp, nil
}
