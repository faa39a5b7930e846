package service

import (
	"fmt"
	"math"

	"cropwise-go/internal/dataset"
	"cropwise-go/internal/ml"
	"cropwise-go/internal/models"
)

var rotationCategorical = []string{"Region", "Soil_Type", "Start_Season", "Crop1", "Crop2", "Crop3"}

const (
	colSeasons   = "Number_of_Seasons"
	colRotYield  = "Yield_t_per_ha"
	colRotCarbon = "Carbon_Sequestration_kg_CO2"
	colCrop3     = "Crop3"
	noCrop       = "None"
)

// RotationFeatures is one fully specified rotation to score. Crop3 is "None"
// for rotations shorter than three seasons.
type RotationFeatures struct {
	Region          string
	SoilType        string
	StartSeason     string
	Crop1           string
	Crop2           string
	Crop3           string
	NumberOfSeasons float64
}

func (f RotationFeatures) categorical() []string {
	return []string{f.Region, f.SoilType, f.StartSeason, f.Crop1, f.Crop2, f.Crop3}
}

// RotationPredictor predicts yield and carbon sequestration of a crop
// rotation with two independent random forest regressors over one-hot
// encoded categories and the season count.
type RotationPredictor struct {
	Encoder     *ml.OneHotEncoder
	Modes       []string
	SeasonsMean float64
	YieldModel  ml.Regressor
	CarbonModel ml.Regressor
	Info        models.ModelInfo
}

func TrainRotation(frame *dataset.Frame, opts TrainOptions) (*RotationPredictor, error) {
	cols := append(append([]string{}, rotationCategorical...), colSeasons, colRotYield, colRotCarbon)
	if err := frame.HasColumns(cols...); err != nil {
		return nil, err
	}
	frame, err := frame.DropMissing(colRotYield, colRotCarbon)
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%s: no rows with both targets", frame.Name)
	}

	values := make([][]string, len(rotationCategorical))
	modes := make([]string, len(rotationCategorical))
	for j, c := range rotationCategorical {
		fill := noCrop
		if c != colCrop3 {
			if fill, err = frame.Mode(c); err != nil {
				return nil, err
			}
		}
		if values[j], err = categoricalColumn(frame, c, fill); err != nil {
			return nil, err
		}
		modes[j] = modeOf(values[j])
	}

	enc, err := ml.FitOneHotEncoder(rotationCategorical, values)
	if err != nil {
		return nil, err
	}

	seasonsMean, err := frame.Mean(colSeasons)
	if err != nil {
		return nil, err
	}
	seasons, err := numericRows(frame, []string{colSeasons}, []float64{seasonsMean})
	if err != nil {
		return nil, err
	}
	targets, err := numericRows(frame, []string{colRotYield, colRotCarbon}, []float64{0, 0})
	if err != nil {
		return nil, err
	}

	p := &RotationPredictor{Encoder: enc, Modes: modes, SeasonsMean: seasonsMean}

	X := make([][]float64, frame.Len())
	row := make([]string, len(rotationCategorical))
	for r := range X {
		for j := range rotationCategorical {
			row[j] = values[j][r]
		}
		if X[r], err = p.encode(row, seasons[r][0]); err != nil {
			return nil, err
		}
	}
	yYield := make([]float64, len(targets))
	yCarbon := make([]float64, len(targets))
	for r, t := range targets {
		yYield[r], yCarbon[r] = t[0], t[1]
	}

	train, test := holdout(len(X), opts)
	Xtr := ml.Select(X, train)

	p.YieldModel = ml.NewRandomForestRegressor(opts.forest()...)
	if err := p.YieldModel.Fit(Xtr, ml.Select(yYield, train)); err != nil {
		return nil, fmt.Errorf("failed to fit rotation yield model: %w", err)
	}
	p.CarbonModel = ml.NewRandomForestRegressor(opts.forest()...)
	if err := p.CarbonModel.Fit(Xtr, ml.Select(yCarbon, train)); err != nil {
		return nil, fmt.Errorf("failed to fit rotation carbon model: %w", err)
	}

	p.Info = newModelInfo(KindRotation, "random_forest_regressor", frame, len(train), len(test))
	if len(test) > 0 {
		Xte := ml.Select(X, test)
		yPred, err := p.YieldModel.Predict(Xte)
		if err != nil {
			return nil, err
		}
		cPred, err := p.CarbonModel.Predict(Xte)
		if err != nil {
			return nil, err
		}
		yTrue, cTrue := ml.Select(yYield, test), ml.Select(yCarbon, test)
		p.Info.Metrics = map[string]float64{
			"yield_r2":   ml.R2(yTrue, yPred),
			"yield_mse":  ml.MSE(yTrue, yPred),
			"carbon_r2":  ml.R2(cTrue, cPred),
			"carbon_mse": ml.MSE(cTrue, cPred),
		}
	}
	return p, nil
}

func (p *RotationPredictor) encode(categorical []string, seasons float64) ([]float64, error) {
	x := make([]float64, p.Encoder.Width()+1)
	if err := p.Encoder.TransformInto(x, categorical); err != nil {
		return nil, err
	}
	x[len(x)-1] = seasons
	return x, nil
}

// Features resolves a request into a complete rotation, filling absent
// categories with the training mode and an absent season count with the
// training mean.
func (p *RotationPredictor) Features(req models.RotationRequest) RotationFeatures {
	pick := func(v *string, j int) string {
		if s := deref(v); s != "" {
			return s
		}
		return p.Modes[j]
	}
	f := RotationFeatures{
		Region:          pick(req.Region, 0),
		SoilType:        pick(req.SoilType, 1),
		StartSeason:     pick(req.StartSeason, 2),
		Crop1:           pick(req.Crop1, 3),
		Crop2:           pick(req.Crop2, 4),
		Crop3:           pick(req.Crop3, 5),
		NumberOfSeasons: p.SeasonsMean,
	}
	if req.NumberOfSeasons != nil {
		f.NumberOfSeasons = float64(*req.NumberOfSeasons)
	}
	return f
}

// Predict scores one rotation request.
func (p *RotationPredictor) Predict(req models.RotationRequest) (models.RotationResponse, error) {
	if p == nil || p.YieldModel == nil || p.CarbonModel == nil {
		return models.RotationResponse{}, ErrNotTrained
	}
	yields, carbons, err := p.PredictBatch([]RotationFeatures{p.Features(req)})
	if err != nil {
		return models.RotationResponse{}, err
	}
	return models.RotationResponse{YieldTPerHa: yields[0], CarbonKgCO2: carbons[0]}, nil
}

// PredictBatch scores many rotations at once, as the planner does.
func (p *RotationPredictor) PredictBatch(rows []RotationFeatures) (yields, carbons []float64, err error) {
	if p == nil || p.YieldModel == nil || p.CarbonModel == nil {
		return nil, nil, ErrNotTrained
	}
	X := make([][]float64, len(rows))
	for i, r := range rows {
		if X[i], err = p.encode(r.categorical(), r.NumberOfSeasons); err != nil {
			return nil, nil, err
		}
	}
	if yields, err = p.YieldModel.Predict(X); err != nil {
		return nil, nil, err
	}
	if carbons, err = p.CarbonModel.Predict(X); err != nil {
		return nil, nil, err
	}
	for i := range yields {
		if math.IsNaN(yields[i]) || math.IsNaN(carbons[i]) {
			return nil, nil, fmt.Errorf("rotation model produced NaN for row %d", i)
		}
	}
	return yields, carbons, nil
}

// modeOf returns the most frequent value, ties to the smallest.
func modeOf(values []string) string {
	counts := make(map[string]int, 16)
	for _, v := range values {
		counts[v]++
	}
	var best string
	bestN := -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
