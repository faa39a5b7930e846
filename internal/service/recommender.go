package service

import (
	"fmt"
	"sort"

	"cropwise-go/internal/dataset"
	"cropwise-go/internal/ml"
	"cropwise-go/internal/models"
)

// Recommendation dataset columns.
var recommendationFeatures = []string{
	"Temperature", "Humidity", "Rainfall", "PH",
	"Nitrogen", "Phosphorous", "Potassium", "Carbon",
}

const (
	colSoil = "Soil"
	colCrop = "Crop"

	defaultRecommendations = 3
)

// CropRecommender suggests crops for soil and climate readings with a random
// forest classifier over the numeric features plus the label-encoded soil.
type CropRecommender struct {
	Soil     *ml.LabelEncoder
	Crops    *ml.LabelEncoder
	Means    []float64
	SoilMode int
	Forest   *ml.RandomForestClassifier
	Info     models.ModelInfo
}

// TrainRecommender fits a recommender on the recommendation dataset.
func TrainRecommender(frame *dataset.Frame, opts TrainOptions) (*CropRecommender, error) {
	if err := frame.HasColumns(append([]string{colSoil, colCrop}, recommendationFeatures...)...); err != nil {
		return nil, err
	}
	frame, err := frame.DropMissing(colCrop)
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%s: no rows with a crop label", frame.Name)
	}

	means, err := columnMeans(frame, recommendationFeatures)
	if err != nil {
		return nil, err
	}
	X, err := numericRows(frame, recommendationFeatures, means)
	if err != nil {
		return nil, err
	}

	soilMode, err := frame.Mode(colSoil)
	if err != nil {
		return nil, err
	}
	soils, err := categoricalColumn(frame, colSoil, soilMode)
	if err != nil {
		return nil, err
	}
	soilEnc, err := ml.FitLabelEncoder(soils)
	if err != nil {
		return nil, err
	}
	soilCodes, err := soilEnc.TransformAll(soils)
	if err != nil {
		return nil, err
	}
	for i := range X {
		X[i] = append(X[i], float64(soilCodes[i]))
	}

	crops, err := frame.Column(colCrop)
	if err != nil {
		return nil, err
	}
	cropEnc, err := ml.FitLabelEncoder(crops)
	if err != nil {
		return nil, err
	}
	y, err := cropEnc.TransformAll(crops)
	if err != nil {
		return nil, err
	}

	train, test := holdout(len(X), opts)
	forest := ml.NewRandomForestClassifier(opts.forest()...)
	if err := forest.Fit(ml.Select(X, train), ml.Select(y, train), cropEnc.Len()); err != nil {
		return nil, fmt.Errorf("failed to fit recommendation forest: %w", err)
	}

	soilModeCode, _ := soilEnc.Transform(soilMode)
	r := &CropRecommender{
		Soil:     soilEnc,
		Crops:    cropEnc,
		Means:    means,
		SoilMode: soilModeCode,
		Forest:   forest,
	}
	r.Info = newModelInfo(KindRecommendation, "random_forest_classifier", frame, len(train), len(test))
	if len(test) > 0 {
		pred, err := forest.Predict(ml.Select(X, test))
		if err != nil {
			return nil, err
		}
		r.Info.Metrics = map[string]float64{"accuracy": ml.Accuracy(ml.Select(y, test), pred)}
	}
	return r, nil
}

// Recommend returns up to top_n crops (3 by default) ordered by the share of
// trees voting for them. The first crop is the forest's prediction; crops no
// tree voted for are left out.
func (r *CropRecommender) Recommend(req models.RecommendationRequest) (models.RecommendationResponse, error) {
	if r == nil || r.Forest == nil {
		return models.RecommendationResponse{}, ErrNotTrained
	}

	inputs := []*float64{
		req.Temperature, req.Humidity, req.Rainfall, req.PH,
		req.Nitrogen, req.Phosphorous, req.Potassium, req.Carbon,
	}
	x := make([]float64, 0, len(inputs)+1)
	for i, v := range inputs {
		if v == nil {
			x = append(x, r.Means[i])
		} else {
			x = append(x, *v)
		}
	}
	x = append(x, float64(r.soilCode(req.Soil)))

	proba, err := r.Forest.PredictProba(x)
	if err != nil {
		return models.RecommendationResponse{}, err
	}

	topN := defaultRecommendations
	if req.TopN != nil && *req.TopN > 0 {
		topN = *req.TopN
	}

	order := make([]int, len(proba))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return proba[order[a]] > proba[order[b]] })

	resp := models.RecommendationResponse{Crops: []string{}}
	for _, c := range order {
		if len(resp.Crops) == topN || (proba[c] == 0 && len(resp.Crops) > 0) {
			break
		}
		label, err := r.Crops.Inverse(c)
		if err != nil {
			return models.RecommendationResponse{}, err
		}
		resp.Crops = append(resp.Crops, label)
		resp.Candidates = append(resp.Candidates, models.CropScore{Crop: label, Probability: proba[c]})
	}
	return resp, nil
}

// soilCode matches the soil ignoring case, falling back to the most common
// soil when it is absent or unknown.
func (r *CropRecommender) soilCode(soil *string) int {
	if soil == nil {
		return r.SoilMode
	}
	if code, ok := r.Soil.Lookup(*soil); ok {
		return code
	}
	return r.SoilMode
}
