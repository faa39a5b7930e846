package models

import (
	"time"

	"github.com/goccy/go-json"
)

// RecommendationResponse is returned by /api/recommend
type RecommendationResponse struct {
	Crops      []string    `json:"crops"`
	Candidates []CropScore `json:"candidates,omitempty"`
}

// CropScore is a crop with the share of trees that voted for it
type CropScore struct {
	Crop        string  `json:"crop"`
	Probability float64 `json:"probability"`
}

// RotationResponse is returned by /api/rotation
type RotationResponse struct {
	YieldTPerHa float64 `json:"yield_t_per_ha"`
	CarbonKgCO2 float64 `json:"carbon_kg_co2"`
}

// YieldResponse is returned by /api/yield
type YieldResponse struct {
	YieldTPerHa  float64  `json:"yield_t_per_ha"`
	AreaHectares *float64 `json:"area_hectares,omitempty"`
	ProductionT  *float64 `json:"production_t,omitempty"`
}

// ScoredSequence is one ranked crop sequence from the planner
type ScoredSequence struct {
	Rank   int      `json:"rank"`
	Crops  []string `json:"crops"`
	Yield  float64  `json:"yield_t_per_ha"`
	Carbon float64  `json:"carbon_kg_co2"`
	Score  float64  `json:"score"`
}

// Weights are the normalised scoring weights
type Weights struct {
	Yield  float64 `json:"yield"`
	Carbon float64 `json:"carbon"`
}

// PlanResult is returned by /api/rotation/plan
type PlanResult struct {
	Region       string              `json:"region"`
	SoilType     string              `json:"soil_type"`
	Seasons      []string            `json:"seasons"`
	Weights      Weights             `json:"weights"`
	ValidCrops   map[string][]string `json:"valid_crops"`
	IgnoredCrops []string            `json:"ignored_crops,omitempty"`
	Candidates   int                 `json:"candidates"`
	Sequences    []ScoredSequence    `json:"sequences"`
}

// ModelInfo describes one predictor's state
type ModelInfo struct {
	Kind      string             `json:"kind"`
	Algorithm string             `json:"algorithm,omitempty"`
	Loaded    bool               `json:"loaded"`
	Source    string             `json:"source,omitempty"`
	Dataset   string             `json:"dataset,omitempty"`
	Rows      int                `json:"rows,omitempty"`
	TrainRows int                `json:"train_rows,omitempty"`
	TestRows  int                `json:"test_rows,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	TrainedAt *time.Time         `json:"trained_at,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// StatusResponse is returned by /api/status
type StatusResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Models  []ModelInfo `json:"models"`
}

// ColumnProfile summarises one dataset column
type ColumnProfile struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	NullRate float64  `json:"null_rate"`
	Distinct int      `json:"distinct"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Median   *float64 `json:"median,omitempty"`
	Top      []string `json:"top_values,omitempty"`
	// Values lists every category of a low-cardinality string column.
	Values []string `json:"values,omitempty"`
}

// DatasetProfile is returned by /api/datasets/{name}
type DatasetProfile struct {
	Name    string          `json:"name"`
	Source  string          `json:"source"`
	Rows    int             `json:"rows"`
	Columns []ColumnProfile `json:"columns"`
}

// HistoryEntry is one recorded prediction
type HistoryEntry struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Request   json.RawMessage `json:"request"`
	Response  json.RawMessage `json:"response"`
	CreatedAt time.Time       `json:"created_at"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
