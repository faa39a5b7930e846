package models

// Optional fields are pointers: a nil field is filled from the training data
// (column mean for numbers, most frequent value for categories).

// RecommendationRequest is the body of POST /api/recommend.
type RecommendationRequest struct {
	Soil        *string  `json:"soil,omitempty" validate:"omitempty,max=64"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=-50,lte=60"`
	Humidity    *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Rainfall    *float64 `json:"rainfall,omitempty" validate:"omitempty,gte=0"`
	PH          *float64 `json:"ph,omitempty" validate:"omitempty,gte=0,lte=14"`
	Nitrogen    *float64 `json:"nitrogen,omitempty" validate:"omitempty,gte=0"`
	Phosphorous *float64 `json:"phosphorous,omitempty" validate:"omitempty,gte=0"`
	Potassium   *float64 `json:"potassium,omitempty" validate:"omitempty,gte=0"`
	Carbon      *float64 `json:"carbon,omitempty" validate:"omitempty,gte=0"`
	TopN        *int     `json:"top_n,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// RotationRequest is the body of POST /api/rotation.
type RotationRequest struct {
	Region          *string `json:"region,omitempty" validate:"omitempty,max=64"`
	SoilType        *string `json:"soil_type,omitempty" validate:"omitempty,max=64"`
	StartSeason     *string `json:"start_season,omitempty" validate:"omitempty,max=32"`
	Crop1           *string `json:"crop1,omitempty" validate:"omitempty,max=64"`
	Crop2           *string `json:"crop2,omitempty" validate:"omitempty,max=64"`
	Crop3           *string `json:"crop3,omitempty" validate:"omitempty,max=64"`
	NumberOfSeasons *int    `json:"number_of_seasons,omitempty" validate:"omitempty,gte=1,lte=12"`
}

// YieldRequest is the body of POST /api/yield.
type YieldRequest struct {
	Crop         *string  `json:"crop,omitempty" validate:"omitempty,max=64"`
	Season       *string  `json:"season,omitempty" validate:"omitempty,max=32"`
	State        *string  `json:"state,omitempty" validate:"omitempty,max=64"`
	AreaHectares *float64 `json:"area_hectares,omitempty" validate:"omitempty,gte=0"`
}

// PlanRequest is the body of POST /api/rotation/plan. Zero values take the
// planner defaults; an empty PreferredCrops list applies no preference filter.
type PlanRequest struct {
	Region          string   `json:"region" validate:"max=64"`
	SoilType        string   `json:"soil_type" validate:"max=64"`
	StartSeason     string   `json:"start_season" validate:"max=32"`
	NumberOfSeasons int      `json:"number_of_seasons" validate:"omitempty,gte=1,lte=3"`
	PreferredCrops  []string `json:"preferred_crops" validate:"omitempty,max=50,dive,max=64"`
	YieldWeight     *float64 `json:"yield_weight,omitempty" validate:"omitempty,gte=0"`
	CarbonWeight    *float64 `json:"carbon_weight,omitempty" validate:"omitempty,gte=0"`
	TopN            int      `json:"top_n" validate:"omitempty,gte=1,lte=50"`
}

// Ptr returns a pointer to v. Handy for building optional request fields.
func Ptr[T any](v T) *T { return &v }
