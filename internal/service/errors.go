package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained means the predictor has no fitted model yet.
	ErrNotTrained = errors.New("model is not trained")
	// ErrNoValidCrops means a season has no crop that fits the soil and
	// the preferences.
	ErrNoValidCrops = errors.New("no valid crops")
	// ErrNoSequences means every candidate sequence repeats a crop.
	ErrNoSequences = errors.New("no valid crop sequences")
	// ErrUnknownSeason is returned for a start season outside the catalog.
	ErrUnknownSeason = errors.New("unknown season")
	// ErrInvalidWeights is returned when the scoring weights do not sum to
	// a positive value.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrInvalidSeasonCount is returned for a season count outside 1..3.
	ErrInvalidSeasonCount = errors.New("invalid number of seasons")
	// ErrUnknownKind is returned for a model kind that does not exist.
	ErrUnknownKind = errors.New("unknown model kind")
)

// NoValidCropsError reports the season and soil that left no candidates.
type NoValidCropsError struct {
	Season string
	Soil   string
}

func (e *NoValidCropsError) Error() string {
	return fmt.Sprintf("No valid crops for %s in %s soil.", e.Season, e.Soil)
}

func (e *NoValidCropsError) Unwrap() error { return ErrNoValidCrops }
