package service

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"cropwise-go/internal/dataset"
	"cropwise-go/internal/models"
)

// Model kinds. They double as artifact names and URL path values.
const (
	KindRecommendation = "recommendation"
	KindRotation       = "rotation"
	KindYield          = "yield"
)

// Kinds lists every model kind in start-up order.
var Kinds = []string{KindRecommendation, KindRotation, KindYield}

// ValidKind reports whether kind names a predictor.
func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func newModelInfo(kind, algorithm string, frame *dataset.Frame, trainRows, testRows int) models.ModelInfo {
	now := time.Now().UTC()
	return models.ModelInfo{
		Kind:      kind,
		Algorithm: algorithm,
		Loaded:    true,
		Source:    "trained",
		Dataset:   frame.Name,
		Rows:      frame.Len(),
		TrainRows: trainRows,
		TestRows:  testRows,
		TrainedAt: &now,
	}
}

// encodeArtifact gob-encodes a fitted predictor.
func encodeArtifact(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArtifact(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode artifact: %w", err)
	}
	return nil
}

func (r *CropRecommender) MarshalBinary() ([]byte, error) {
	type plain CropRecommender
	return encodeArtifact((*plain)(r))
}

func (r *CropRecommender) UnmarshalBinary(data []byte) error {
	type plain CropRecommender
	if err := decodeArtifact(data, (*plain)(r)); err != nil {
		return err
	}
	if r.Forest == nil || r.Soil == nil || r.Crops == nil {
		return fmt.Errorf("recommendation artifact is incomplete")
	}
	r.Info.Source = "store"
	return nil
}

func (p *RotationPredictor) MarshalBinary() ([]byte, error) {
	type plain RotationPredictor
	return encodeArtifact((*plain)(p))
}

func (p *RotationPredictor) UnmarshalBinary(data []byte) error {
	type plain RotationPredictor
	if err := decodeArtifact(data, (*plain)(p)); err != nil {
		return err
	}
	if p.Encoder == nil || p.YieldModel == nil || p.CarbonModel == nil {
		return fmt.Errorf("rotation artifact is incomplete")
	}
	p.Info.Source = "store"
	return nil
}

func (p *YieldPredictor) MarshalBinary() ([]byte, error) {
	type plain YieldPredictor
	return encodeArtifact((*plain)(p))
}

func (p *YieldPredictor) UnmarshalBinary(data []byte) error {
	type plain YieldPredictor
	if err := decodeArtifact(data, (*plain)(p)); err != nil {
		return err
	}
	if p.Model == nil || len(p.Encoders) != len(yieldFeatures) {
		return fmt.Errorf("yield artifact is incomplete")
	}
	p.Info.Source = "store"
	return nil
}
