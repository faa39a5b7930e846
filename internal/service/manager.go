package service

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"sync"
	"time"

	"cropwise-go/internal/analysis"
	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/logging"
	"cropwise-go/internal/metrics"
	"cropwise-go/internal/models"
	"cropwise-go/internal/store"
)

// Registry receives predictors as they are loaded or retrained.
type Registry interface {
	SetRecommender(r *CropRecommender)
	SetRotation(p *RotationPredictor)
	SetYield(p *YieldPredictor)
	SetInfo(info models.ModelInfo)
}

// Artifact is a fitted predictor that can be persisted.
type Artifact interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Manager owns the predictors' life cycle: restore from the artifact store,
// train from the datasets and persist.
type Manager struct {
	cfg      config.Config
	loader   *dataset.Loader
	store    store.ArtifactStore
	registry Registry
	profiler *analysis.Profiler

	// training is CPU heavy; one run at a time
	mu sync.Mutex
}

// NewManager wires a manager. st may be nil, in which case nothing is
// restored or persisted.
func NewManager(cfg config.Config, loader *dataset.Loader, st store.ArtifactStore, reg Registry) *Manager {
	return &Manager{cfg: cfg, loader: loader, store: st, registry: reg, profiler: analysis.NewProfiler()}
}

// TrainOptions derives training options from the models configuration.
func (m *Manager) TrainOptions() TrainOptions {
	return TrainOptions{
		NEstimators: m.cfg.Models.NEstimators,
		Seed:        m.cfg.Models.Seed,
		TestSize:    m.cfg.Models.TestSize,
		Workers:     m.cfg.Models.Workers,
		Algorithm:   m.cfg.Models.YieldAlgorithm,

		MaxDepth:        m.cfg.Models.MaxDepth,
		MinSamplesSplit: m.cfg.Models.MinSamplesSplit,
		MinSamplesLeaf:  m.cfg.Models.MinSamplesLeaf,
		MaxFeatures:     m.cfg.Models.MaxFeatures,
		NoBootstrap:     !m.cfg.Models.Bootstrap,
	}
}

// DatasetConfig returns the dataset a kind trains on.
func (m *Manager) DatasetConfig(kind string) (config.DatasetConfig, error) {
	switch kind {
	case KindRecommendation:
		return m.cfg.Datasets.Recommendation, nil
	case KindRotation:
		return m.cfg.Datasets.Rotation, nil
	case KindYield:
		return m.cfg.Datasets.Yield, nil
	}
	return config.DatasetConfig{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Dataset loads the dataset a kind trains on.
func (m *Manager) Dataset(ctx context.Context, kind string) (*dataset.Frame, config.DatasetConfig, error) {
	dc, err := m.DatasetConfig(kind)
	if err != nil {
		return nil, dc, err
	}
	frame, err := m.loader.Load(ctx, dc)
	return frame, dc, err
}

// Profile loads and profiles the dataset a kind trains on.
func (m *Manager) Profile(ctx context.Context, kind string) (models.DatasetProfile, error) {
	frame, dc, err := m.Dataset(ctx, kind)
	if err != nil {
		return models.DatasetProfile{}, err
	}
	source := "csv"
	if dc.Table != "" && m.cfg.Database.PostgresDSN != "" {
		source = "postgres"
	}
	return m.profiler.Profile(frame, source), nil
}

// Load brings up every predictor. Each one is restored from the store, or
// trained when no artifact exists or train_on_start is set. A predictor that
// fails is logged and left unloaded; the returned error joins all failures.
func (m *Manager) Load(ctx context.Context) error {
	var errs []error
	for _, kind := range Kinds {
		if err := m.LoadKind(ctx, kind); err != nil {
			logging.Error().Err(err).Str("model", kind).Msg("model unavailable")
			metrics.SetModelLoaded(kind, false)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// LoadKind restores or trains a single predictor.
func (m *Manager) LoadKind(ctx context.Context, kind string) error {
	if !ValidKind(kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if m.store != nil && !m.cfg.Models.TrainOnStart {
		a, err := m.restore(ctx, kind)
		switch {
		case err == nil:
			m.install(a)
			logging.Info().Str("model", kind).Msg("model restored from store")
			return nil
		case errors.Is(err, store.ErrNotFound):
			logging.Info().Str("model", kind).Msg("no stored model, training")
		default:
			logging.Warn().Err(err).Str("model", kind).Msg("stored model unreadable, training")
		}
	}
	_, err := m.Retrain(ctx, kind)
	return err
}

func (m *Manager) restore(ctx context.Context, kind string) (Artifact, error) {
	var a Artifact
	switch kind {
	case KindRecommendation:
		a = &CropRecommender{}
	case KindRotation:
		a = &RotationPredictor{}
	case KindYield:
		a = &YieldPredictor{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := m.store.Load(ctx, kind, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Train fits a predictor of the given kind without installing it.
func (m *Manager) Train(ctx context.Context, kind string) (Artifact, models.ModelInfo, error) {
	frame, dc, err := m.Dataset(ctx, kind)
	if err != nil {
		return nil, models.ModelInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	opts := m.TrainOptions()
	var (
		a    Artifact
		info models.ModelInfo
	)
	switch kind {
	case KindRecommendation:
		r, err := TrainRecommender(frame, opts)
		if err != nil {
			return nil, info, err
		}
		a, info = r, r.Info
	case KindRotation:
		p, err := TrainRotation(frame, opts)
		if err != nil {
			return nil, info, err
		}
		a, info = p, p.Info
	case KindYield:
		p, err := TrainYield(frame, opts)
		if err != nil {
			return nil, info, err
		}
		a, info = p, p.Info
	}
	elapsed := time.Since(start)
	metrics.ObserveTraining(kind, elapsed)

	logging.Info().
		Str("model", kind).
		Str("dataset", dc.Name()).
		Int("train_rows", info.TrainRows).
		Int("test_rows", info.TestRows).
		Interface("metrics", info.Metrics).
		Dur("elapsed", elapsed).
		Msg("model trained")
	return a, info, nil
}

// Retrain trains a predictor from its dataset, persists it when configured
// and swaps it in. The previous predictor keeps serving if training fails.
func (m *Manager) Retrain(ctx context.Context, kind string) (models.ModelInfo, error) {
	if !ValidKind(kind) {
		return models.ModelInfo{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	a, info, err := m.Train(ctx, kind)
	if err != nil {
		m.registry.SetInfo(models.ModelInfo{Kind: kind, Error: err.Error()})
		return models.ModelInfo{}, err
	}
	if m.store != nil && m.cfg.Models.Persist {
		if err := m.store.Save(ctx, kind, a); err != nil {
			logging.Warn().Err(err).Str("model", kind).Msg("failed to persist model")
		}
	}
	m.install(a)
	return info, nil
}

func (m *Manager) install(a Artifact) {
	var info models.ModelInfo
	switch p := a.(type) {
	case *CropRecommender:
		m.registry.SetRecommender(p)
		info = p.Info
	case *RotationPredictor:
		m.registry.SetRotation(p)
		info = p.Info
	case *YieldPredictor:
		m.registry.SetYield(p)
		info = p.Info
	}
	m.registry.SetInfo(info)
	metrics.SetModelLoaded(info.Kind, true)
}
