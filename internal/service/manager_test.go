package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/ml"
	"cropwise-go/internal/models"
	"cropwise-go/internal/store"
)

type memRegistry struct {
	mu          sync.Mutex
	recommender *CropRecommender
	rotation    *RotationPredictor
	yield       *YieldPredictor
	info        map[string]models.ModelInfo
}

func newMemRegistry() *memRegistry {
	return &memRegistry{info: map[string]models.ModelInfo{}}
}

func (r *memRegistry) SetRecommender(p *CropRecommender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recommender = p
}

func (r *memRegistry) SetRotation(p *RotationPredictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotation = p
}

func (r *memRegistry) SetYield(p *YieldPredictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.yield = p
}

func (r *memRegistry) SetInfo(info models.ModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info[info.Kind] = info
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Datasets.Recommendation.Path = filepath.Join("testdata", "recommendation.csv")
	cfg.Datasets.Rotation.Path = filepath.Join("testdata", "rotation.csv")
	cfg.Datasets.Yield.Path = filepath.Join("testdata", "yield.csv")
	cfg.Models.Dir = t.TempDir()
	cfg.Models.NEstimators = 10
	cfg.Models.Workers = 2
	return *cfg
}

func TestManager_TrainsThenRestores(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	st, err := store.NewFileStore(cfg.Models.Dir)
	require.NoError(t, err)

	reg := newMemRegistry()
	m := NewManager(cfg, dataset.NewLoader(""), st, reg)
	require.NoError(t, m.Load(ctx))
	require.NotNil(t, reg.recommender)
	require.NotNil(t, reg.rotation)
	require.NotNil(t, reg.yield)
	assert.Equal(t, "trained", reg.info[KindYield].Source)

	names, err := st.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, Kinds, names)

	restored := newMemRegistry()
	require.NoError(t, NewManager(cfg, dataset.NewLoader(""), st, restored).Load(ctx))
	for _, kind := range Kinds {
		assert.Equal(t, "store", restored.info[kind].Source, kind)
		assert.True(t, restored.info[kind].Loaded, kind)
	}

	req := models.YieldRequest{Crop: models.Ptr("Wheat")}
	want, err := reg.yield.Predict(req)
	require.NoError(t, err)
	got, err := restored.yield.Predict(req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManager_FailuresAreIsolated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasets.Rotation.Path = filepath.Join("testdata", "missing.csv")

	reg := newMemRegistry()
	err := NewManager(cfg, dataset.NewLoader(""), nil, reg).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), KindRotation)

	assert.NotNil(t, reg.recommender)
	assert.NotNil(t, reg.yield)
	assert.Nil(t, reg.rotation)
	assert.NotEmpty(t, reg.info[KindRotation].Error)
}

func TestManager_Retrain(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Models.YieldAlgorithm = config.AlgorithmGradientBoosting
	reg := newMemRegistry()
	m := NewManager(cfg, dataset.NewLoader(""), nil, reg)

	info, err := m.Retrain(ctx, KindYield)
	require.NoError(t, err)
	assert.Equal(t, config.AlgorithmGradientBoosting, info.Algorithm)
	assert.NotNil(t, reg.yield)

	_, err = m.Retrain(ctx, "weather")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestManager_RetrainFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	reg := newMemRegistry()
	m := NewManager(cfg, dataset.NewLoader(""), nil, reg)
	_, err := m.Retrain(ctx, KindRotation)
	require.NoError(t, err)
	assert.Empty(t, reg.info[KindRotation].Error)

	m.cfg.Datasets.Rotation.Path = filepath.Join("testdata", "missing.csv")
	_, err = m.Retrain(ctx, KindRotation)
	require.Error(t, err)
	assert.NotNil(t, reg.rotation)
	assert.Contains(t, reg.info[KindRotation].Error, "missing.csv")
}

func TestManager_TreeSettingsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models.MaxDepth = 2
	cfg.Models.MinSamplesLeaf = 3
	cfg.Models.Bootstrap = false
	m := NewManager(cfg, dataset.NewLoader(""), nil, newMemRegistry())

	opts := m.TrainOptions()
	assert.Equal(t, 2, opts.MaxDepth)
	assert.Equal(t, 3, opts.MinSamplesLeaf)
	assert.True(t, opts.NoBootstrap)

	a, _, err := m.Train(context.Background(), KindYield)
	require.NoError(t, err)
	forest, ok := a.(*YieldPredictor).Model.(*ml.RandomForestRegressor)
	require.True(t, ok)
	require.NotEmpty(t, forest.Trees)
	for _, tree := range forest.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
		assert.Equal(t, 3, tree.MinSamplesLeaf)
	}
}

func TestManager_TrainOnStartIgnoresStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	st, err := store.NewFileStore(cfg.Models.Dir)
	require.NoError(t, err)
	require.NoError(t, NewManager(cfg, dataset.NewLoader(""), st, newMemRegistry()).Load(ctx))

	cfg.Models.TrainOnStart = true
	reg := newMemRegistry()
	require.NoError(t, NewManager(cfg, dataset.NewLoader(""), st, reg).Load(ctx))
	assert.Equal(t, "trained", reg.info[KindRecommendation].Source)
}

func TestManager_Profile(t *testing.T) {
	m := NewManager(testConfig(t), dataset.NewLoader(""), nil, newMemRegistry())
	profile, err := m.Profile(context.Background(), KindYield)
	require.NoError(t, err)
	assert.Equal(t, "csv", profile.Source)
	assert.Equal(t, 49, profile.Rows)

	_, err = m.Profile(context.Background(), "weather")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
