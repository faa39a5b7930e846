package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/history"
	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
	"cropwise-go/internal/state"
)

var (
	trainOnce   sync.Once
	recommender *service.CropRecommender
	rotation    *service.RotationPredictor
	yieldModel  *service.YieldPredictor
	trainErr    error
)

func trainedPredictors(t *testing.T) {
	t.Helper()
	trainOnce.Do(func() { trainErr = train() })
	require.NoError(t, trainErr)
}

func train() error {
	opts := service.TrainOptions{NEstimators: 10, Seed: 42, TestSize: 0.2, Workers: 2}
	frames := map[string]*dataset.Frame{}
	for _, name := range []string{"recommendation", "rotation", "yield"} {
		f, err := dataset.LoadCSV("../service/testdata/" + name + ".csv")
		if err != nil {
			return err
		}
		frames[name] = f
	}
	var err error
	if recommender, err = service.TrainRecommender(frames["recommendation"], opts); err != nil {
		return err
	}
	if rotation, err = service.TrainRotation(frames["rotation"], opts); err != nil {
		return err
	}
	yieldModel, err = service.TrainYield(frames["yield"], opts)
	return err
}

type fakeTrainer struct {
	retrained []string
}

func (f *fakeTrainer) Retrain(_ context.Context, kind string) (models.ModelInfo, error) {
	f.retrained = append(f.retrained, kind)
	return models.ModelInfo{Kind: kind, Loaded: true, Source: "trained"}, nil
}

func (f *fakeTrainer) Profile(_ context.Context, kind string) (models.DatasetProfile, error) {
	return models.DatasetProfile{Name: kind + ".csv", Source: "csv", Rows: 3}, nil
}

type testServer struct {
	handler http.Handler
	state   *state.AppState
	trainer *fakeTrainer
	history *history.Store
}

func newTestServer(t *testing.T, loaded bool, mutate ...func(*config.ServerConfig)) *testServer {
	t.Helper()
	st := state.New()
	if loaded {
		trainedPredictors(t)
		st.SetRecommender(recommender)
		st.SetRotation(rotation)
		st.SetYield(yieldModel)
	}
	hist, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	cfg := config.Default().Server
	cfg.RateLimit = 0
	for _, m := range mutate {
		m(&cfg)
	}
	trainer := &fakeTrainer{}
	h := NewHandler(st, trainer, service.NewPlanner(nil), hist, "test")
	return &testServer{handler: NewRouter(cfg, h), state: st, trainer: trainer, history: hist}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, false)
	got := decode[models.StatusResponse](t, s.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, "degraded", got.Status)
	assert.Len(t, got.Models, 3)

	s = newTestServer(t, true)
	got = decode[models.StatusResponse](t, s.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "test", got.Version)
	for _, m := range got.Models {
		assert.True(t, m.Loaded, m.Kind)
	}
}

func TestRecommend(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/recommend", `{"soil":"Black","temperature":33,"humidity":40,"rainfall":60,"ph":7.6}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.RecommendationResponse](t, rec)
	require.NotEmpty(t, got.Crops)
	assert.LessOrEqual(t, len(got.Crops), 3)
	for _, c := range got.Crops {
		assert.Contains(t, []string{"Rice", "Wheat", "Cotton"}, c)
	}

	t.Run("empty body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recommend", "")
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("validation", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recommend", `{"ph":20}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "validation_failed", body["code"])
		details := body["details"].([]any)
		require.Len(t, details, 1)
		assert.Equal(t, "ph", details[0].(map[string]any)["field"])
	})

	t.Run("bad json", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recommend", `{"ph":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decode[models.ErrorResponse](t, rec).Code)
	})

	t.Run("extra form fields", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recommend", `{"soil":"Loamy","location":"Ludhiana","temperature":16}`)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("body too large", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recommend", strings.Repeat(" ", maxBodyBytes)+`{"ph":6.5}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "payload_too_large", decode[models.ErrorResponse](t, rec).Code)
	})
}

func TestRotationCatalog(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/rotation/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[service.Catalog](t, rec)
	assert.Equal(t, []string{"Kharif", "Rabi", "Zaid"}, c.Seasons)
	assert.Contains(t, c.SoilCrops["Black"], "Cotton")
	assert.Contains(t, c.SeasonCrops["Zaid"], "Watermelon")
}

func TestRotationAndYield(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/rotation", `{"region":"Punjab","soil_type":"Alluvial","crop1":"Maize","crop2":"Wheat","number_of_seasons":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]float64](t, rec)
	assert.Contains(t, body, "yield_t_per_ha")
	assert.Contains(t, body, "carbon_kg_co2")

	rec = s.do(t, http.MethodPost, "/api/yield", `{"crop":"Rice","state":"Punjab","area_hectares":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	y := decode[models.YieldResponse](t, rec)
	assert.GreaterOrEqual(t, y.YieldTPerHa, 0.0)
	require.NotNil(t, y.ProductionT)
	assert.InDelta(t, 2*y.YieldTPerHa, *y.ProductionT, 1e-9)
}

func TestPlanRotation(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/rotation/plan", `{"preferred_crops":["Maize","Mustard","Wheat","Peas","Bottle Gourd","Cucumber"],"top_n":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[models.PlanResult](t, rec)
	assert.Equal(t, []string{"Kharif", "Rabi", "Zaid"}, res.Seasons)
	assert.Equal(t, []string{"Cucumber"}, res.IgnoredCrops)
	require.Len(t, res.Sequences, 2)
	assert.GreaterOrEqual(t, res.Sequences[0].Score, res.Sequences[1].Score)

	rec = s.do(t, http.MethodPost, "/api/rotation/plan", `{"soil_type":"Arid Sandy","number_of_seasons":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "No valid crops for Kharif in Arid Sandy soil.", decode[models.ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/rotation/plan", `{"number_of_seasons":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/rotation/plan", `{"yield_weight":0,"carbon_weight":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictionsUnavailable(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/api/recommend", "/api/rotation", "/api/rotation/plan", "/api/yield"} {
		rec := s.do(t, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "model_unavailable", decode[models.ErrorResponse](t, rec).Code, path)
	}
}

func TestRetrainAndDatasets(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/models/yield/retrain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"yield"}, s.trainer.retrained)

	rec = s.do(t, http.MethodPost, "/api/models/weather/retrain", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/datasets/rotation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rotation.csv", decode[models.DatasetProfile](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/datasets/passwords", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, true)
	s.do(t, http.MethodPost, "/api/yield", `{"crop":"Wheat"}`)
	s.do(t, http.MethodPost, "/api/recommend", `{}`)
	s.do(t, http.MethodPost, "/api/recommend", `{"ph":99}`)

	rec := s.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]models.HistoryEntry](t, rec)
	require.Len(t, entries, 2)

	rec = s.do(t, http.MethodGet, "/api/history?kind=yield&limit=5", "")
	entries = decode[[]models.HistoryEntry](t, rec)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"crop":"Wheat"}`, string(entries[0].Request))

	rec = s.do(t, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	s.do(t, http.MethodGet, "/health", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cropwise_api_requests_total{method="GET",route="/health",status="200"}`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, false, func(c *config.ServerConfig) {
		c.RateLimit = 2
		c.RateLimitWindow = time.Minute
	})
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)
	}
	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[models.ErrorResponse](t, rec).Code)

	// metrics stay reachable
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/recommend", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
