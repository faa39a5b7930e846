package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cropwise-go/internal/history"
	"cropwise-go/internal/logging"
	"cropwise-go/internal/metrics"
	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
	"cropwise-go/internal/state"
)

// Trainer retrains predictors and loads their datasets.
type Trainer interface {
	Retrain(ctx context.Context, kind string) (models.ModelInfo, error)
	Profile(ctx context.Context, kind string) (models.DatasetProfile, error)
}

type Handler struct {
	State   *state.AppState
	Trainer Trainer
	Planner *service.Planner
	History *history.Store // nil when history is disabled
	Version string
}

func NewHandler(st *state.AppState, trainer Trainer, planner *service.Planner, hist *history.Store, version string) *Handler {
	return &Handler{
		State:   st,
		Trainer: trainer,
		Planner: planner,
		History: hist,
		Version: version,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)
	r.Get("/api/status", h.GetStatus)

	// Predictions
	r.Post("/api/recommend", h.Recommend)
	r.Post("/api/rotation", h.PredictRotation)
	r.Post("/api/rotation/plan", h.PlanRotation)
	r.Get("/api/rotation/catalog", h.GetCatalog)
	r.Post("/api/yield", h.PredictYield)

	// Models and data
	r.Post("/api/models/{kind}/retrain", h.Retrain)
	r.Get("/api/datasets/{name}", h.GetDataset)
	r.Get("/api/history", h.GetHistory)
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Crop-Wise API is running"))
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// GetStatus reports every predictor; "degraded" while any is unloaded.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.State.Ready() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{
		Status:  status,
		Version: h.Version,
		Models:  h.State.Models(),
	})
}

// ============================================================================
// Predictions
// ============================================================================

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	resp, err := h.State.Recommender().Recommend(req)
	metrics.ObservePrediction(service.KindRecommendation, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r.Context(), service.KindRecommendation, req, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PredictRotation(w http.ResponseWriter, r *http.Request) {
	var req models.RotationRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	resp, err := h.State.Rotation().Predict(req)
	metrics.ObservePrediction(service.KindRotation, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r.Context(), service.KindRotation, req, resp)
	writeJSON(w, http.StatusOK, resp)
}

// PlanRotation ranks the crop sequences for a soil and season cycle.
func (h *Handler) PlanRotation(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	predictor := h.State.Rotation()
	if predictor == nil {
		writeError(w, service.ErrNotTrained)
		return
	}

	start := time.Now()
	res, err := h.Planner.TopSequences(predictor, req)
	metrics.ObservePrediction("rotation_plan", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r.Context(), "rotation_plan", req, res)
	writeJSON(w, http.StatusOK, res)
}

// GetCatalog returns the season and soil crop tables the planner searches.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Planner.Catalog())
}

func (h *Handler) PredictYield(w http.ResponseWriter, r *http.Request) {
	var req models.YieldRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	resp, err := h.State.Yield().Predict(req)
	metrics.ObservePrediction(service.KindYield, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.record(r.Context(), service.KindYield, req, resp)
	writeJSON(w, http.StatusOK, resp)
}

// record stores a served prediction. History failures never fail the
// request.
func (h *Handler) record(ctx context.Context, kind string, req, resp any) {
	if h.History == nil {
		return
	}
	if _, err := h.History.Record(ctx, kind, req, resp); err != nil {
		logging.Warn().Err(err).Str("kind", kind).Msg("failed to record prediction")
	}
}

// ============================================================================
// Models and data
// ============================================================================

func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !service.ValidKind(kind) {
		writeError(w, fmt.Errorf("%w: %q", service.ErrUnknownKind, kind))
		return
	}
	info, err := h.Trainer.Retrain(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetDataset profiles the dataset a model kind trains on.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !service.ValidKind(name) {
		writeError(w, fmt.Errorf("%w: dataset %q", errNotFound, name))
		return
	}
	profile, err := h.Trainer.Profile(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetHistory lists recorded predictions, newest first. Query parameters:
// kind filters by prediction kind, limit caps the count.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, fmt.Errorf("%w: history is disabled", errNotFound))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = n
	}
	entries, err := h.History.List(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
