package state

import (
	"sync"

	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
)

// AppState holds the predictors currently serving requests. Handlers read
// the current predictor per request; retraining swaps it under the lock.
type AppState struct {
	mu sync.RWMutex

	recommender *service.CropRecommender
	rotation    *service.RotationPredictor
	yield       *service.YieldPredictor

	info map[string]models.ModelInfo
}

func New() *AppState {
	return &AppState{info: make(map[string]models.ModelInfo)}
}

func (s *AppState) SetRecommender(r *service.CropRecommender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommender = r
}

func (s *AppState) Recommender() *service.CropRecommender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recommender
}

func (s *AppState) SetRotation(p *service.RotationPredictor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = p
}

func (s *AppState) Rotation() *service.RotationPredictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

func (s *AppState) SetYield(p *service.YieldPredictor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yield = p
}

func (s *AppState) Yield() *service.YieldPredictor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yield
}

// SetInfo records the status of one predictor. A kind with no predictor
// installed is reported as not loaded whatever info says.
func (s *AppState) SetInfo(info models.ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		s.info = make(map[string]models.ModelInfo)
	}
	if prev, ok := s.info[info.Kind]; ok && info.Error != "" && prev.Loaded {
		// keep describing the predictor that still serves
		prev.Error = info.Error
		s.info[info.Kind] = prev
		return
	}
	s.info[info.Kind] = info
}

// Models returns the status of every predictor in start-up order.
func (s *AppState) Models() []models.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ModelInfo, 0, len(service.Kinds))
	for _, kind := range service.Kinds {
		info, ok := s.info[kind]
		if !ok {
			info = models.ModelInfo{Kind: kind}
		}
		info.Loaded = s.loaded(kind)
		out = append(out, info)
	}
	return out
}

// Ready reports whether every predictor is loaded.
func (s *AppState) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, kind := range service.Kinds {
		if !s.loaded(kind) {
			return false
		}
	}
	return true
}

func (s *AppState) loaded(kind string) bool {
	switch kind {
	case service.KindRecommendation:
		return s.recommender != nil
	case service.KindRotation:
		return s.rotation != nil
	case service.KindYield:
		return s.yield != nil
	}
	return false
}
