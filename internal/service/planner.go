package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"cropwise-go/internal/metrics"
	"cropwise-go/internal/ml"
	"cropwise-go/internal/models"
)

const maxSeasons = 3

// Planner defaults, used for zero-valued request fields.
const (
	DefaultRegion       = "Punjab"
	DefaultSoilType     = "Alluvial"
	DefaultStartSeason  = "Kharif"
	DefaultSeasons      = 3
	DefaultYieldWeight  = 0.5
	DefaultCarbonWeight = 0.9
	DefaultTopN         = 3
)

// DefaultPreferredCrops is the preference list the CLI plans with when none
// is given.
var DefaultPreferredCrops = []string{"Maize", "Mustard", "Wheat", "Peas", "Bottle Gourd", "Cucumber", "Watermelon"}

// RotationScorer predicts yield and carbon for a batch of rotations.
type RotationScorer interface {
	PredictBatch(rows []RotationFeatures) (yields, carbons []float64, err error)
}

// Planner searches every crop sequence that fits a season cycle and a soil
// and ranks them by a weighted blend of predicted yield and carbon.
type Planner struct {
	catalog *Catalog
}

func NewPlanner(c *Catalog) *Planner {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Planner{catalog: c}
}

func (p *Planner) Catalog() *Catalog { return p.catalog }

// TopSequences enumerates the candidate sequences, scores them with scorer
// and returns the best TopN.
func (p *Planner) TopSequences(scorer RotationScorer, req models.PlanRequest) (models.PlanResult, error) {
	req = withPlanDefaults(req)

	wy, wc := *req.YieldWeight, *req.CarbonWeight
	total := wy + wc
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return models.PlanResult{}, fmt.Errorf("%w: yield %g + carbon %g must be positive", ErrInvalidWeights, wy, wc)
	}
	weights := models.Weights{Yield: wy / total, Carbon: wc / total}

	seasons, err := p.catalog.SeasonSequence(req.StartSeason, req.NumberOfSeasons)
	if err != nil {
		return models.PlanResult{}, err
	}
	soil, ok := p.catalog.Soil(req.SoilType)
	if !ok {
		soil = strings.TrimSpace(req.SoilType)
	}

	result := models.PlanResult{
		Region:     req.Region,
		SoilType:   soil,
		Seasons:    seasons,
		Weights:    weights,
		ValidCrops: make(map[string][]string, len(seasons)),
		Sequences:  []models.ScoredSequence{},
	}

	perSeason := make([][]string, len(seasons))
	for i, season := range seasons {
		perSeason[i] = p.catalog.ValidCrops(season, soil)
	}

	if len(req.PreferredCrops) > 0 {
		var keep map[string]struct{}
		keep, result.IgnoredCrops = splitPreferred(req.PreferredCrops, perSeason)
		for i, crops := range perSeason {
			filtered := crops[:0:0]
			for _, c := range crops {
				if _, ok := keep[strings.ToLower(c)]; ok {
					filtered = append(filtered, c)
				}
			}
			perSeason[i] = filtered
		}
	}

	for i, season := range seasons {
		if len(perSeason[i]) == 0 {
			return models.PlanResult{}, &NoValidCropsError{Season: season, Soil: soil}
		}
		result.ValidCrops[season] = perSeason[i]
	}

	sequences := distinctProduct(perSeason)
	metrics.PlannerCandidates.Observe(float64(len(sequences)))
	if len(sequences) == 0 {
		return models.PlanResult{}, ErrNoSequences
	}
	result.Candidates = len(sequences)

	rows := make([]RotationFeatures, len(sequences))
	for i, seq := range sequences {
		crops := [maxSeasons]string{noCrop, noCrop, noCrop}
		copy(crops[:], seq)
		rows[i] = RotationFeatures{
			Region:          req.Region,
			SoilType:        soil,
			StartSeason:     seasons[0],
			Crop1:           crops[0],
			Crop2:           crops[1],
			Crop3:           crops[2],
			NumberOfSeasons: float64(req.NumberOfSeasons),
		}
	}

	yields, carbons, err := scorer.PredictBatch(rows)
	if err != nil {
		return models.PlanResult{}, err
	}

	yn := ml.MinMaxNormalize(yields)
	cn := ml.MinMaxNormalize(carbons)
	scored := make([]models.ScoredSequence, len(sequences))
	for i, seq := range sequences {
		scored[i] = models.ScoredSequence{
			Crops:  seq,
			Yield:  round2(yields[i]),
			Carbon: round2(carbons[i]),
			Score:  round2(yn[i]*weights.Yield + cn[i]*weights.Carbon),
		}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })

	if len(scored) > req.TopN {
		scored = scored[:req.TopN]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	result.Sequences = scored
	return result, nil
}

func withPlanDefaults(req models.PlanRequest) models.PlanRequest {
	if strings.TrimSpace(req.Region) == "" {
		req.Region = DefaultRegion
	}
	if strings.TrimSpace(req.SoilType) == "" {
		req.SoilType = DefaultSoilType
	}
	if strings.TrimSpace(req.StartSeason) == "" {
		req.StartSeason = DefaultStartSeason
	}
	if req.NumberOfSeasons == 0 {
		req.NumberOfSeasons = DefaultSeasons
	}
	if req.YieldWeight == nil {
		req.YieldWeight = models.Ptr(DefaultYieldWeight)
	}
	if req.CarbonWeight == nil {
		req.CarbonWeight = models.Ptr(DefaultCarbonWeight)
	}
	if req.TopN <= 0 {
		req.TopN = DefaultTopN
	}
	return req
}

// splitPreferred separates preferred crops that grow in at least one of the
// seasons from those that grow in none. Matching ignores case.
func splitPreferred(preferred []string, perSeason [][]string) (keep map[string]struct{}, ignored []string) {
	valid := make(map[string]struct{})
	for _, crops := range perSeason {
		for _, c := range crops {
			valid[strings.ToLower(c)] = struct{}{}
		}
	}
	keep = make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, c := range preferred {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := valid[key]; ok {
			keep[key] = struct{}{}
		} else {
			ignored = append(ignored, strings.TrimSpace(c))
		}
	}
	return keep, ignored
}

// distinctProduct is the cartesian product of the per-season lists without
// sequences that repeat a crop, in lexicographic order of the inputs.
func distinctProduct(lists [][]string) [][]string {
	var out [][]string
	seq := make([]string, 0, len(lists))
	used := make(map[string]bool)
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(lists) {
			out = append(out, append([]string(nil), seq...))
			return
		}
		for _, c := range lists[depth] {
			if used[c] {
				continue
			}
			used[c] = true
			seq = append(seq, c)
			walk(depth + 1)
			seq = seq[:len(seq)-1]
			used[c] = false
		}
	}
	walk(0)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
