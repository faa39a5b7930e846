package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropwise-go/internal/models"
)

// cropScorer sums fixed per-crop values so rankings are predictable.
type cropScorer struct {
	yield  map[string]float64
	carbon map[string]float64
	rows   []RotationFeatures
	err    error
}

func (s *cropScorer) PredictBatch(rows []RotationFeatures) ([]float64, []float64, error) {
	s.rows = rows
	if s.err != nil {
		return nil, nil, s.err
	}
	yields := make([]float64, len(rows))
	carbons := make([]float64, len(rows))
	for i, r := range rows {
		for _, c := range []string{r.Crop1, r.Crop2, r.Crop3} {
			if c == noCrop {
				continue
			}
			y, ok := s.yield[c]
			if !ok {
				y = 1
			}
			yields[i] += y
			carbons[i] += s.carbon[c]
		}
	}
	return yields, carbons, nil
}

func newScorer() *cropScorer {
	return &cropScorer{
		yield:  map[string]float64{"Wheat": 3, "Mustard": 1, "Peas": 2},
		carbon: map[string]float64{"Wheat": 0, "Mustard": 10, "Peas": 5},
	}
}

func TestCatalog_SeasonSequence(t *testing.T) {
	c := DefaultCatalog()

	seq, err := c.SeasonSequence("rabi", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rabi", "Zaid", "Kharif"}, seq)

	seq, err = c.SeasonSequence("Zaid", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zaid", "Kharif"}, seq)

	_, err = c.SeasonSequence("Spring", 2)
	assert.ErrorIs(t, err, ErrUnknownSeason)
	_, err = c.SeasonSequence("Kharif", 0)
	assert.ErrorIs(t, err, ErrInvalidSeasonCount)
	_, err = c.SeasonSequence("Kharif", 4)
	assert.ErrorIs(t, err, ErrInvalidSeasonCount)
}

func TestCatalog_ValidCrops(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"Maize", "Rice", "Bottle Gourd"}, c.ValidCrops("Kharif", "Alluvial"))
	assert.Equal(t, []string{"Wheat", "Mustard", "Peas"}, c.ValidCrops("Rabi", "Alluvial"))
	assert.Empty(t, c.ValidCrops("Kharif", "Arid Sandy"))
	assert.Empty(t, c.ValidCrops("Kharif", "Moon Dust"))

	soil, ok := c.Soil("arid sandy")
	assert.True(t, ok)
	assert.Equal(t, "Arid Sandy", soil)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := strings.Join([]string{
		"soil_crops:",
		"  Clay: [Rice, Wheat]",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kharif", "Rabi", "Zaid"}, c.Seasons)
	assert.Equal(t, []string{"Rice"}, c.ValidCrops("Kharif", "Clay"))
	_, ok := c.Soil("Alluvial")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("seasons: [Wet, Dry]\n"), 0o644))
	_, err = LoadCatalog(path)
	assert.Error(t, err)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTopSequences_PreferredCrops(t *testing.T) {
	p := NewPlanner(nil)
	scorer := newScorer()

	res, err := p.TopSequences(scorer, models.PlanRequest{PreferredCrops: DefaultPreferredCrops})
	require.NoError(t, err)

	assert.Equal(t, "Punjab", res.Region)
	assert.Equal(t, "Alluvial", res.SoilType)
	assert.Equal(t, []string{"Kharif", "Rabi", "Zaid"}, res.Seasons)
	assert.Equal(t, []string{"Cucumber", "Watermelon"}, res.IgnoredCrops)
	assert.Equal(t, []string{"Maize", "Bottle Gourd"}, res.ValidCrops["Kharif"])
	assert.Equal(t, []string{"Bottle Gourd"}, res.ValidCrops["Zaid"])
	assert.InDelta(t, 0.5/1.4, res.Weights.Yield, 1e-9)
	assert.InDelta(t, 0.9/1.4, res.Weights.Carbon, 1e-9)

	// Bottle Gourd cannot open and close the same rotation
	assert.Equal(t, 3, res.Candidates)
	require.Len(t, res.Sequences, 3)

	assert.Equal(t, []string{"Maize", "Mustard", "Bottle Gourd"}, res.Sequences[0].Crops)
	assert.Equal(t, 0.64, res.Sequences[0].Score)
	assert.Equal(t, []string{"Maize", "Peas", "Bottle Gourd"}, res.Sequences[1].Crops)
	assert.Equal(t, 0.5, res.Sequences[1].Score)
	assert.Equal(t, []string{"Maize", "Wheat", "Bottle Gourd"}, res.Sequences[2].Crops)
	assert.Equal(t, 0.36, res.Sequences[2].Score)
	assert.Equal(t, 5.0, res.Sequences[2].Yield)
	for i, s := range res.Sequences {
		assert.Equal(t, i+1, s.Rank)
	}

	for _, row := range scorer.rows {
		assert.Equal(t, "Kharif", row.StartSeason)
		assert.Equal(t, 3.0, row.NumberOfSeasons)
	}
}

func TestTopSequences_NoRepeatsAndTopN(t *testing.T) {
	p := NewPlanner(nil)
	res, err := p.TopSequences(newScorer(), models.PlanRequest{TopN: 2})
	require.NoError(t, err)

	// Kharif {Maize, Rice, Bottle Gourd} x Rabi {Wheat, Mustard, Peas} x Zaid {Bottle Gourd}
	assert.Equal(t, 6, res.Candidates)
	assert.Len(t, res.Sequences, 2)
	assert.Empty(t, res.IgnoredCrops)
	for _, s := range res.Sequences {
		seen := map[string]bool{}
		for _, c := range s.Crops {
			assert.False(t, seen[c], "repeated crop %s", c)
			seen[c] = true
		}
	}
}

func TestTopSequences_TwoSeasonsPadCrop3(t *testing.T) {
	scorer := newScorer()
	res, err := NewPlanner(nil).TopSequences(scorer, models.PlanRequest{StartSeason: "rabi", NumberOfSeasons: 2, TopN: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rabi", "Zaid"}, res.Seasons)
	assert.Len(t, res.Sequences, 3)
	for _, row := range scorer.rows {
		assert.Equal(t, noCrop, row.Crop3)
		assert.Equal(t, "Rabi", row.StartSeason)
	}
}

func TestTopSequences_StableOnTies(t *testing.T) {
	scorer := &cropScorer{}
	res, err := NewPlanner(nil).TopSequences(scorer, models.PlanRequest{NumberOfSeasons: 1, TopN: 10})
	require.NoError(t, err)
	require.Len(t, res.Sequences, 3)
	assert.Equal(t, []string{"Maize"}, res.Sequences[0].Crops)
	assert.Equal(t, []string{"Rice"}, res.Sequences[1].Crops)
	assert.Equal(t, []string{"Bottle Gourd"}, res.Sequences[2].Crops)
	for _, s := range res.Sequences {
		assert.Equal(t, 0.0, s.Score)
	}
}

func TestTopSequences_Errors(t *testing.T) {
	p := NewPlanner(nil)

	t.Run("no valid crops", func(t *testing.T) {
		_, err := p.TopSequences(newScorer(), models.PlanRequest{SoilType: "Arid Sandy", NumberOfSeasons: 1})
		require.ErrorIs(t, err, ErrNoValidCrops)
		var nv *NoValidCropsError
		require.True(t, errors.As(err, &nv))
		assert.Equal(t, "No valid crops for Kharif in Arid Sandy soil.", err.Error())
	})

	t.Run("unknown soil", func(t *testing.T) {
		_, err := p.TopSequences(newScorer(), models.PlanRequest{SoilType: "Moon Dust"})
		assert.ErrorIs(t, err, ErrNoValidCrops)
	})

	t.Run("preferences exclude a season", func(t *testing.T) {
		res, err := p.TopSequences(newScorer(), models.PlanRequest{PreferredCrops: []string{"Wheat", "Okra"}})
		assert.ErrorIs(t, err, ErrNoValidCrops)
		assert.Empty(t, res.Sequences)
	})

	t.Run("zero weights", func(t *testing.T) {
		_, err := p.TopSequences(newScorer(), models.PlanRequest{YieldWeight: models.Ptr(0.0), CarbonWeight: models.Ptr(0.0)})
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("bad season", func(t *testing.T) {
		_, err := p.TopSequences(newScorer(), models.PlanRequest{StartSeason: "Monsoon"})
		assert.ErrorIs(t, err, ErrUnknownSeason)
		_, err = p.TopSequences(newScorer(), models.PlanRequest{NumberOfSeasons: 5})
		assert.ErrorIs(t, err, ErrInvalidSeasonCount)
	})

	t.Run("only repeats", func(t *testing.T) {
		c := &Catalog{
			Seasons:     []string{"Wet", "Dry"},
			SeasonCrops: map[string][]string{"Wet": {"Millet"}, "Dry": {"Millet"}},
			SoilCrops:   map[string][]string{"Sandy": {"Millet"}},
		}
		_, err := NewPlanner(c).TopSequences(newScorer(), models.PlanRequest{SoilType: "Sandy", StartSeason: "Wet", NumberOfSeasons: 2})
		assert.ErrorIs(t, err, ErrNoSequences)
	})

	t.Run("scorer failure", func(t *testing.T) {
		_, err := p.TopSequences(&cropScorer{err: ErrNotTrained}, models.PlanRequest{})
		assert.ErrorIs(t, err, ErrNotTrained)
	})
}
