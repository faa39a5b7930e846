package service

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds agronomic compatibility: the season cycle, the crops grown
// in each season and the crops each soil supports.
type Catalog struct {
	Seasons     []string            `yaml:"seasons" json:"seasons"`
	SeasonCrops map[string][]string `yaml:"season_crops" json:"season_crops"`
	SoilCrops   map[string][]string `yaml:"soil_crops" json:"soil_crops"`
}

// DefaultCatalog is the built-in compatibility table.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Seasons: []string{"Kharif", "Rabi", "Zaid"},
		SeasonCrops: map[string][]string{
			"Kharif": {"Maize", "Rice", "Soybean", "Groundnut", "Bottle Gourd", "Cotton"},
			"Rabi":   {"Wheat", "Mustard", "Barley", "Peas", "Chickpea"},
			"Zaid":   {"Watermelon", "Cucumber", "Bottle Gourd", "Okra"},
		},
		SoilCrops: map[string][]string{
			"Alluvial":   {"Rice", "Wheat", "Maize", "Mustard", "Peas", "Bottle Gourd"},
			"Black":      {"Cotton", "Soybean", "Groundnut", "Maize"},
			"Red":        {"Groundnut", "Soybean", "Maize", "Peas", "Wheat"},
			"Laterite":   {"Rice", "Groundnut", "Chickpea", "Cotton"},
			"Arid Sandy": {"Barley", "Mustard", "Wheat", "Cucumber", "Watermelon"},
		},
	}
}

// LoadCatalog reads a YAML catalog. Sections missing from the file keep the
// built-in values. An empty path returns the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(file.Seasons) > 0 {
		c.Seasons = file.Seasons
	}
	if len(file.SeasonCrops) > 0 {
		c.SeasonCrops = file.SeasonCrops
	}
	if len(file.SoilCrops) > 0 {
		c.SoilCrops = file.SoilCrops
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Validate checks that every season in the cycle has a crop list.
func (c *Catalog) Validate() error {
	if len(c.Seasons) == 0 {
		return errors.New("no seasons defined")
	}
	for _, s := range c.Seasons {
		if len(c.SeasonCrops[s]) == 0 {
			return fmt.Errorf("season %q has no crops", s)
		}
	}
	if len(c.SoilCrops) == 0 {
		return errors.New("no soils defined")
	}
	return nil
}

// Season returns the catalog spelling of a season, matched ignoring case.
func (c *Catalog) Season(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.Seasons {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// Soil returns the catalog spelling of a soil type, matched ignoring case.
func (c *Catalog) Soil(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := c.SoilCrops[name]; ok {
		return name, true
	}
	for s := range c.SoilCrops {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// SeasonSequence returns n seasons following the cycle from start.
func (c *Catalog) SeasonSequence(start string, n int) ([]string, error) {
	if n < 1 || n > maxSeasons {
		return nil, fmt.Errorf("%w: %d, expected 1 to %d", ErrInvalidSeasonCount, n, maxSeasons)
	}
	first := -1
	for i, s := range c.Seasons {
		if strings.EqualFold(s, strings.TrimSpace(start)) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeason, start)
	}
	seq := make([]string, n)
	for i := range seq {
		seq[i] = c.Seasons[(first+i)%len(c.Seasons)]
	}
	return seq, nil
}

// ValidCrops returns the crops that fit the season and the soil, in season
// list order.
func (c *Catalog) ValidCrops(season, soil string) []string {
	soilSet := make(map[string]struct{})
	for _, crop := range c.SoilCrops[soil] {
		soilSet[strings.ToLower(crop)] = struct{}{}
	}
	var out []string
	for _, crop := range c.SeasonCrops[season] {
		if _, ok := soilSet[strings.ToLower(crop)]; ok {
			out = append(out, crop)
		}
	}
	return out
}
