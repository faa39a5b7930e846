package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	abs := func(name string) string {
		p, err := filepath.Abs(filepath.Join("..", "service", "testdata", name))
		require.NoError(t, err)
		return p
	}
	dir := t.TempDir()
	yaml := fmt.Sprintf(`datasets:
  recommendation:
    path: %q
  rotation:
    path: %q
  yield:
    path: %q
models:
  dir: %q
  n_estimators: 10
  workers: 2
history:
  enabled: false
`, abs("recommendation.csv"), abs("rotation.csv"), abs("yield.csv"), filepath.Join(dir, "models"))
	path := filepath.Join(dir, "cropwise.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// flag values outlive a single Execute
	planJSON, profileJSON, trainNoSave = false, false, false
	planRegion, planSoil, planStartSeason = service.DefaultRegion, service.DefaultSoilType, service.DefaultStartSeason
	planSeasons, planTop = service.DefaultSeasons, service.DefaultTopN
	planYieldWeight, planCarbonWeight = service.DefaultYieldWeight, service.DefaultCarbonWeight
	planCrops = service.DefaultPreferredCrops

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestTrainCmd(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "train", "yield", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "yield")
	assert.Contains(t, out, "r2=")

	out, err = run(t, "train", "--config", cfgPath)
	require.NoError(t, err)
	for _, kind := range service.Kinds {
		assert.Contains(t, out, kind)
	}
	assert.Contains(t, out, "accuracy=")

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(cfgPath), "models"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	_, err = run(t, "train", "weather", "--config", cfgPath)
	assert.Error(t, err)
}

func TestPlanCmd(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "plan", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored (not valid for Alluvial soil in these seasons): Cucumber, Watermelon")
	assert.Contains(t, out, "Valid crop sequences: 3")
	assert.Contains(t, out, "Rank 1: Maize, ")
	assert.Contains(t, out, "Rank 3: ")

	out, err = run(t, "plan", "--config", cfgPath, "--json", "--crops", "", "--top", "4")
	require.NoError(t, err)
	var res models.PlanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 6, res.Candidates)
	assert.Len(t, res.Sequences, 4)
	assert.Empty(t, res.IgnoredCrops)

	_, err = run(t, "plan", "--config", cfgPath, "--soil", "Arid Sandy", "--seasons", "1")
	require.Error(t, err)
	assert.Equal(t, "No valid crops for Kharif in Arid Sandy soil.", err.Error())

	_, err = run(t, "plan", "--config", cfgPath, "--seasons", "4")
	assert.Error(t, err)
}

func TestProfileCmd(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "profile", "rotation", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "60 rows, 9 columns")
	assert.Contains(t, out, "Number_of_Seasons")

	out, err = run(t, "profile", "yield", "--json", "--config", cfgPath)
	require.NoError(t, err)
	var p models.DatasetProfile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "csv", p.Source)
	assert.Equal(t, 49, p.Rows)

	_, err = run(t, "profile", "--config", cfgPath)
	assert.Error(t, err)
}
