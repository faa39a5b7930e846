package cli

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
	"cropwise-go/internal/validation"
)

var (
	planRegion       string
	planSoil         string
	planStartSeason  string
	planSeasons      int
	planCrops        []string
	planYieldWeight  float64
	planCarbonWeight float64
	planTop          int
	planJSON         bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Rank crop rotations by predicted yield and carbon",
	Long: `Enumerates every crop sequence that fits the season cycle, the soil and the
preferred crops, scores each with the rotation model and prints the best.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planRegion, "region", service.DefaultRegion, "region")
	f.StringVar(&planSoil, "soil", service.DefaultSoilType, "soil type")
	f.StringVar(&planStartSeason, "start-season", service.DefaultStartSeason, "first season")
	f.IntVar(&planSeasons, "seasons", service.DefaultSeasons, "number of seasons (1-3)")
	f.StringSliceVar(&planCrops, "crops", service.DefaultPreferredCrops, "preferred crops, comma separated; empty for no filter")
	f.Float64Var(&planYieldWeight, "yield-weight", service.DefaultYieldWeight, "weight of predicted yield")
	f.Float64Var(&planCarbonWeight, "carbon-weight", service.DefaultCarbonWeight, "weight of predicted carbon sequestration")
	f.IntVarP(&planTop, "top", "n", service.DefaultTopN, "number of sequences to print")
	f.BoolVar(&planJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	req := models.PlanRequest{
		Region:          planRegion,
		SoilType:        planSoil,
		StartSeason:     planStartSeason,
		NumberOfSeasons: planSeasons,
		PreferredCrops:  nonEmpty(planCrops),
		YieldWeight:     models.Ptr(planYieldWeight),
		CarbonWeight:    models.Ptr(planCarbonWeight),
		TopN:            planTop,
	}
	if err := validation.ValidateStruct(&req); err != nil {
		return err
	}

	catalog, err := service.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	e, err := newEnv(cfg.Models.Persist)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.manager.LoadKind(commandContext(cmd), service.KindRotation); err != nil {
		return fmt.Errorf("rotation model: %w", err)
	}

	res, err := service.NewPlanner(catalog).TopSequences(e.state.Rotation(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if planJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(res.IgnoredCrops) > 0 {
		fmt.Fprintf(out, "Ignored (not valid for %s soil in these seasons): %s\n", res.SoilType, strings.Join(res.IgnoredCrops, ", "))
	}
	fmt.Fprintf(out, "Seasons: %s\n", strings.Join(res.Seasons, " -> "))
	fmt.Fprintf(out, "Valid crop sequences: %d\n\n", res.Candidates)
	for _, s := range res.Sequences {
		fmt.Fprintf(out, "Rank %d: %s - Yield: %.2f t/ha, Carbon: %.2f kg CO2/ha, Score: %.2f\n",
			s.Rank, strings.Join(s.Crops, ", "), s.Yield, s.Carbon, s.Score)
	}
	return nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
