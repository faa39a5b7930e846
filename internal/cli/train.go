package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cropwise-go/internal/service"
)

var trainNoSave bool

var trainCmd = &cobra.Command{
	Use:       "train [recommendation|rotation|yield|all]",
	Short:     "Train models and print holdout metrics",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: append(append([]string{}, service.Kinds...), "all"),
	RunE:      runTrain,
}

func init() {
	trainCmd.Flags().BoolVar(&trainNoSave, "no-save", false, "do not write artifacts")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	kinds := service.Kinds
	if len(args) == 1 && args[0] != "all" {
		kinds = []string{args[0]}
	}

	e, err := newEnv(cfg.Models.Persist && !trainNoSave)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	for _, kind := range kinds {
		info, err := e.manager.Retrain(commandContext(cmd), kind)
		if err != nil {
			return fmt.Errorf("training %s: %w", kind, err)
		}
		fmt.Fprintf(out, "%-15s %-26s rows=%d train=%d test=%d %s\n",
			kind, info.Algorithm, info.Rows, info.TrainRows, info.TestRows, formatMetrics(info.Metrics))
	}
	return nil
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}
