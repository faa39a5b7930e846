package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"cropwise-go/internal/service"
)

var profileJSON bool

var profileCmd = &cobra.Command{
	Use:       "profile <recommendation|rotation|yield>",
	Short:     "Summarise a training dataset",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: service.Kinds,
	RunE:      runProfile,
}

func init() {
	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "output the profile as JSON")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	e, err := newEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	p, err := e.manager.Profile(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if profileJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "%s (%s): %d rows, %d columns\n\n", p.Name, p.Source, p.Rows, len(p.Columns))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tDISTINCT\tMIN\tMEAN\tMAX")
	for _, c := range p.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%d\t%s\t%s\t%s\n",
			c.Name, c.Type, c.NullRate*100, c.Distinct, num(c.Min), num(c.Mean), num(c.Max))
	}
	return tw.Flush()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
