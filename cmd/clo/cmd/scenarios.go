package cmd

import (
	"fmt"

	"corp_finance/pkg/core/report"

	"github.com/spf13/cobra"
)

var scenariosJSON bool

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Attribute stressed pool losses to the tranches",
	Long: `scenarios runs every stress scenario in the deal file (or the built-in
Base / Adverse / Severe set when it has none) and prints per-tranche losses,
probability-weighted expected loss and attachment/detachment points.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadDeal()
		if err != nil {
			return fmt.Errorf("loading deal: %w", err)
		}
		svc, closeFn, err := newService(cmd.Context())
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer closeFn()

		rec, err := svc.RunScenarios(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}

		out := cmd.OutOrStdout()
		if scenariosJSON {
			return printJSON(out, rec.Scenarios)
		}
		fmt.Fprint(out, report.Scenarios(rec.DealName, rec.Scenarios))
		if save {
			fmt.Fprintf(out, "run id: %s\n", rec.ID)
		}
		return nil
	},
}

func init() {
	scenariosCmd.Flags().BoolVar(&scenariosJSON, "json", false, "print the raw analysis as JSON")
	rootCmd.AddCommand(scenariosCmd)
}
