package cmd

import (
	"fmt"

	"corp_finance/pkg/core/report"

	"github.com/spf13/cobra"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the period cash flow waterfall",
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

		rec, err := svc.RunWaterfall(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("waterfall: %w", err)
		}

		out := cmd.OutOrStdout()
		if runJSON {
			return printJSON(out, rec.Waterfall)
		}
		fmt.Fprint(out, report.Waterfall(rec.DealName, rec.Waterfall))
		if save {
			fmt.Fprintf(out, "run id: %s\n", rec.ID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the raw result as JSON")
	rootCmd.AddCommand(runCmd)
}
