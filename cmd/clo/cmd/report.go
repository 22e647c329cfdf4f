package cmd

import (
	"fmt"
	"os"

	"corp_finance/pkg/core/report"

	"github.com/spf13/cobra"
)

var (
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a combined waterfall and scenario report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportFormat != "md" && reportFormat != "html" {
			return fmt.Errorf("--format must be md or html, got %q", reportFormat)
		}
		f, err := loadDeal()
		if err != nil {
			return fmt.Errorf("loading deal: %w", err)
		}
		svc, closeFn, err := newService(cmd.Context())
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer closeFn()

		wf, err := svc.RunWaterfall(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("waterfall: %w", err)
		}
		sc, err := svc.RunScenarios(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}

		doc := report.Waterfall(wf.DealName, wf.Waterfall) + "\n" + report.Scenarios(sc.DealName, sc.Scenarios)
		if reportFormat == "html" {
			if doc, err = report.Page(wf.DealName, doc); err != nil {
				return err
			}
		}

		if reportOut == "" {
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}
		if err := os.WriteFile(reportOut, []byte(doc), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "md", "output format: md or html")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}
