package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"corp_finance/pkg/core/deal"
	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/waterfall"
)

func main() {
	mode := flag.String("mode", "calculate", "Mode: check, calculate or scenarios")
	dataStr := flag.String("data", "", "deal JSON payload")
	flag.Parse()

	if *dataStr == "" {
		fmt.Println("Error: No data provided")
		os.Exit(1)
	}

	if err := run(*mode, []byte(*dataStr), os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(mode string, data []byte, w io.Writer) error {
	d, err := deal.Parse(data, deal.FormatJSON)
	if err != nil {
		return fmt.Errorf("parsing deal: %w", err)
	}

	switch mode {
	case "check":
		return runChecks(w, d)
	case "calculate":
		return runCalculations(w, d)
	case "scenarios":
		return runScenarios(w, d)
	}
	return fmt.Errorf("unknown mode: %s", mode)
}

func runChecks(w io.Writer, d *deal.Deal) error {
	if err := d.Input.Validate(); err != nil {
		return err
	}
	total := d.Input.Structure.TotalNotional()
	diff := d.Input.PoolBalance.Sub(total)
	if diff.IsZero() {
		fmt.Fprintln(w, "Success: Pool = sum of tranche notionals")
	} else {
		fmt.Fprintf(w, "Warning: Pool minus notionals = %s\n", diff.StringFixed(2))
	}
	return nil
}

func runCalculations(w io.Writer, d *deal.Deal) error {
	res, err := waterfall.Simulate(d.Input)
	if err != nil {
		return err
	}
	summary := struct {
		Deal                 string                   `json:"deal"`
		Periods              int                      `json:"periods"`
		ExhaustedAt          int                      `json:"exhausted_at"`
		TotalLosses          string                   `json:"total_losses"`
		UnreleasedRecoveries string                   `json:"unreleased_recoveries"`
		EquityMultiple       string                   `json:"equity_multiple"`
		Totals               []waterfall.TrancheTotal `json:"totals"`
	}{
		Deal:                 d.Name,
		Periods:              len(res.Periods),
		ExhaustedAt:          res.ExhaustedAt,
		TotalLosses:          res.TotalLosses.StringFixed(2),
		UnreleasedRecoveries: res.UnreleasedRecoveries.StringFixed(2),
		EquityMultiple:       res.EquityMultiple().StringFixed(4),
		Totals:               res.Totals,
	}
	return printJSON(w, summary)
}

func runScenarios(w io.Writer, d *deal.Deal) error {
	an, err := scenario.Run(d.ScenarioInput())
	if errors.Is(err, waterfall.ErrInvalidInput) {
		return fmt.Errorf("invalid scenario input: %w", err)
	}
	if err != nil {
		return err
	}
	return printJSON(w, an)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
