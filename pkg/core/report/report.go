// Package report renders engine runs as Markdown tables and HTML pages.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/store"
	"corp_finance/pkg/core/waterfall"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Run renders a stored run of either kind.
func Run(rec *store.RunRecord) (string, error) {
	switch {
	case rec.Kind == store.KindWaterfall && rec.Waterfall != nil:
		return Waterfall(rec.DealName, rec.Waterfall), nil
	case rec.Kind == store.KindScenarios && rec.Scenarios != nil:
		return Scenarios(rec.DealName, rec.Scenarios), nil
	}
	return "", fmt.Errorf("run %s has no %s result", rec.ID, rec.Kind)
}

// Waterfall renders the period cash flows and tranche totals.
func Waterfall(name string, res *waterfall.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: cash flow waterfall\n\n", name)

	sb.WriteString("## Summary\n\n")
	summary := [][]string{
		{"Periods", fmt.Sprint(len(res.Periods))},
		{"Total defaults", money(res.TotalDefaults)},
		{"Total losses", money(res.TotalLosses)},
		{"Recoveries scheduled", money(res.TotalRecoveriesScheduled)},
		{"Recoveries received", money(res.TotalRecoveriesReceived)},
		{"Recoveries pending at horizon", money(res.UnreleasedRecoveries)},
		{"Equity multiple", res.EquityMultiple().StringFixed(4) + "x"},
	}
	if res.ExhaustedAt > 0 {
		summary = append(summary, []string{"Pool exhausted in period", fmt.Sprint(res.ExhaustedAt)})
	}
	writeTable(&sb, []string{"Metric", "Value"}, summary)

	sb.WriteString("## Tranche totals\n\n")
	var totals [][]string
	for _, t := range res.Totals {
		totals = append(totals, []string{t.Name, money(t.InterestPaid), money(t.PrincipalPaid), money(t.EndingBalance)})
	}
	writeTable(&sb, []string{"Tranche", "Interest paid", "Principal paid", "Ending balance"}, totals)

	sb.WriteString("## Period cash flows\n\n")
	var periods [][]string
	for i, p := range res.Periods {
		equity := ""
		if i+1 < len(res.EquityCashFlows) {
			equity = money(res.EquityCashFlows[i+1])
		}
		periods = append(periods, []string{
			fmt.Sprint(p.Period),
			string(p.State),
			money(p.PoolBalance),
			money(p.Defaults),
			money(p.Losses),
			money(p.Prepayments),
			money(p.RecoveriesReceived),
			money(p.InterestAvailable),
			money(p.PrincipalAvailable),
			equity,
		})
	}
	writeTable(&sb, []string{"Period", "State", "Pool balance", "Defaults", "Losses", "Prepayments",
		"Recoveries", "Interest available", "Principal available", "Equity cash flow"}, periods)

	return sb.String()
}

// Scenarios renders per-scenario losses, expected loss and tranching.
func Scenarios(name string, an *scenario.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: scenario analysis\n\n", name)

	if !an.ProbabilitySum.Equal(decimal.NewFromInt(1)) {
		fmt.Fprintf(&sb, "> Scenario probabilities sum to %s and are used as given.\n\n", an.ProbabilitySum.String())
	}

	sb.WriteString("## Scenarios\n\n")
	var rows [][]string
	for _, o := range an.Outcomes {
		rows = append(rows, []string{
			o.Scenario.Name,
			o.Scenario.Probability.String(),
			pct(o.Scenario.CDR.Mul(hundred)),
			pct(o.Scenario.RecoveryRate.Mul(hundred)),
			pct(o.CumulativeDefaultRate.Mul(hundred)),
			money(o.CumulativeLoss),
			pct(o.LossRate.Mul(hundred)),
		})
	}
	writeTable(&sb, []string{"Scenario", "Probability", "CDR", "Recovery", "Cumulative defaults", "Loss", "Loss rate"}, rows)

	sb.WriteString("## Tranche losses by scenario\n\n")
	headers := []string{"Tranche"}
	for _, o := range an.Outcomes {
		headers = append(headers, o.Scenario.Name)
	}
	rows = nil
	for i, el := range an.ExpectedLoss {
		row := []string{el.Name}
		for _, o := range an.Outcomes {
			tl := o.Tranches[i]
			cell := pct(tl.LossPct)
			if tl.Impaired {
				cell += " (impaired)"
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	writeTable(&sb, headers, rows)

	sb.WriteString("## Expected loss and tranching\n\n")
	rows = nil
	for i, el := range an.ExpectedLoss {
		tr := an.Tranching[i]
		rows = append(rows, []string{el.Name, pct(tr.Attachment), pct(tr.Detachment), money(el.ExpectedLoss), pct(el.ExpectedLossPct)})
	}
	writeTable(&sb, []string{"Tranche", "Attachment", "Detachment", "Expected loss", "Expected loss %"}, rows)

	return sb.String()
}

// HTML converts Markdown to an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Page wraps rendered Markdown in a standalone HTML document.
func Page(title, markdown string) (string, error) {
	body, err := HTML(markdown)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(pageTemplate, html.EscapeString(title), body), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`

var hundred = decimal.NewFromInt(100)

func money(v decimal.Decimal) string { return v.StringFixed(2) }

func pct(v decimal.Decimal) string { return v.StringFixed(2) + "%" }

func writeTable(sb *strings.Builder, headers []string, rows [][]string) {
	sb.WriteString("|")
	for _, h := range headers {
		sb.WriteString(" " + h + " |")
	}
	sb.WriteString("\n|")
	for range headers {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" " + strings.ReplaceAll(cell, "|", `\|`) + " |")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
