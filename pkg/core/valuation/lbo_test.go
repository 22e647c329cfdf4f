package valuation

import (
	"errors"
	"testing"

	"corp_finance/pkg/core/waterfall"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flat(v string, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = d(v)
	}
	return out
}

func TestCalculateLBO_SeniorFirstSweep(t *testing.T) {
	// EV 1000 = 10x 100 EBITDA; 400 TLB (rank 1) + 200 notes (rank 2)
	// Listed junior-first to make sure rank, not position, drives the sweep.
	input := LBOInput{
		EntryEBITDA:   d("100"),
		EntryMultiple: d("10"),
		ExitMultiple:  d("10"),
		TaxRate:       d("0.25"),
		Debt: []DebtTranche{
			{Name: "Senior Notes", Seniority: 2, Amount: d("200"), InterestRate: d("0.10")},
			{Name: "Term Loan B", Seniority: 1, Amount: d("400"), InterestRate: d("0.05")},
		},
		ProjectedEBITDA:    flat("100", 2),
		ProjectedCapex:     flat("10", 2),
		ProjectedChangeNWC: flat("0", 2),
	}

	res, err := CalculateLBO(input)
	if err != nil {
		t.Fatalf("CalculateLBO failed: %v", err)
	}

	if !res.EquityCheck.Equal(d("400")) {
		t.Errorf("equity check = %s, want 400", res.EquityCheck)
	}

	// Year 1: interest 20 + 20 = 40, taxes (100-40) x 0.25 = 15, FCF 100-40-15-10 = 35
	y1 := res.Schedule[0]
	if !y1.Interest.Equal(d("40")) || !y1.Taxes.Equal(d("15")) || !y1.FreeCashFlow.Equal(d("35")) {
		t.Errorf("year 1 interest %s taxes %s fcf %s", y1.Interest, y1.Taxes, y1.FreeCashFlow)
	}
	if !y1.Paydown[1].Equal(d("35")) || !y1.Paydown[0].IsZero() {
		t.Errorf("year 1 paydown notes %s TLB %s, want 0 / 35", y1.Paydown[0], y1.Paydown[1])
	}
	if !y1.Balances[1].Equal(d("365")) {
		t.Errorf("TLB after year 1 = %s, want 365", y1.Balances[1])
	}

	// Exit: EV 1000, debt 600 less paydown
	paid := decimal.Zero
	for _, y := range res.Schedule {
		for _, p := range y.Paydown {
			paid = paid.Add(p)
		}
	}
	if !res.NetDebtAtExit.Equal(d("600").Sub(paid)) {
		t.Errorf("net debt at exit = %s, want %s", res.NetDebtAtExit, d("600").Sub(paid))
	}
	if !res.MOIC.Equal(res.ExitEquityValue.Div(d("400"))) {
		t.Errorf("MOIC = %s", res.MOIC)
	}
	t.Logf("LBO exit equity %s, MOIC %s", res.ExitEquityValue, res.MOIC.StringFixed(3))
}

func TestCalculateLBO_DeficitDrawsSenior(t *testing.T) {
	input := LBOInput{
		EntryEBITDA:        d("50"),
		EntryMultiple:      d("8"),
		ExitMultiple:       d("8"),
		TaxRate:            d("0.2"),
		Debt:               []DebtTranche{{Name: "Revolver", Seniority: 0, Amount: d("100"), InterestRate: d("0.10")}},
		ProjectedEBITDA:    flat("20", 1),
		ProjectedCapex:     flat("40", 1),
		ProjectedChangeNWC: flat("0", 1),
	}

	res, err := CalculateLBO(input)
	if err != nil {
		t.Fatalf("CalculateLBO failed: %v", err)
	}
	// interest 10, taxes 2, fcf 20-10-2-40 = -32
	y := res.Schedule[0]
	if !y.RevolverDraw.Equal(d("32")) {
		t.Errorf("revolver draw = %s, want 32", y.RevolverDraw)
	}
	if !y.Balances[0].Equal(d("132")) {
		t.Errorf("revolver balance = %s, want 132", y.Balances[0])
	}
}

func TestCalculateLBO_Validation(t *testing.T) {
	input := LBOInput{
		EntryEBITDA:        d("100"),
		EntryMultiple:      d("10"),
		TaxRate:            d("1.5"),
		ProjectedEBITDA:    flat("100", 1),
		ProjectedCapex:     flat("0", 1),
		ProjectedChangeNWC: flat("0", 1),
	}
	_, err := CalculateLBO(input)
	var ve *waterfall.ValidationError
	if !errors.As(err, &ve) || ve.Field != "tax_rate" {
		t.Fatalf("expected tax_rate validation error, got %v", err)
	}
}
