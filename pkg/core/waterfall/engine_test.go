package waterfall

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func million(n int64) decimal.Decimal { return decimal.NewFromInt(n * 1_000_000) }

// =============================================================================
// REFERENCE DEAL
// =============================================================================
// 900M CLO, 5 tranches, quarterly periods over 5 years.

func referenceStructure() CapitalStructure {
	return CapitalStructure{Tranches: []Tranche{
		{Name: "Class A", Rating: "AAA", Notional: million(600), Spread: d("0.0130")},
		{Name: "Class B", Rating: "AA", Notional: million(100), Spread: d("0.0200")},
		{Name: "Class C", Rating: "A", Notional: million(80), Spread: d("0.0275")},
		{Name: "Class D", Rating: "BBB", Notional: million(50), Spread: d("0.0400")},
		{Name: "Equity", Rating: "NR", Notional: million(70), IsEquity: true},
	}}
}

func referenceAssumptions() Assumptions {
	return Assumptions{
		CDR:               d("0.02"),
		CPR:               d("0.10"),
		RecoveryRate:      d("0.40"),
		RecoveryLag:       2,
		ReferenceRate:     d("0.05"),
		WeightedAvgSpread: d("0.035"),
		SeniorFeeBps:      d("50"),
		PeriodDays:        90,
		NumPeriods:        20,
	}
}

func referenceInput() Input {
	return Input{
		Structure:   referenceStructure(),
		PoolBalance: million(900),
		Assumptions: referenceAssumptions(),
	}
}

func mustSimulate(t *testing.T, in Input) *Result {
	t.Helper()
	res, err := Simulate(in)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	return res
}

func TestSimulate_ReferenceDeal(t *testing.T) {
	in := referenceInput()
	res := mustSimulate(t, in)

	if len(res.Periods) != 20 {
		t.Fatalf("expected 20 periods, got %d", len(res.Periods))
	}
	if len(res.EquityCashFlows) != 21 {
		t.Fatalf("expected 21 equity cash flows, got %d", len(res.EquityCashFlows))
	}
	if !res.EquityCashFlows[0].Equal(million(-70)) {
		t.Errorf("equity cash flow[0] = %s, want -70000000", res.EquityCashFlows[0])
	}

	prev := in.PoolBalance
	for _, p := range res.Periods {
		if !p.PoolBalance.LessThan(prev) {
			t.Errorf("period %d: pool balance %s not below %s", p.Period, p.PoolBalance, prev)
		}
		prev = p.PoolBalance
	}

	// Class A is current on its coupon for the early periods.
	for _, p := range res.Periods[:6] {
		aaa := p.Payments[0]
		if !aaa.InterestPaid.Equal(aaa.InterestDue) {
			t.Errorf("period %d: Class A paid %s of %s due", p.Period, aaa.InterestPaid, aaa.InterestDue)
		}
	}

	t.Logf("Reference deal: pool end %s, equity MOIC %s", prev.StringFixed(0), res.EquityMultiple().StringFixed(4))
}

func TestSimulate_FirstPeriodFigures(t *testing.T) {
	res := mustSimulate(t, referenceInput())
	p := res.Periods[0]

	// periodic CDR = 0.02 x 90/360 = 0.005
	tests := []struct {
		name string
		got  decimal.Decimal
		want decimal.Decimal
	}{
		{"defaults", p.Defaults, d("4500000")},
		{"losses", p.Losses, d("2700000")},
		{"recovery scheduled", p.RecoveryScheduled, d("1800000")},
		{"recoveries received", p.RecoveriesReceived, decimal.Zero},
		{"prepayments", p.Prepayments, d("22387500")},                  // 895.5M x 0.025
		{"interest income", p.InterestIncome, d("19125000")},           // 900M x 0.085 x 0.25
		{"senior fee", p.SeniorFee, d("1125000")},                      // 900M x 0.005 x 0.25
		{"interest available", p.InterestAvailable, d("18000000")},     // income - fee
		{"pool balance", p.PoolBalance, d("873112500")},                // 900 - 4.5 - 22.3875
		{"Class A coupon", p.Payments[0].InterestDue, d("9450000")},    // 600M x 0.063 x 0.25
		{"Class D coupon", p.Payments[3].InterestDue, d("1125000")},    // 50M x 0.09 x 0.25
		{"equity interest", p.Payments[4].InterestPaid, d("4125000")},  // 18M - 13.875M
		{"Class A principal", p.Payments[0].PrincipalPaid, d("22387500")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(tt.want) {
				t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestSimulate_Invariants(t *testing.T) {
	cases := map[string]Input{
		"reference": referenceInput(),
	}

	stressed := referenceInput()
	stressed.Assumptions.CDR = d("0.25")
	stressed.Assumptions.CPR = d("0.30")
	stressed.Assumptions.RecoveryRate = d("0.20")
	cases["stressed"] = stressed

	fast := referenceInput()
	fast.Assumptions.CPR = d("1")
	fast.Assumptions.PeriodDays = 180
	cases["fast prepay"] = fast

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			res := mustSimulate(t, in)
			tranches := in.Structure.Tranches

			prevBal := make([]decimal.Decimal, len(tranches))
			for i, tr := range tranches {
				prevBal[i] = tr.Notional
			}

			for _, p := range res.Periods {
				if p.PoolBalance.IsNegative() {
					t.Errorf("period %d: negative pool balance %s", p.Period, p.PoolBalance)
				}

				sumInt := decimal.Zero
				sumPrin := decimal.Zero
				for i, pay := range p.Payments {
					sumInt = sumInt.Add(pay.InterestPaid)
					sumPrin = sumPrin.Add(pay.PrincipalPaid)

					if pay.EndingBalance.IsNegative() {
						t.Errorf("period %d %s: negative balance", p.Period, pay.Name)
					}
					if pay.EndingBalance.GreaterThan(prevBal[i]) {
						t.Errorf("period %d %s: balance rose %s -> %s", p.Period, pay.Name, prevBal[i], pay.EndingBalance)
					}

					// strict sequential exhaustion
					if pay.EndingBalance.IsPositive() {
						for j := i + 1; j < len(p.Payments); j++ {
							if !p.Payments[j].PrincipalPaid.IsZero() {
								t.Errorf("period %d: %s paid principal while %s still outstanding",
									p.Period, p.Payments[j].Name, pay.Name)
							}
						}
					}
					prevBal[i] = pay.EndingBalance
				}

				if sumInt.GreaterThan(p.InterestAvailable) {
					t.Errorf("period %d: interest paid %s > available %s", p.Period, sumInt, p.InterestAvailable)
				}
				// equity is unconstrained on the interest leg
				if !sumInt.Equal(p.InterestAvailable) {
					t.Errorf("period %d: interest paid %s != available %s", p.Period, sumInt, p.InterestAvailable)
				}
				if sumPrin.GreaterThan(p.PrincipalAvailable) {
					t.Errorf("period %d: principal paid %s > available %s", p.Period, sumPrin, p.PrincipalAvailable)
				}
				if !sumPrin.Add(p.ResidualPrincipal).Equal(p.PrincipalAvailable) {
					t.Errorf("period %d: principal %s + residual %s != available %s",
						p.Period, sumPrin, p.ResidualPrincipal, p.PrincipalAvailable)
				}
			}
		})
	}
}

func TestSimulate_ZeroCDR(t *testing.T) {
	in := referenceInput()
	in.Assumptions.CDR = decimal.Zero
	res := mustSimulate(t, in)

	for _, p := range res.Periods {
		if !p.Defaults.IsZero() || !p.Losses.IsZero() {
			t.Errorf("period %d: defaults %s losses %s with zero CDR", p.Period, p.Defaults, p.Losses)
		}
	}
	if !res.TotalRecoveriesScheduled.IsZero() {
		t.Errorf("expected no recoveries, got %s", res.TotalRecoveriesScheduled)
	}
}

func TestSimulate_RecoveryLagExactness(t *testing.T) {
	in := referenceInput()
	in.Assumptions.CPR = decimal.Zero
	in.Assumptions.RecoveryLag = 3
	res := mustSimulate(t, in)

	lag := in.Assumptions.RecoveryLag
	for i, p := range res.Periods {
		if p.Period <= lag {
			if !p.RecoveriesReceived.IsZero() {
				t.Errorf("period %d: recovery %s released before lag", p.Period, p.RecoveriesReceived)
			}
			continue
		}
		scheduled := res.Periods[i-lag].RecoveryScheduled
		if !p.RecoveriesReceived.Equal(scheduled) {
			t.Errorf("period %d: received %s, scheduled at period %d was %s",
				p.Period, p.RecoveriesReceived, p.Period-lag, scheduled)
		}
	}

	// whatever was not released is still pending, nothing vanished
	released := res.TotalRecoveriesReceived.Add(res.UnreleasedRecoveries)
	if !released.Equal(res.TotalRecoveriesScheduled) {
		t.Errorf("received %s + pending %s != scheduled %s",
			res.TotalRecoveriesReceived, res.UnreleasedRecoveries, res.TotalRecoveriesScheduled)
	}
}

func TestSimulate_ExhaustedPool(t *testing.T) {
	// Annual periods with 100% CDR wipe the pool out in period 1.
	in := referenceInput()
	in.Assumptions.CDR = d("1")
	in.Assumptions.PeriodDays = 360
	in.Assumptions.NumPeriods = 5
	in.Assumptions.RecoveryLag = 2
	res := mustSimulate(t, in)

	if res.ExhaustedAt != 1 {
		t.Fatalf("expected exhaustion in period 1, got %d", res.ExhaustedAt)
	}

	// recovery of 900M x 0.40 arrives in period 3 even though the pool is gone
	p3 := res.Periods[2]
	if !p3.RecoveriesReceived.Equal(million(360)) {
		t.Errorf("period 3 recoveries = %s, want 360000000", p3.RecoveriesReceived)
	}
	if !p3.Payments[0].PrincipalPaid.Equal(million(360)) {
		t.Errorf("period 3 Class A principal = %s, want 360000000", p3.Payments[0].PrincipalPaid)
	}

	for _, i := range []int{1, 3, 4} {
		p := res.Periods[i]
		if p.State != PoolExhausted {
			t.Errorf("period %d: state %s", p.Period, p.State)
		}
		if !p.Defaults.IsZero() || !p.InterestAvailable.IsZero() || !p.PrincipalAvailable.IsZero() {
			t.Errorf("period %d: expected degenerate period, got %+v", p.Period, p)
		}
		for j, pay := range p.Payments {
			if !pay.EndingBalance.Equal(res.Periods[i-1].Payments[j].EndingBalance) {
				t.Errorf("period %d %s: balance moved in an empty period", p.Period, pay.Name)
			}
		}
	}
	if !res.UnreleasedRecoveries.IsZero() {
		t.Errorf("expected all recoveries released, %s pending", res.UnreleasedRecoveries)
	}
}

func TestSimulate_ResidualPrincipalToEquity(t *testing.T) {
	// Pool larger than the notes: everything repays and the excess goes to equity.
	in := Input{
		Structure: CapitalStructure{Tranches: []Tranche{
			{Name: "Senior", Notional: million(50), Spread: d("0.01")},
			{Name: "Equity", Notional: million(10), IsEquity: true},
		}},
		PoolBalance: million(100),
		Assumptions: Assumptions{
			CPR:               d("1"),
			RecoveryRate:      d("0.5"),
			ReferenceRate:     d("0.05"),
			WeightedAvgSpread: d("0.03"),
			PeriodDays:        360,
			NumPeriods:        1,
		},
	}
	res := mustSimulate(t, in)
	p := res.Periods[0]

	if !p.Payments[0].EndingBalance.IsZero() || !p.Payments[1].EndingBalance.IsZero() {
		t.Errorf("expected both tranches retired, got %s / %s",
			p.Payments[0].EndingBalance, p.Payments[1].EndingBalance)
	}
	if !p.ResidualPrincipal.Equal(million(40)) {
		t.Errorf("residual principal = %s, want 40000000", p.ResidualPrincipal)
	}
	// 10M equity principal + 40M residual + (8M income - 3M senior coupon)
	if !res.EquityCashFlows[1].Equal(million(55)) {
		t.Errorf("equity distribution = %s, want 55000000", res.EquityCashFlows[1])
	}
	if !res.EquityMultiple().Equal(d("5.5")) {
		t.Errorf("equity multiple = %s, want 5.5", res.EquityMultiple())
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"empty tranches", func(in *Input) { in.Structure.Tranches = nil }, "tranches"},
		{"zero pool", func(in *Input) { in.PoolBalance = decimal.Zero }, "pool_balance"},
		{"negative pool", func(in *Input) { in.PoolBalance = d("-1") }, "pool_balance"},
		{"CDR above one", func(in *Input) { in.Assumptions.CDR = d("1.01") }, "cdr"},
		{"negative CPR", func(in *Input) { in.Assumptions.CPR = d("-0.1") }, "cpr"},
		{"recovery above one", func(in *Input) { in.Assumptions.RecoveryRate = d("2") }, "recovery_rate"},
		{"negative lag", func(in *Input) { in.Assumptions.RecoveryLag = -1 }, "recovery_lag"},
		{"zero periods", func(in *Input) { in.Assumptions.NumPeriods = 0 }, "num_periods"},
		{"zero period days", func(in *Input) { in.Assumptions.PeriodDays = 0 }, "period_days"},
		{"negative fee", func(in *Input) { in.Assumptions.SeniorFeeBps = d("-5") }, "senior_fee_bps"},
		{"negative notional", func(in *Input) { in.Structure.Tranches[2].Notional = d("-1") }, "tranches[2].notional"},
		{"zero notional", func(in *Input) { in.Structure.Tranches[1].Notional = decimal.Zero }, "tranches[1].notional"},
		{"equity before rated", func(in *Input) {
			ts := in.Structure.Tranches
			ts[3], ts[4] = ts[4], ts[3]
		}, "tranches[4]"},
		{"period CDR above one", func(in *Input) {
			in.Assumptions.CDR = d("1")
			in.Assumptions.PeriodDays = 720
		}, "cdr"},
		{"period CPR above one", func(in *Input) {
			in.Assumptions.CPR = d("0.6")
			in.Assumptions.PeriodDays = 720
		}, "cpr"},
		{"first failure wins", func(in *Input) {
			in.Assumptions.CDR = d("5")
			in.Assumptions.NumPeriods = 0
		}, "cdr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := referenceInput()
			tt.mutate(&in)

			res, err := Simulate(in)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if res != nil {
				t.Errorf("expected no partial result on validation failure")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not match ErrInvalidInput", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q (%s)", ve.Field, tt.field, ve.Reason)
			}
		})
	}
}

func TestSimulate_IndependentRuns(t *testing.T) {
	in := referenceInput()
	a := mustSimulate(t, in)
	b := mustSimulate(t, in)

	for i := range a.Periods {
		if !a.Periods[i].PoolBalance.Equal(b.Periods[i].PoolBalance) {
			t.Fatalf("period %d: runs diverged", i+1)
		}
	}
	// the input structure is never mutated
	if !in.Structure.Tranches[0].Notional.Equal(million(600)) {
		t.Errorf("input notional mutated to %s", in.Structure.Tranches[0].Notional)
	}
}
