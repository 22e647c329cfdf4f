// Package scenario attributes stressed pool losses to the tranches of a CLO.
//
// Each named scenario runs a reduced pool model (defaults and prepayments only,
// no cash waterfall) to get a cumulative loss, which is then written down the
// capital structure bottom-up: equity first, then the most junior rated
// tranche, and so on. Results are weighted by scenario probability.
package scenario

import (
	"fmt"

	"corp_finance/pkg/core/waterfall"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Scenario is one named stress case.
type Scenario struct {
	Name         string          `json:"name"`
	Probability  decimal.Decimal `json:"probability"`
	CDR          decimal.Decimal `json:"cdr"`
	CPR          decimal.Decimal `json:"cpr"`
	RecoveryRate decimal.Decimal `json:"recovery_rate"`
}

// Input is what Run needs.
type Input struct {
	Structure   waterfall.CapitalStructure `json:"structure"`
	PoolBalance decimal.Decimal            `json:"pool_balance"`
	PeriodDays  int                        `json:"period_days"`
	NumPeriods  int                        `json:"num_periods"`
	Scenarios   []Scenario                 `json:"scenarios"`
}

// TrancheLoss is the write-down of one tranche in one scenario.
type TrancheLoss struct {
	Name     string          `json:"name"`
	Loss     decimal.Decimal `json:"loss"`
	LossPct  decimal.Decimal `json:"loss_pct"` // percent of notional
	Impaired bool            `json:"impaired"`
}

// Outcome is the result of a single scenario.
type Outcome struct {
	Scenario              Scenario        `json:"scenario"`
	CumulativeDefaults    decimal.Decimal `json:"cumulative_defaults"`
	CumulativeDefaultRate decimal.Decimal `json:"cumulative_default_rate"` // defaults / initial pool
	CumulativeLoss        decimal.Decimal `json:"cumulative_loss"`
	LossRate              decimal.Decimal `json:"loss_rate"` // loss / initial pool
	Tranches              []TrancheLoss   `json:"tranches"`
}

// ExpectedLoss is the probability-weighted loss of one tranche.
type ExpectedLoss struct {
	Name            string          `json:"name"`
	ExpectedLoss    decimal.Decimal `json:"expected_loss"`
	ExpectedLossPct decimal.Decimal `json:"expected_loss_pct"`
}

// Tranching is a tranche's attachment and detachment, in percent of capital.
type Tranching struct {
	Name       string          `json:"name"`
	Attachment decimal.Decimal `json:"attachment"`
	Detachment decimal.Decimal `json:"detachment"`
}

// Analysis is the combined output over all scenarios.
type Analysis struct {
	Outcomes       []Outcome       `json:"outcomes"`
	ExpectedLoss   []ExpectedLoss  `json:"expected_loss"`
	Tranching      []Tranching     `json:"tranching"`
	ProbabilitySum decimal.Decimal `json:"probability_sum"` // not normalized; reported as given
}

// Run evaluates every scenario and combines them. Probabilities are used as
// given even if they do not sum to one.
func Run(in Input) (*Analysis, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tranches := in.Structure.Tranches
	an := &Analysis{
		Outcomes:     make([]Outcome, 0, len(in.Scenarios)),
		ExpectedLoss: make([]ExpectedLoss, len(tranches)),
		Tranching:    AttachmentPoints(in.Structure),
	}
	for i, t := range tranches {
		an.ExpectedLoss[i] = ExpectedLoss{Name: t.Name}
	}

	for _, sc := range in.Scenarios {
		out := evaluate(in, sc)
		an.Outcomes = append(an.Outcomes, out)
		an.ProbabilitySum = an.ProbabilitySum.Add(sc.Probability)

		for i, tl := range out.Tranches {
			an.ExpectedLoss[i].ExpectedLoss = an.ExpectedLoss[i].ExpectedLoss.Add(tl.Loss.Mul(sc.Probability))
		}
	}

	for i, t := range tranches {
		an.ExpectedLoss[i].ExpectedLossPct = percentOf(an.ExpectedLoss[i].ExpectedLoss, t.Notional)
	}
	return an, nil
}

// CumulativeLoss runs the reduced pool model for one scenario and returns the
// cumulative defaults and losses over the horizon.
func CumulativeLoss(pool decimal.Decimal, periodDays, numPeriods int, sc Scenario) (defaults, losses decimal.Decimal) {
	a := waterfall.Assumptions{CDR: sc.CDR, CPR: sc.CPR, PeriodDays: periodDays}
	pCDR := a.PeriodicCDR()
	pCPR := a.PeriodicCPR()
	severity := one.Sub(sc.RecoveryRate)

	balance := pool
	for t := 0; t < numPeriods && balance.IsPositive(); t++ {
		dflt := decimal.Min(balance, balance.Mul(pCDR))
		survivor := balance.Sub(dflt)
		prepay := decimal.Zero
		if survivor.IsPositive() {
			prepay = decimal.Min(survivor, survivor.Mul(pCPR))
		}
		defaults = defaults.Add(dflt)
		losses = losses.Add(dflt.Mul(severity))
		balance = decimal.Max(decimal.Zero, survivor.Sub(prepay))
	}
	return defaults, losses
}

// AllocateLoss writes a lump loss down the structure from the bottom up.
// The result is indexed like the tranche list, which must hold equity last
// (CapitalStructure.Validate).
func AllocateLoss(loss decimal.Decimal, cs waterfall.CapitalStructure) []TrancheLoss {
	tranches := cs.Tranches
	out := make([]TrancheLoss, len(tranches))
	remaining := loss
	for i := len(tranches) - 1; i >= 0; i-- {
		t := tranches[i]
		hit := decimal.Max(decimal.Zero, decimal.Min(t.Notional, remaining))
		remaining = remaining.Sub(hit)
		out[i] = TrancheLoss{
			Name:     t.Name,
			Loss:     hit,
			LossPct:  percentOf(hit, t.Notional),
			Impaired: hit.IsPositive(),
		}
	}
	return out
}

// AttachmentPoints accumulates notional from the bottom up: equity attaches at
// 0% and the most senior tranche detaches at 100%.
func AttachmentPoints(cs waterfall.CapitalStructure) []Tranching {
	tranches := cs.Tranches
	total := cs.TotalNotional()
	out := make([]Tranching, len(tranches))

	below := decimal.Zero
	for i := len(tranches) - 1; i >= 0; i-- {
		t := tranches[i]
		top := below.Add(t.Notional)
		out[i] = Tranching{
			Name:       t.Name,
			Attachment: percentOf(below, total),
			Detachment: percentOf(top, total),
		}
		below = top
	}
	return out
}

func evaluate(in Input, sc Scenario) Outcome {
	defaults, losses := CumulativeLoss(in.PoolBalance, in.PeriodDays, in.NumPeriods, sc)
	return Outcome{
		Scenario:              sc,
		CumulativeDefaults:    defaults,
		CumulativeDefaultRate: ratio(defaults, in.PoolBalance),
		CumulativeLoss:        losses,
		LossRate:              ratio(losses, in.PoolBalance),
		Tranches:              AllocateLoss(losses, in.Structure),
	}
}

// ratio returns num/den, or zero when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

// DefaultScenarios is the standard base / adverse / severe stress set.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "Base", Probability: decimal.RequireFromString("0.60"), CDR: decimal.RequireFromString("0.02"),
			CPR: decimal.RequireFromString("0.15"), RecoveryRate: decimal.RequireFromString("0.65")},
		{Name: "Adverse", Probability: decimal.RequireFromString("0.30"), CDR: decimal.RequireFromString("0.05"),
			CPR: decimal.RequireFromString("0.10"), RecoveryRate: decimal.RequireFromString("0.50")},
		{Name: "Severe", Probability: decimal.RequireFromString("0.10"), CDR: decimal.RequireFromString("0.10"),
			CPR: decimal.RequireFromString("0.05"), RecoveryRate: decimal.RequireFromString("0.35")},
	}
}

// Validate checks the structure, horizon and every scenario up front.
func (in Input) Validate() error {
	if !in.PoolBalance.IsPositive() {
		return &waterfall.ValidationError{Field: "pool_balance", Reason: fmt.Sprintf("must be positive, got %s", in.PoolBalance)}
	}
	if in.NumPeriods <= 0 {
		return &waterfall.ValidationError{Field: "num_periods", Reason: fmt.Sprintf("must be positive, got %d", in.NumPeriods)}
	}
	if in.PeriodDays <= 0 {
		return &waterfall.ValidationError{Field: "period_days", Reason: fmt.Sprintf("must be positive, got %d", in.PeriodDays)}
	}
	if err := in.Structure.Validate(); err != nil {
		return err
	}
	if len(in.Scenarios) == 0 {
		return &waterfall.ValidationError{Field: "scenarios", Reason: "no stress scenarios given"}
	}
	for i, sc := range in.Scenarios {
		fields := []struct {
			name  string
			value decimal.Decimal
		}{
			{"probability", sc.Probability},
			{"cdr", sc.CDR},
			{"cpr", sc.CPR},
			{"recovery_rate", sc.RecoveryRate},
		}
		for _, f := range fields {
			if !waterfall.InUnitInterval(f.value) {
				return &waterfall.ValidationError{
					Field:  fmt.Sprintf("scenarios[%d].%s", i, f.name),
					Reason: fmt.Sprintf("scenario %q %s must be within [0, 1], got %s", sc.Name, f.name, f.value),
				}
			}
		}
		a := waterfall.Assumptions{CDR: sc.CDR, CPR: sc.CPR, PeriodDays: in.PeriodDays}
		for _, r := range []struct {
			name string
			rate decimal.Decimal
		}{{"cdr", a.PeriodicCDR()}, {"cpr", a.PeriodicCPR()}} {
			if r.rate.GreaterThan(one) {
				return &waterfall.ValidationError{
					Field:  fmt.Sprintf("scenarios[%d].%s", i, r.name),
					Reason: fmt.Sprintf("scenario %q period rate %s over %d days exceeds 1", sc.Name, r.rate, in.PeriodDays),
				}
			}
		}
	}
	return nil
}
