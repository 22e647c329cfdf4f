// Package waterfall simulates the period-by-period cash flows of a CLO.
//
// Each period the collateral pool is amortized (defaults, losses, prepayments,
// interest income), recoveries from earlier defaults are released after their
// lag, and the resulting interest and principal are paid down the capital
// structure in seniority order. Equity takes what is left.
package waterfall

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CAPITAL STRUCTURE
// =============================================================================

// Tranche is one slice of the capital structure.
// Payment priority is the tranche's position in CapitalStructure.Tranches:
// index 0 is the most senior, equity is placed last.
type Tranche struct {
	Name     string          `json:"name"`
	Rating   string          `json:"rating"`
	Notional decimal.Decimal `json:"notional"`
	Spread   decimal.Decimal `json:"spread"` // over the reference rate, decimal (0.0150 = 150bps)
	IsEquity bool            `json:"is_equity"`
}

// CapitalStructure is the ordered tranche list, most senior first.
type CapitalStructure struct {
	Tranches []Tranche `json:"tranches"`
}

// TotalNotional sums the notional of every tranche.
func (cs CapitalStructure) TotalNotional() decimal.Decimal {
	total := decimal.Zero
	for _, t := range cs.Tranches {
		total = total.Add(t.Notional)
	}
	return total
}

// EquityNotional sums the notional of the equity tranches.
func (cs CapitalStructure) EquityNotional() decimal.Decimal {
	total := decimal.Zero
	for _, t := range cs.Tranches {
		if t.IsEquity {
			total = total.Add(t.Notional)
		}
	}
	return total
}

// =============================================================================
// ASSUMPTIONS
// =============================================================================

// Assumptions drive one simulation run and are never modified by it.
type Assumptions struct {
	CDR               decimal.Decimal `json:"cdr"`           // annual conditional default rate
	CPR               decimal.Decimal `json:"cpr"`           // annual conditional prepayment rate
	RecoveryRate      decimal.Decimal `json:"recovery_rate"` // fraction of defaults recovered
	RecoveryLag       int             `json:"recovery_lag"`  // periods between default and recovery cash
	ReferenceRate     decimal.Decimal `json:"reference_rate"`
	WeightedAvgSpread decimal.Decimal `json:"weighted_avg_spread"` // collateral WAS
	SeniorFeeBps      decimal.Decimal `json:"senior_fee_bps"`
	PeriodDays        int             `json:"period_days"`
	NumPeriods        int             `json:"num_periods"`
}

var (
	daysInYear = decimal.NewFromInt(360)
	bpsDivisor = decimal.NewFromInt(10000)
)

// PeriodFraction is period_days / 360.
func (a Assumptions) PeriodFraction() decimal.Decimal {
	return decimal.NewFromInt(int64(a.PeriodDays)).Div(daysInYear)
}

// PeriodicCDR prorates the annual CDR to one period (simple, not compounded).
func (a Assumptions) PeriodicCDR() decimal.Decimal {
	return a.CDR.Mul(a.PeriodFraction())
}

// PeriodicCPR prorates the annual CPR to one period.
func (a Assumptions) PeriodicCPR() decimal.Decimal {
	return a.CPR.Mul(a.PeriodFraction())
}

// SeniorFeeRate converts the senior fee from bps to a decimal rate.
func (a Assumptions) SeniorFeeRate() decimal.Decimal {
	return a.SeniorFeeBps.Div(bpsDivisor)
}

// Input bundles everything a run needs.
type Input struct {
	Structure   CapitalStructure `json:"structure"`
	PoolBalance decimal.Decimal  `json:"pool_balance"`
	Assumptions Assumptions      `json:"assumptions"`
}

// =============================================================================
// RESULTS
// =============================================================================

// PoolState is Active while the pool has collateral and Exhausted once it is gone.
type PoolState string

const (
	PoolActive    PoolState = "ACTIVE"
	PoolExhausted PoolState = "EXHAUSTED"
)

// TranchePayment is what one tranche received in one period.
type TranchePayment struct {
	Name          string          `json:"name"`
	InterestDue   decimal.Decimal `json:"interest_due"`
	InterestPaid  decimal.Decimal `json:"interest_paid"`
	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

// PeriodResult is the snapshot of a single period. It is built once and not
// modified afterwards.
type PeriodResult struct {
	Period             int              `json:"period"`
	State              PoolState        `json:"state"`
	PoolBalance        decimal.Decimal  `json:"pool_balance"` // end of period
	Defaults           decimal.Decimal  `json:"defaults"`
	Losses             decimal.Decimal  `json:"losses"`
	Prepayments        decimal.Decimal  `json:"prepayments"`
	RecoveryScheduled  decimal.Decimal  `json:"recovery_scheduled"` // due at period + lag
	RecoveriesReceived decimal.Decimal  `json:"recoveries_received"`
	InterestIncome     decimal.Decimal  `json:"interest_income"`
	SeniorFee          decimal.Decimal  `json:"senior_fee"`
	InterestAvailable  decimal.Decimal  `json:"interest_available"`
	PrincipalAvailable decimal.Decimal  `json:"principal_available"`
	ResidualPrincipal  decimal.Decimal  `json:"residual_principal"` // undistributed, absorbed by equity
	Payments           []TranchePayment `json:"payments"`
}

// TrancheTotal is the lifetime total for one tranche.
type TrancheTotal struct {
	Name          string          `json:"name"`
	InterestPaid  decimal.Decimal `json:"interest_paid"`
	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

// Result is the full output of Simulate.
type Result struct {
	Periods                  []PeriodResult    `json:"periods"`
	Totals                   []TrancheTotal    `json:"totals"`
	EquityCashFlows          []decimal.Decimal `json:"equity_cash_flows"`
	TotalDefaults            decimal.Decimal   `json:"total_defaults"`
	TotalLosses              decimal.Decimal   `json:"total_losses"`
	TotalRecoveriesScheduled decimal.Decimal   `json:"total_recoveries_scheduled"`
	TotalRecoveriesReceived  decimal.Decimal   `json:"total_recoveries_received"`
	UnreleasedRecoveries     decimal.Decimal   `json:"unreleased_recoveries"` // still pending after the last period
	ExhaustedAt              int               `json:"exhausted_at"`          // 0 if the pool never ran out
}

// EquityMultiple is total equity distributions over the initial equity
// investment (MOIC). Zero when there is no equity investment.
func (r *Result) EquityMultiple() decimal.Decimal {
	if len(r.EquityCashFlows) == 0 {
		return decimal.Zero
	}
	invested := r.EquityCashFlows[0].Neg()
	if !invested.IsPositive() {
		return decimal.Zero
	}
	distributed := decimal.Zero
	for _, cf := range r.EquityCashFlows[1:] {
		distributed = distributed.Add(cf)
	}
	return distributed.Div(invested)
}
