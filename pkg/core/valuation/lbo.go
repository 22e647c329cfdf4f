package valuation

import (
	"fmt"

	"corp_finance/pkg/core/allocate"
	"corp_finance/pkg/core/waterfall"

	"github.com/shopspring/decimal"
)

// DebtTranche is one layer of acquisition debt. Unlike the CLO tranche list,
// priority here is an explicit rank: lower Seniority is repaid first.
type DebtTranche struct {
	Name         string          `json:"name"`
	Seniority    int             `json:"seniority"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"` // annual cash interest
}

// LBOInput parameters for a sponsor debt schedule
type LBOInput struct {
	EntryEBITDA        decimal.Decimal   `json:"entry_ebitda"`
	EntryMultiple      decimal.Decimal   `json:"entry_multiple"` // EV / EBITDA paid at entry
	ExitMultiple       decimal.Decimal   `json:"exit_multiple"`
	TaxRate            decimal.Decimal   `json:"tax_rate"`
	Debt               []DebtTranche     `json:"debt"`
	ProjectedEBITDA    []decimal.Decimal `json:"projected_ebitda"` // one entry per holding year
	ProjectedCapex     []decimal.Decimal `json:"projected_capex"`
	ProjectedChangeNWC []decimal.Decimal `json:"projected_change_nwc"`
}

// LBOYear is one year of the debt schedule.
type LBOYear struct {
	Year         int               `json:"year"`
	EBITDA       decimal.Decimal   `json:"ebitda"`
	Interest     decimal.Decimal   `json:"interest"`
	Taxes        decimal.Decimal   `json:"taxes"`
	FreeCashFlow decimal.Decimal   `json:"free_cash_flow"`
	Paydown      []decimal.Decimal `json:"paydown"` // indexed like LBOInput.Debt
	RevolverDraw decimal.Decimal   `json:"revolver_draw"`
	ExcessCash   decimal.Decimal   `json:"excess_cash"`
	Balances     []decimal.Decimal `json:"balances"`
}

// LBOResult
type LBOResult struct {
	EntryEV         decimal.Decimal `json:"entry_ev"`
	DebtRaised      decimal.Decimal `json:"debt_raised"`
	EquityCheck     decimal.Decimal `json:"equity_check"`
	Schedule        []LBOYear       `json:"schedule"`
	ExitEV          decimal.Decimal `json:"exit_ev"`
	NetDebtAtExit   decimal.Decimal `json:"net_debt_at_exit"`
	ExitEquityValue decimal.Decimal `json:"exit_equity_value"`
	MOIC            decimal.Decimal `json:"moic"`
}

// Validate rejects inputs the schedule cannot run on.
func (in LBOInput) Validate() error {
	if !in.EntryEBITDA.IsPositive() {
		return &waterfall.ValidationError{Field: "entry_ebitda", Reason: "must be positive"}
	}
	if !in.EntryMultiple.IsPositive() {
		return &waterfall.ValidationError{Field: "entry_multiple", Reason: "must be positive"}
	}
	if in.ExitMultiple.IsNegative() {
		return &waterfall.ValidationError{Field: "exit_multiple", Reason: "must not be negative"}
	}
	if !waterfall.InUnitInterval(in.TaxRate) {
		return &waterfall.ValidationError{Field: "tax_rate", Reason: fmt.Sprintf("must be within [0, 1], got %s", in.TaxRate)}
	}
	years := len(in.ProjectedEBITDA)
	if years == 0 {
		return &waterfall.ValidationError{Field: "projected_ebitda", Reason: "holding period is empty"}
	}
	if len(in.ProjectedCapex) != years || len(in.ProjectedChangeNWC) != years {
		return &waterfall.ValidationError{Field: "projections", Reason: "capex and NWC projections must match the EBITDA years"}
	}
	for i, dt := range in.Debt {
		if dt.Amount.IsNegative() {
			return &waterfall.ValidationError{Field: fmt.Sprintf("debt[%d].amount", i), Reason: "must not be negative"}
		}
		if dt.InterestRate.IsNegative() {
			return &waterfall.ValidationError{Field: fmt.Sprintf("debt[%d].interest_rate", i), Reason: "must not be negative"}
		}
	}
	return nil
}

// CalculateLBO runs the annual debt schedule: cash interest on opening
// balances, tax on EBITDA less interest, then free cash flow swept across the
// debt senior-first. Shortfalls are drawn on the most senior facility.
func CalculateLBO(input LBOInput) (*LBOResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// 1. Sources & Uses
	entryEV := input.EntryEBITDA.Mul(input.EntryMultiple)
	balances := make([]decimal.Decimal, len(input.Debt))
	debtRaised := decimal.Zero
	senior := -1
	for i, dt := range input.Debt {
		balances[i] = dt.Amount
		debtRaised = debtRaised.Add(dt.Amount)
		if senior < 0 || dt.Seniority < input.Debt[senior].Seniority {
			senior = i
		}
	}

	res := &LBOResult{
		EntryEV:     entryEV,
		DebtRaised:  debtRaised,
		EquityCheck: entryEV.Sub(debtRaised),
	}

	// 2. Debt Schedule
	cash := decimal.Zero
	for y := range input.ProjectedEBITDA {
		ebitda := input.ProjectedEBITDA[y]

		interest := decimal.Zero
		for i, dt := range input.Debt {
			interest = interest.Add(balances[i].Mul(dt.InterestRate))
		}
		taxes := decimal.Max(decimal.Zero, ebitda.Sub(interest).Mul(input.TaxRate))
		fcf := ebitda.Sub(interest).Sub(taxes).Sub(input.ProjectedCapex[y]).Sub(input.ProjectedChangeNWC[y])

		year := LBOYear{
			Year:         y + 1,
			EBITDA:       ebitda,
			Interest:     interest,
			Taxes:        taxes,
			FreeCashFlow: fcf,
			Paydown:      make([]decimal.Decimal, len(input.Debt)),
		}

		if fcf.IsPositive() {
			claims := make([]allocate.Claim, len(input.Debt))
			for i, dt := range input.Debt {
				claims[i] = allocate.Claim{Name: dt.Name, Seniority: dt.Seniority, Due: balances[i]}
			}
			alloc := allocate.Sequential(fcf, claims)
			for i, p := range alloc.Payments {
				year.Paydown[i] = p.Paid
				balances[i] = balances[i].Sub(p.Paid)
			}
			year.ExcessCash = alloc.Residual()
			cash = cash.Add(year.ExcessCash)
		} else if fcf.IsNegative() {
			// Deficit funded by the senior facility (revolver)
			year.RevolverDraw = fcf.Neg()
			if senior >= 0 {
				balances[senior] = balances[senior].Add(year.RevolverDraw)
			} else {
				cash = cash.Sub(year.RevolverDraw)
			}
		}

		year.Balances = append([]decimal.Decimal(nil), balances...)
		res.Schedule = append(res.Schedule, year)
	}

	// 3. Exit
	remaining := decimal.Zero
	for _, b := range balances {
		remaining = remaining.Add(b)
	}
	final := input.ProjectedEBITDA[len(input.ProjectedEBITDA)-1]
	res.ExitEV = final.Mul(input.ExitMultiple)
	res.NetDebtAtExit = remaining.Sub(cash)
	res.ExitEquityValue = res.ExitEV.Sub(res.NetDebtAtExit)

	if res.EquityCheck.IsPositive() {
		res.MOIC = res.ExitEquityValue.Div(res.EquityCheck)
	}
	return res, nil
}
