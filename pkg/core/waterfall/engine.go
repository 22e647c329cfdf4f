package waterfall

import (
	"github.com/shopspring/decimal"
)

// RunState is the mutable state of one simulation run, owned by a single
// Simulate call. Separate runs share nothing.
type RunState struct {
	Period      int
	PoolBalance decimal.Decimal
	Balances    []decimal.Decimal // indexed like the tranche list
	Recoveries  RecoveryQueue
	State       PoolState
}

// NewRunState starts every tranche at its notional and the pool Active.
func NewRunState(in Input) *RunState {
	balances := make([]decimal.Decimal, len(in.Structure.Tranches))
	for i, t := range in.Structure.Tranches {
		balances[i] = t.Notional
	}
	return &RunState{
		PoolBalance: in.PoolBalance,
		Balances:    balances,
		State:       PoolActive,
	}
}

// Simulate validates the input and runs every period in order.
// On a validation failure nothing is simulated and no result is returned.
func Simulate(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tranches := in.Structure.Tranches
	a := in.Assumptions
	st := NewRunState(in)

	res := &Result{
		Periods:         make([]PeriodResult, 0, a.NumPeriods),
		EquityCashFlows: make([]decimal.Decimal, 0, a.NumPeriods+1),
	}
	res.EquityCashFlows = append(res.EquityCashFlows, in.Structure.EquityNotional().Neg())

	totals := make([]TrancheTotal, len(tranches))
	for i, t := range tranches {
		totals[i] = TrancheTotal{Name: t.Name}
	}

	for t := 1; t <= a.NumPeriods; t++ {
		pr, equityCF := st.step(t, tranches, a)

		res.TotalDefaults = res.TotalDefaults.Add(pr.Defaults)
		res.TotalLosses = res.TotalLosses.Add(pr.Losses)
		res.TotalRecoveriesScheduled = res.TotalRecoveriesScheduled.Add(pr.RecoveryScheduled)
		res.TotalRecoveriesReceived = res.TotalRecoveriesReceived.Add(pr.RecoveriesReceived)
		if pr.State == PoolExhausted && res.ExhaustedAt == 0 {
			res.ExhaustedAt = t
		}

		for i, p := range pr.Payments {
			totals[i].InterestPaid = totals[i].InterestPaid.Add(p.InterestPaid)
			totals[i].PrincipalPaid = totals[i].PrincipalPaid.Add(p.PrincipalPaid)
		}

		res.Periods = append(res.Periods, pr)
		res.EquityCashFlows = append(res.EquityCashFlows, equityCF)
	}

	for i := range totals {
		totals[i].EndingBalance = st.Balances[i]
	}
	res.Totals = totals
	res.UnreleasedRecoveries = st.Recoveries.Pending()

	return res, nil
}

// step advances the run by one period and returns the period snapshot together
// with the net distribution to equity.
func (st *RunState) step(period int, tranches []Tranche, a Assumptions) (PeriodResult, decimal.Decimal) {
	st.Period = period

	var pool PoolStep
	if st.State == PoolActive {
		pool = AmortizePool(st.PoolBalance, a, period, &st.Recoveries)
		st.PoolBalance = pool.ClosingBalance
		if !st.PoolBalance.IsPositive() {
			st.PoolBalance = decimal.Zero
			st.State = PoolExhausted
		}
	}

	// Recoveries keep arriving after the pool is gone.
	recovered := st.Recoveries.Collect(period)
	principalAvailable := pool.Prepayments.Add(pool.Amortization).Add(recovered)

	interest := AllocateInterest(pool.InterestAvailable, tranches, st.Balances, a)
	principal := AllocatePrincipal(principalAvailable, tranches, st.Balances)

	payments := make([]TranchePayment, len(tranches))
	equityCF := decimal.Zero
	hasEquity := false
	for i, t := range tranches {
		payments[i] = TranchePayment{
			Name:          t.Name,
			InterestDue:   interest.Due[i],
			InterestPaid:  interest.Paid[i],
			PrincipalPaid: principal.Paid[i],
			EndingBalance: st.Balances[i],
		}
		if t.IsEquity {
			hasEquity = true
			equityCF = equityCF.Add(interest.Paid[i]).Add(principal.Paid[i])
		}
	}
	if hasEquity {
		equityCF = equityCF.Add(principal.Residual).Add(interest.Residual)
	}

	return PeriodResult{
		Period:             period,
		State:              st.State,
		PoolBalance:        st.PoolBalance,
		Defaults:           pool.Defaults,
		Losses:             pool.Losses,
		Prepayments:        pool.Prepayments,
		RecoveryScheduled:  pool.RecoveryScheduled,
		RecoveriesReceived: recovered,
		InterestIncome:     pool.InterestIncome,
		SeniorFee:          pool.SeniorFee,
		InterestAvailable:  pool.InterestAvailable,
		PrincipalAvailable: principalAvailable,
		ResidualPrincipal:  principal.Residual,
		Payments:           payments,
	}, equityCF
}
