package waterfall

import (
	"github.com/shopspring/decimal"
)

// PoolStep is the collateral activity of one period.
type PoolStep struct {
	OpeningBalance    decimal.Decimal
	Defaults          decimal.Decimal
	Losses            decimal.Decimal
	RecoveryScheduled decimal.Decimal // queued for period + lag, not cash this period
	Prepayments       decimal.Decimal
	Amortization      decimal.Decimal // scheduled amortization; bullet collateral pays none
	InterestIncome    decimal.Decimal
	SeniorFee         decimal.Decimal
	InterestAvailable decimal.Decimal // interest income net of the senior fee, floored at zero
	ClosingBalance    decimal.Decimal
}

// AmortizePool runs one period of defaults, prepayments and interest on the
// pool and schedules the recovery on the defaults into queue.
func AmortizePool(balance decimal.Decimal, a Assumptions, period int, queue *RecoveryQueue) PoolStep {
	step := PoolStep{OpeningBalance: balance}
	if !balance.IsPositive() {
		step.OpeningBalance = decimal.Zero
		return step
	}

	frac := a.PeriodFraction()

	step.Defaults = decimal.Min(balance, balance.Mul(a.PeriodicCDR()))
	step.Losses = step.Defaults.Mul(one.Sub(a.RecoveryRate))
	step.RecoveryScheduled = step.Defaults.Mul(a.RecoveryRate)
	queue.Schedule(period+a.RecoveryLag, step.RecoveryScheduled)

	survivor := balance.Sub(step.Defaults)
	if survivor.IsPositive() {
		step.Prepayments = decimal.Min(survivor, survivor.Mul(a.PeriodicCPR()))
	}

	step.InterestIncome = balance.Mul(a.WeightedAvgSpread.Add(a.ReferenceRate)).Mul(frac)
	step.SeniorFee = balance.Mul(a.SeniorFeeRate()).Mul(frac)
	step.InterestAvailable = decimal.Max(decimal.Zero, step.InterestIncome.Sub(step.SeniorFee))

	step.ClosingBalance = decimal.Max(decimal.Zero,
		balance.Sub(step.Defaults).Sub(step.Prepayments).Sub(step.Amortization))

	return step
}
