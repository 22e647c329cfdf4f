package waterfall

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is matched by every validation failure (errors.Is).
var ErrInvalidInput = errors.New("invalid waterfall input")

// ValidationError names the first invalid field and why it was rejected.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

var one = decimal.NewFromInt(1)

// InUnitInterval reports whether 0 <= v <= 1.
func InUnitInterval(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(one)
}

// Validate checks the whole input before any period runs. Fields are checked
// in a fixed order and the first failure is returned.
func (in Input) Validate() error {
	if len(in.Structure.Tranches) == 0 {
		return invalid("tranches", "capital structure has no tranches")
	}
	if !in.PoolBalance.IsPositive() {
		return invalid("pool_balance", fmt.Sprintf("must be positive, got %s", in.PoolBalance))
	}
	if err := in.Assumptions.Validate(); err != nil {
		return err
	}
	return in.Structure.Validate()
}

// Validate checks tranche notionals and ordering. Every tranche must carry
// notional and equity tranches come after all rated tranches.
func (cs CapitalStructure) Validate() error {
	if len(cs.Tranches) == 0 {
		return invalid("tranches", "capital structure has no tranches")
	}
	equityAt := -1
	for i, t := range cs.Tranches {
		if !t.Notional.IsPositive() {
			return invalid(fmt.Sprintf("tranches[%d].notional", i),
				fmt.Sprintf("tranche %q notional must be positive, got %s", t.Name, t.Notional))
		}
		if t.IsEquity {
			if equityAt < 0 {
				equityAt = i
			}
			continue
		}
		if equityAt >= 0 {
			return invalid(fmt.Sprintf("tranches[%d]", i),
				fmt.Sprintf("rated tranche %q follows equity tranche %q", t.Name, cs.Tranches[equityAt].Name))
		}
	}
	return nil
}

// Validate checks the rate, fee and period fields of a run.
func (a Assumptions) Validate() error {
	if !InUnitInterval(a.CDR) {
		return invalid("cdr", fmt.Sprintf("must be within [0, 1], got %s", a.CDR))
	}
	if !InUnitInterval(a.CPR) {
		return invalid("cpr", fmt.Sprintf("must be within [0, 1], got %s", a.CPR))
	}
	if !InUnitInterval(a.RecoveryRate) {
		return invalid("recovery_rate", fmt.Sprintf("must be within [0, 1], got %s", a.RecoveryRate))
	}
	if a.RecoveryLag < 0 {
		return invalid("recovery_lag", fmt.Sprintf("must not be negative, got %d", a.RecoveryLag))
	}
	if a.NumPeriods <= 0 {
		return invalid("num_periods", fmt.Sprintf("must be positive, got %d", a.NumPeriods))
	}
	if a.PeriodDays <= 0 {
		return invalid("period_days", fmt.Sprintf("must be positive, got %d", a.PeriodDays))
	}
	if r := a.PeriodicCDR(); r.GreaterThan(one) {
		return invalid("cdr", fmt.Sprintf("period rate %s over %d days exceeds 1", r, a.PeriodDays))
	}
	if r := a.PeriodicCPR(); r.GreaterThan(one) {
		return invalid("cpr", fmt.Sprintf("period rate %s over %d days exceeds 1", r, a.PeriodDays))
	}
	if a.SeniorFeeBps.IsNegative() {
		return invalid("senior_fee_bps", fmt.Sprintf("must not be negative, got %s", a.SeniorFeeBps))
	}
	return nil
}
