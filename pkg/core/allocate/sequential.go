// Package allocate implements priority-ordered cash allocation.
//
// A pool of available cash is handed out to claimants in seniority order. Each
// claimant receives at most what it is owed; whatever is left flows to the next
// claimant. The CLO interest leg, the CLO principal leg and the LBO debt sweep
// all go through Sequential.
package allocate

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Claim is one claimant's demand on the available cash.
type Claim struct {
	Name      string
	Seniority int             // lower pays first; equal ranks keep input order
	Due       decimal.Decimal // amount owed this round; negative is treated as zero
}

// Payment is the outcome for a single claim, in input order.
type Payment struct {
	Name      string
	Due       decimal.Decimal
	Paid      decimal.Decimal
	Shortfall decimal.Decimal
}

// Allocation is the result of a Sequential run.
type Allocation struct {
	Payments  []Payment       // same order as the claims passed in
	Paid      decimal.Decimal // sum of Payments[i].Paid
	Remaining decimal.Decimal // cash left after the last claim
}

// Sequential pays claims senior-first, capping each at min(due, remaining).
// Once the remaining cash reaches zero every later claim is paid zero.
func Sequential(available decimal.Decimal, claims []Claim) Allocation {
	if available.IsNegative() {
		available = decimal.Zero
	}

	order := make([]int, len(claims))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return claims[order[a]].Seniority < claims[order[b]].Seniority
	})

	payments := make([]Payment, len(claims))
	remaining := available
	paid := decimal.Zero

	for _, idx := range order {
		c := claims[idx]
		due := c.Due
		if due.IsNegative() {
			due = decimal.Zero
		}

		pay := decimal.Min(due, remaining)
		remaining = remaining.Sub(pay)
		paid = paid.Add(pay)

		payments[idx] = Payment{
			Name:      c.Name,
			Due:       due,
			Paid:      pay,
			Shortfall: due.Sub(pay),
		}
	}

	return Allocation{
		Payments:  payments,
		Paid:      paid,
		Remaining: remaining,
	}
}

// Residual returns the amount left for a residual claimant (typically equity)
// after the rated claims have been served. It never goes negative.
func (a Allocation) Residual() decimal.Decimal {
	if a.Remaining.IsNegative() {
		return decimal.Zero
	}
	return a.Remaining
}
