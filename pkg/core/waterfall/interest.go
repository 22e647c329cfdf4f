package waterfall

import (
	"corp_finance/pkg/core/allocate"

	"github.com/shopspring/decimal"
)

// Leg is the allocation of one cash leg across the tranche list. Slices are
// indexed like the tranche list.
type Leg struct {
	Due      []decimal.Decimal
	Paid     []decimal.Decimal
	Residual decimal.Decimal // left over after every tranche, equity included
}

// Total is the sum of Paid.
func (l Leg) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Paid {
		total = total.Add(p)
	}
	return total
}

// CouponDue is balance x (spread + reference rate) x period fraction.
func CouponDue(balance decimal.Decimal, t Tranche, a Assumptions) decimal.Decimal {
	return balance.Mul(t.Spread.Add(a.ReferenceRate)).Mul(a.PeriodFraction())
}

// AllocateInterest pays each rated tranche its coupon top-down, capped at what
// is left. Equity receives whatever interest remains after the last rated
// tranche; with several equity tranches the first in list order takes it.
func AllocateInterest(available decimal.Decimal, tranches []Tranche, balances []decimal.Decimal, a Assumptions) Leg {
	leg := Leg{
		Due:  make([]decimal.Decimal, len(tranches)),
		Paid: make([]decimal.Decimal, len(tranches)),
	}

	claims := make([]allocate.Claim, 0, len(tranches))
	index := make([]int, 0, len(tranches))
	for i, t := range tranches {
		if t.IsEquity {
			continue
		}
		due := CouponDue(balances[i], t, a)
		leg.Due[i] = due
		claims = append(claims, allocate.Claim{Name: t.Name, Seniority: i, Due: due})
		index = append(index, i)
	}

	alloc := allocate.Sequential(available, claims)
	for k, p := range alloc.Payments {
		leg.Paid[index[k]] = p.Paid
	}

	leg.Residual = alloc.Residual()
	for i, t := range tranches {
		if t.IsEquity {
			leg.Due[i] = leg.Residual
			leg.Paid[i] = leg.Residual
			leg.Residual = decimal.Zero
			break
		}
	}
	return leg
}
