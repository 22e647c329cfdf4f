package waterfall

import (
	"corp_finance/pkg/core/allocate"

	"github.com/shopspring/decimal"
)

// AllocatePrincipal pays down tranche balances sequentially. Rated tranches
// are retired in list order first; equity is then repaid up to its own
// balance. Anything left is returned as Leg.Residual for the caller to treat
// as equity residual. balances is updated in place.
func AllocatePrincipal(available decimal.Decimal, tranches []Tranche, balances []decimal.Decimal) Leg {
	leg := Leg{
		Due:  make([]decimal.Decimal, len(tranches)),
		Paid: make([]decimal.Decimal, len(tranches)),
	}

	remaining := available
	for _, equityPass := range []bool{false, true} {
		claims := make([]allocate.Claim, 0, len(tranches))
		index := make([]int, 0, len(tranches))
		for i, t := range tranches {
			if t.IsEquity != equityPass {
				continue
			}
			leg.Due[i] = balances[i]
			claims = append(claims, allocate.Claim{Name: t.Name, Seniority: i, Due: balances[i]})
			index = append(index, i)
		}

		alloc := allocate.Sequential(remaining, claims)
		for k, p := range alloc.Payments {
			i := index[k]
			leg.Paid[i] = p.Paid
			balances[i] = balances[i].Sub(p.Paid)
		}
		remaining = alloc.Residual()
	}

	leg.Residual = remaining
	return leg
}
