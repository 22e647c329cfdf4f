package waterfall

import (
	"github.com/shopspring/decimal"
)

// PendingRecovery is recovery cash waiting for its due period.
type PendingRecovery struct {
	DuePeriod int             `json:"due_period"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecoveryQueue defers recovered cash by a fixed number of periods.
// Due periods arrive in non-decreasing order as the run advances, so a plain
// slice with filter-and-drain is enough at tens of periods.
type RecoveryQueue struct {
	pending []PendingRecovery
}

// Schedule appends a recovery due at duePeriod. Zero amounts are not queued.
func (q *RecoveryQueue) Schedule(duePeriod int, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	q.pending = append(q.pending, PendingRecovery{DuePeriod: duePeriod, Amount: amount})
}

// Collect removes every entry due at period and returns their sum.
// Entries due later stay queued; the result is zero if nothing is due.
func (q *RecoveryQueue) Collect(period int) decimal.Decimal {
	total := decimal.Zero
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.DuePeriod == period {
			total = total.Add(p.Amount)
			continue
		}
		kept = append(kept, p)
	}
	q.pending = kept
	return total
}

// Pending returns the total still waiting to be released.
func (q *RecoveryQueue) Pending() decimal.Decimal {
	total := decimal.Zero
	for _, p := range q.pending {
		total = total.Add(p.Amount)
	}
	return total
}

// Len is the number of queued entries.
func (q *RecoveryQueue) Len() int { return len(q.pending) }

// Entries returns a copy of the queue contents.
func (q *RecoveryQueue) Entries() []PendingRecovery {
	out := make([]PendingRecovery, len(q.pending))
	copy(out, q.pending)
	return out
}
