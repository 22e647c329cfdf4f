package waterfall

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRecoveryQueue(t *testing.T) {
	var q RecoveryQueue
	q.Schedule(3, d("100"))
	q.Schedule(4, d("50"))
	q.Schedule(3, d("25"))
	q.Schedule(5, decimal.Zero) // not queued

	if q.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", q.Len())
	}
	if got := q.Collect(2); !got.IsZero() {
		t.Errorf("Collect(2) = %s, want 0", got)
	}
	if got := q.Collect(3); !got.Equal(d("125")) {
		t.Errorf("Collect(3) = %s, want 125", got)
	}
	// released exactly once
	if got := q.Collect(3); !got.IsZero() {
		t.Errorf("second Collect(3) = %s, want 0", got)
	}
	if got := q.Pending(); !got.Equal(d("50")) {
		t.Errorf("Pending = %s, want 50", got)
	}
	if got := q.Collect(4); !got.Equal(d("50")) {
		t.Errorf("Collect(4) = %s, want 50", got)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, %d left", q.Len())
	}
}

func TestAmortizePool_ZeroLagReleasesSamePeriod(t *testing.T) {
	a := referenceAssumptions()
	a.RecoveryLag = 0

	var q RecoveryQueue
	step := AmortizePool(million(900), a, 7, &q)

	entries := q.Entries()
	if len(entries) != 1 || entries[0].DuePeriod != 7 {
		t.Fatalf("expected one entry due at 7, got %+v", entries)
	}
	if got := q.Collect(7); !got.Equal(step.RecoveryScheduled) {
		t.Errorf("Collect(7) = %s, want %s", got, step.RecoveryScheduled)
	}
}

func TestAmortizePool_EmptyPool(t *testing.T) {
	var q RecoveryQueue
	step := AmortizePool(decimal.Zero, referenceAssumptions(), 1, &q)
	if !step.Defaults.IsZero() || !step.InterestAvailable.IsZero() || !step.ClosingBalance.IsZero() {
		t.Errorf("expected zero step, got %+v", step)
	}
	if q.Len() != 0 {
		t.Errorf("nothing should be scheduled from an empty pool")
	}
}

func TestAmortizePool_FeeAboveIncome(t *testing.T) {
	a := referenceAssumptions()
	a.SeniorFeeBps = d("5000") // 50% fee swamps 8.5% income

	var q RecoveryQueue
	step := AmortizePool(million(100), a, 1, &q)
	if !step.InterestAvailable.IsZero() {
		t.Errorf("interest available = %s, want 0", step.InterestAvailable)
	}
}

func TestAmortizePool_LongPeriodCappedAtBalance(t *testing.T) {
	// 720-day period doubles the annual rates; defaults cannot exceed the pool
	a := referenceAssumptions()
	a.CDR = d("1")
	a.PeriodDays = 720

	var q RecoveryQueue
	step := AmortizePool(million(900), a, 1, &q)
	if !step.Defaults.Equal(million(900)) {
		t.Errorf("defaults = %s, want 900M", step.Defaults)
	}
	if !step.RecoveryScheduled.Equal(million(360)) || !step.Losses.Equal(million(540)) {
		t.Errorf("recovery %s loss %s, want 360M / 540M", step.RecoveryScheduled, step.Losses)
	}
	if !step.Prepayments.IsZero() || !step.ClosingBalance.IsZero() {
		t.Errorf("prepayments %s closing %s, want 0 / 0", step.Prepayments, step.ClosingBalance)
	}

	a.CDR = decimal.Zero
	a.CPR = d("0.9")
	step = AmortizePool(million(900), a, 1, &q)
	if !step.Prepayments.Equal(million(900)) {
		t.Errorf("prepayments = %s, want 900M", step.Prepayments)
	}
}
