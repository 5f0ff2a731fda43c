package core

import "math/bits"

// Band classifies month-to-date spend against the monthly budget.
type Band string

const (
	BandUnset    Band = "unset"
	BandNormal   Band = "normal"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
	BandExceeded Band = "exceeded"
)

type BudgetStatus struct {
	Invested Money    `json:"invested"`
	Budget   Money    `json:"budget"`
	Ratio    *float64 `json:"ratio"`
	// Display is Ratio clamped to [0, 1], suitable for a progress bar.
	Display float64 `json:"display"`
	Band    Band    `json:"band"`
}

// Consumption compares invested against budget.
// A zero budget is "not set" and yields a nil ratio with BandUnset.
// Band thresholds are exclusive lower bounds evaluated on cents, so
// exactly 80% is a warning and exactly 100% is critical.
func Consumption(invested, budget Money) BudgetStatus {
	st := BudgetStatus{Invested: invested, Budget: budget, Band: BandUnset}
	if budget.Cents <= 0 {
		return st
	}
	r := invested.Float() / budget.Float()
	st.Ratio = &r
	st.Display = min(max(r, 0), 1)

	inv, bud := invested.Cents, budget.Cents
	switch {
	case inv < 0:
		st.Band = BandNormal
	case inv > bud:
		st.Band = BandExceeded
	case scaledGreater(inv, 10, bud, 8):
		st.Band = BandCritical
	case scaledGreater(inv, 10, bud, 6):
		st.Band = BandWarning
	default:
		st.Band = BandNormal
	}
	return st
}

// scaledGreater reports a*ka > b*kb for non-negative a and b, using
// 128-bit products so large amounts cannot overflow.
func scaledGreater(a int64, ka uint64, b int64, kb uint64) bool {
	hiA, loA := bits.Mul64(uint64(a), ka)
	hiB, loB := bits.Mul64(uint64(b), kb)
	return hiA > hiB || (hiA == hiB && loA > loB)
}
