package core

import "testing"

func TestConsumptionBands(t *testing.T) {
	cases := []struct {
		invested, budget int64
		band             Band
		display          float64
	}{
		{0, 0, BandUnset, 0},
		{500_00, 0, BandUnset, 0},
		{0, 1000_00, BandNormal, 0},
		{600_00, 1000_00, BandNormal, 0.6},
		{600_01, 1000_00, BandWarning, 0.60001},
		{800_00, 1000_00, BandWarning, 0.8},
		{800_01, 1000_00, BandCritical, 0.80001},
		{1000_00, 1000_00, BandCritical, 1},
		{1500_00, 1000_00, BandExceeded, 1},
	}
	for _, tc := range cases {
		st := Consumption(Money{tc.invested}, Money{tc.budget})
		if st.Band != tc.band {
			t.Fatalf("%d/%d: band %s, want %s", tc.invested, tc.budget, st.Band, tc.band)
		}
		if !approx(st.Display, tc.display) {
			t.Fatalf("%d/%d: display %v, want %v", tc.invested, tc.budget, st.Display, tc.display)
		}
	}
}

func TestConsumptionBandsLargeAmounts(t *testing.T) {
	cases := []struct {
		invested, budget int64
		band             Band
	}{
		{100_000_000_000_000_000, 1_500_000_000_000_000_000, BandNormal},
		{MaxCents * 31, MaxCents * 31, BandCritical},
		{MaxCents*31 - 1, MaxCents * 40, BandWarning},
		{MaxCents * 31, MaxCents, BandExceeded},
		{-1, 1000_00, BandNormal},
	}
	for _, tc := range cases {
		st := Consumption(Money{tc.invested}, Money{tc.budget})
		if st.Band != tc.band {
			t.Fatalf("%d/%d: band %s, want %s", tc.invested, tc.budget, st.Band, tc.band)
		}
	}
}

func TestConsumptionRatioUnclamped(t *testing.T) {
	st := Consumption(Money{1500_00}, Money{1000_00})
	if st.Ratio == nil || !approx(*st.Ratio, 1.5) {
		t.Fatalf("ratio = %v", st.Ratio)
	}
	if st.Invested.Cents != 1500_00 || st.Budget.Cents != 1000_00 {
		t.Fatalf("raw values not exposed: %+v", st)
	}
	if Consumption(Money{1}, Money{}).Ratio != nil {
		t.Fatalf("ratio should be nil without a budget")
	}
}
