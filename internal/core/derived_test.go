package core

import "testing"

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestDeriveUndefinedOnZeroDenominators(t *testing.T) {
	d := Derive(Totals{})
	if d.CPL != nil || d.CPV != nil || d.ROAS != nil || d.ConversionRate != nil {
		t.Fatalf("all ratios should be undefined, got %+v", d)
	}

	d = Derive(Totals{Investment: Money{100_00}, Revenue: Money{50_00}})
	if d.CPL != nil || d.CPV != nil || d.ConversionRate != nil {
		t.Fatalf("lead/sale ratios should be undefined, got %+v", d)
	}
	if d.ROAS == nil || !approx(*d.ROAS, 0.5) {
		t.Fatalf("ROAS = %v", d.ROAS)
	}

	d = Derive(Totals{Leads: 4, Sales: 1, Revenue: Money{10_00}})
	if d.ROAS != nil {
		t.Fatalf("ROAS should be undefined with zero investment")
	}
	if d.CPL == nil || *d.CPL != 0 {
		t.Fatalf("CPL should be 0 with zero investment, got %v", d.CPL)
	}
}

func TestDeriveValues(t *testing.T) {
	d := Derive(Totals{Investment: Money{300_00}, Leads: 7, Sales: 3, Revenue: Money{900_00}})
	if !approx(*d.CPL, 300.0/7) {
		t.Fatalf("CPL = %v", *d.CPL)
	}
	if !approx(*d.CPV, 100) {
		t.Fatalf("CPV = %v", *d.CPV)
	}
	if !approx(*d.ROAS, 3) {
		t.Fatalf("ROAS = %v", *d.ROAS)
	}
	if !approx(*d.ConversionRate, 300.0/7) {
		t.Fatalf("conversion = %v", *d.ConversionRate)
	}

	r := d.Rounded()
	if *r.CPL != 42.86 || *r.ConversionRate != 42.9 || *r.CPV != 100 || *r.ROAS != 3 {
		t.Fatalf("rounded = cpl %v conv %v", *r.CPL, *r.ConversionRate)
	}
}

func TestRoundedKeepsNil(t *testing.T) {
	r := Derive(Totals{Investment: Money{1}}).Rounded()
	if r.CPL != nil || r.ROAS == nil {
		t.Fatalf("got %+v", r)
	}
}
