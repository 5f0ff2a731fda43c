package core

import "math"

// Derived holds the efficiency ratios of a set of totals.
// A nil field means the ratio is undefined because its denominator is zero.
type Derived struct {
	CPL            *float64 `json:"cpl"`
	CPV            *float64 `json:"cpv"`
	ROAS           *float64 `json:"roas"`
	ConversionRate *float64 `json:"conversion_rate"`
}

// Derive computes CPL, CPV, ROAS and conversion rate from totals.
// It is used unchanged for single entries, product rows and monthly sums.
func Derive(t Totals) Derived {
	var d Derived
	if t.Leads > 0 {
		d.CPL = ptr(t.Investment.Float() / float64(t.Leads))
		d.ConversionRate = ptr(float64(t.Sales) / float64(t.Leads) * 100)
	}
	if t.Sales > 0 {
		d.CPV = ptr(t.Investment.Float() / float64(t.Sales))
	}
	if t.Investment.Cents > 0 {
		d.ROAS = ptr(t.Revenue.Float() / t.Investment.Float())
	}
	return d
}

// Rounded returns a copy for display: money ratios to 2 decimals,
// conversion rate to 1 decimal.
func (d Derived) Rounded() Derived {
	return Derived{
		CPL:            roundPtr(d.CPL, 2),
		CPV:            roundPtr(d.CPV, 2),
		ROAS:           roundPtr(d.ROAS, 2),
		ConversionRate: roundPtr(d.ConversionRate, 1),
	}
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	return ptr(Round(*v, places))
}

func ptr(v float64) *float64 { return &v }
