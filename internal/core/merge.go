package core

// RowInput is one submitted product row of a day.
type RowInput struct {
	ProductID int64
	Totals    Totals
	// Clear forces the row to zero even when stored data exists.
	Clear bool
}

// ResolveRow applies the preservation policy for a single product row.
//
// An all-zero submission for a product whose stored row has any non-zero
// field keeps the stored values: an untouched form must not wipe data
// entered earlier. Any non-zero submission replaces the stored row.
// The boolean reports whether stored values were kept.
func ResolveRow(in RowInput, stored *Totals) (Totals, bool) {
	if in.Clear {
		return Totals{}, false
	}
	if in.Totals.IsEmpty() && stored != nil && !stored.IsEmpty() {
		return *stored, true
	}
	return in.Totals, false
}

// SumRows returns the field-wise sum of product rows. It fails with a
// ValidationError when a field of the sum exceeds MaxCents.
func SumRows(rows []ProductMetric) (Totals, error) {
	var t Totals
	for _, r := range rows {
		var err error
		if t, err = t.CheckedAdd(r.Totals); err != nil {
			return Totals{}, err
		}
	}
	return t, nil
}
