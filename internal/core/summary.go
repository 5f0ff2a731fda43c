package core

import "sort"

type (
	// AnnotatedEntry is a persisted entry with its derived metrics.
	AnnotatedEntry struct {
		Entry
		Derived Derived
	}

	MonthSummary struct {
		Month    YearMonth
		Totals   Totals
		DayCount int
		Derived  Derived
	}

	ProductSummary struct {
		ProductID   int64
		ProductName string
		Totals      Totals
		Derived     Derived
	}

	// DailyProductMetric is one product row of one day, as stored.
	DailyProductMetric struct {
		Date        Date
		ProductID   int64
		ProductName string
		Totals      Totals
	}

	// Deltas holds month-over-month percentage changes. Nil means the
	// previous value was zero or undefined.
	Deltas struct {
		Investment     *float64 `json:"investment"`
		Revenue        *float64 `json:"revenue"`
		Leads          *float64 `json:"leads"`
		Sales          *float64 `json:"sales"`
		ROAS           *float64 `json:"roas"`
		CPL            *float64 `json:"cpl"`
		ConversionRate *float64 `json:"conversion_rate"`
	}

	MonthComparison struct {
		Current  MonthSummary
		Previous MonthSummary
		Deltas   Deltas
	}
)

// Annotate attaches derived metrics to each entry.
func Annotate(entries []Entry) []AnnotatedEntry {
	out := make([]AnnotatedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AnnotatedEntry{Entry: e, Derived: Derive(e.Totals)})
	}
	return out
}

// SummarizeMonth sums the entries of a month. Entries outside ym are ignored.
func SummarizeMonth(ym YearMonth, entries []Entry) MonthSummary {
	s := MonthSummary{Month: ym}
	for _, e := range entries {
		if !ym.Contains(e.Date) {
			continue
		}
		s.Totals = s.Totals.Add(e.Totals)
		s.DayCount++
	}
	s.Derived = Derive(s.Totals)
	return s
}

// SummarizeProducts groups daily rows per product, ordered by product name.
func SummarizeProducts(rows []DailyProductMetric) []ProductSummary {
	idx := make(map[int64]int)
	var out []ProductSummary
	for _, r := range rows {
		i, ok := idx[r.ProductID]
		if !ok {
			i = len(out)
			idx[r.ProductID] = i
			out = append(out, ProductSummary{ProductID: r.ProductID, ProductName: r.ProductName})
		}
		out[i].Totals = out[i].Totals.Add(r.Totals)
	}
	for i := range out {
		out[i].Derived = Derive(out[i].Totals)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ProductName < out[b].ProductName
	})
	return out
}

// SortDaily orders rows by date then product name.
func SortDaily(rows []DailyProductMetric) {
	sort.SliceStable(rows, func(a, b int) bool {
		if !rows[a].Date.Equal(rows[b].Date.Time) {
			return rows[a].Date.Before(rows[b].Date.Time)
		}
		return rows[a].ProductName < rows[b].ProductName
	})
}

// Delta returns (current-previous)/previous*100, or nil when previous is zero.
func Delta(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	return ptr((current - previous) / previous * 100)
}

// ratioDelta is defined only when both months define the ratio.
func ratioDelta(current, previous *float64) *float64 {
	if current == nil || previous == nil {
		return nil
	}
	return Delta(*current, *previous)
}

// Compare builds the month-over-month comparison of two summaries.
func Compare(current, previous MonthSummary) MonthComparison {
	c, p := current.Totals, previous.Totals
	return MonthComparison{
		Current:  current,
		Previous: previous,
		Deltas: Deltas{
			Investment:     Delta(c.Investment.Float(), p.Investment.Float()),
			Revenue:        Delta(c.Revenue.Float(), p.Revenue.Float()),
			Leads:          Delta(float64(c.Leads), float64(p.Leads)),
			Sales:          Delta(float64(c.Sales), float64(p.Sales)),
			ROAS:           ratioDelta(current.Derived.ROAS, previous.Derived.ROAS),
			CPL:            ratioDelta(current.Derived.CPL, previous.Derived.CPL),
			ConversionRate: ratioDelta(current.Derived.ConversionRate, previous.Derived.ConversionRate),
		},
	}
}
