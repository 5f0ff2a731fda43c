package http

import (
	"traffic/internal/core"
	"traffic/internal/services"
)

// JSON shapes of the API. Derived values are rounded for display; the
// stored totals are returned unrounded.

type totalsView struct {
	Investment core.Money `json:"investment"`
	Leads      int64      `json:"leads"`
	Sales      int64      `json:"sales"`
	Revenue    core.Money `json:"revenue"`
}

func newTotalsView(t core.Totals) totalsView {
	return totalsView{Investment: t.Investment, Leads: t.Leads, Sales: t.Sales, Revenue: t.Revenue}
}

type clientView struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	MonthlyBudget core.Money `json:"monthly_budget"`
	Active        bool       `json:"active"`
}

func newClientView(c core.Client) clientView {
	return clientView{ID: c.ID, Name: c.Name, MonthlyBudget: c.MonthlyBudget, Active: c.Active}
}

type productView struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

func newProductView(p core.Product) productView {
	return productView{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Active: p.Active}
}

type rowView struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	totalsView
	Derived core.Derived `json:"derived"`
}

type entryView struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Date     string `json:"date"`
	totalsView
	Note     string       `json:"note"`
	Derived  core.Derived `json:"derived"`
	Products []rowView    `json:"products,omitempty"`
}

func newEntryView(e core.Entry, rows []core.ProductMetric) entryView {
	v := entryView{
		ID:         e.ID,
		ClientID:   e.ClientID,
		Date:       e.Date.String(),
		totalsView: newTotalsView(e.Totals),
		Note:       e.Note,
		Derived:    core.Derive(e.Totals).Rounded(),
	}
	for _, r := range rows {
		v.Products = append(v.Products, rowView{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			totalsView:  newTotalsView(r.Totals),
			Derived:     core.Derive(r.Totals).Rounded(),
		})
	}
	return v
}

type saveView struct {
	Entry     entryView `json:"entry"`
	Mode      string    `json:"mode"`
	Preserved []int64   `json:"preserved"`
}

func newSaveView(res services.SaveResult) saveView {
	preserved := res.Preserved
	if preserved == nil {
		preserved = []int64{}
	}
	return saveView{Entry: newEntryView(res.Entry, res.Rows), Mode: res.Mode, Preserved: preserved}
}

type summaryView struct {
	Month    string       `json:"month"`
	Totals   totalsView   `json:"totals"`
	DayCount int          `json:"day_count"`
	Derived  core.Derived `json:"derived"`
}

func newSummaryView(s core.MonthSummary) summaryView {
	return summaryView{
		Month:    s.Month.String(),
		Totals:   newTotalsView(s.Totals),
		DayCount: s.DayCount,
		Derived:  s.Derived.Rounded(),
	}
}

type productSummaryView struct {
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name"`
	Totals      totalsView   `json:"totals"`
	Derived     core.Derived `json:"derived"`
}

func newProductSummaryViews(in []core.ProductSummary) []productSummaryView {
	out := make([]productSummaryView, 0, len(in))
	for _, p := range in {
		out = append(out, productSummaryView{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Totals:      newTotalsView(p.Totals),
			Derived:     p.Derived.Rounded(),
		})
	}
	return out
}

type dailyView struct {
	Date        string `json:"date"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	totalsView
	Derived core.Derived `json:"derived"`
}

func newDailyViews(in []core.DailyProductMetric) []dailyView {
	out := make([]dailyView, 0, len(in))
	for _, d := range in {
		out = append(out, dailyView{
			Date:        d.Date.String(),
			ProductID:   d.ProductID,
			ProductName: d.ProductName,
			totalsView:  newTotalsView(d.Totals),
			Derived:     core.Derive(d.Totals).Rounded(),
		})
	}
	return out
}

type dashboardView struct {
	Client   clientView           `json:"client"`
	Current  summaryView          `json:"current"`
	Previous summaryView          `json:"previous"`
	Deltas   core.Deltas          `json:"deltas"`
	Products []productSummaryView `json:"products"`
	Budget   core.BudgetStatus    `json:"budget"`
}

func newDashboardView(d services.Dashboard) dashboardView {
	st := d.Budget
	if st.Ratio != nil {
		r := core.Round(*st.Ratio, 4)
		st.Ratio = &r
	}
	st.Display = core.Round(st.Display, 4)
	return dashboardView{
		Client:   newClientView(d.Client),
		Current:  newSummaryView(d.Comparison.Current),
		Previous: newSummaryView(d.Comparison.Previous),
		Deltas:   roundDeltas(d.Comparison.Deltas),
		Products: newProductSummaryViews(d.Products),
		Budget:   st,
	}
}

func roundDeltas(d core.Deltas) core.Deltas {
	r := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		x := core.Round(*v, 1)
		return &x
	}
	return core.Deltas{
		Investment:     r(d.Investment),
		Revenue:        r(d.Revenue),
		Leads:          r(d.Leads),
		Sales:          r(d.Sales),
		ROAS:           r(d.ROAS),
		CPL:            r(d.CPL),
		ConversionRate: r(d.ConversionRate),
	}
}
