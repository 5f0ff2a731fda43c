package sheets

import (
	"context"
	"strconv"

	"traffic/internal/core"
)

// Header is the first row of every export sheet.
var Header = []any{
	"Client ID", "Client", "Date",
	"Investment", "Leads", "Sales", "Revenue",
	"CPL", "CPV", "ROAS", "Conversion %", "Note",
}

// ExportRow is one daily entry as it appears in a spreadsheet. Rows are
// keyed by client ID and date.
type ExportRow struct {
	ClientID   int64
	ClientName string
	Date       core.Date
	Totals     core.Totals
	Note       string
}

func NewExportRow(c core.Client, e core.Entry) ExportRow {
	return ExportRow{
		ClientID:   c.ID,
		ClientName: c.Name,
		Date:       e.Date,
		Totals:     e.Totals,
		Note:       e.Note,
	}
}

// Key identifies the row regardless of client renames.
func (r ExportRow) Key() string {
	return strconv.FormatInt(r.ClientID, 10) + "|" + r.Date.String()
}

// Values renders the row cells in Header order. Undefined ratios are blank.
func (r ExportRow) Values() []any {
	d := core.Derive(r.Totals).Rounded()
	return []any{
		r.ClientID,
		r.ClientName,
		r.Date.String(),
		r.Totals.Investment.Float(),
		r.Totals.Leads,
		r.Totals.Sales,
		r.Totals.Revenue.Float(),
		cell(d.CPL),
		cell(d.CPV),
		cell(d.ROAS),
		cell(d.ConversionRate),
		r.Note,
	}
}

func cell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// EntryExporter mirrors daily entries into an external sheet.
type EntryExporter interface {
	// UpsertEntry writes the row, replacing an existing row with the same key.
	UpsertEntry(ctx context.Context, row ExportRow) (rowRef string, err error)
	// DeleteEntry removes the row for the client and date. Missing rows are not an error.
	DeleteEntry(ctx context.Context, clientID int64, date core.Date) error
}
