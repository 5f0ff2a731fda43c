package sheets

import (
	"testing"

	"traffic/internal/core"
)

func TestExportRowValues(t *testing.T) {
	row := NewExportRow(
		core.Client{ID: 3, Name: "Acme"},
		core.Entry{
			Date:   core.NewDate(2024, 3, 5),
			Totals: core.Totals{Investment: core.Money{Cents: 100_00}, Leads: 3, Sales: 1, Revenue: core.Money{Cents: 250_00}},
			Note:   "launch",
		},
	)
	got := row.Values()
	if len(got) != len(Header) {
		t.Fatalf("row has %d cells, header %d", len(got), len(Header))
	}
	want := []any{int64(3), "Acme", "2024-03-05", 100.0, int64(3), int64(1), 250.0, 33.33, 100.0, 2.5, 33.3, "launch"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d (%v) = %#v, want %#v", i, Header[i], got[i], want[i])
		}
	}
	if row.Key() != "3|2024-03-05" {
		t.Errorf("key = %q", row.Key())
	}
}

func TestExportRowBlankRatios(t *testing.T) {
	got := ExportRow{ClientID: 1, Date: core.NewDate(2024, 1, 1)}.Values()
	for _, i := range []int{7, 8, 9, 10} {
		if got[i] != "" {
			t.Errorf("cell %v = %#v, want blank", Header[i], got[i])
		}
	}
}
