package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"traffic/internal/amqp"
	"traffic/internal/core"
	"traffic/internal/metrics"
	"traffic/internal/ports"
	"traffic/internal/sheets"
	sheetsmem "traffic/internal/sheets/memory"
	"traffic/internal/storage/memory"
)

type failingExporter struct{ err error }

func (f failingExporter) UpsertEntry(context.Context, sheets.ExportRow) (string, error) {
	return "", f.err
}

func (f failingExporter) DeleteEntry(context.Context, int64, core.Date) error { return f.err }

func seedEntry(t *testing.T, store *memory.Store, clientID int64, d core.Date, totals core.Totals, note string) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := store.WithinTx(ctx, func(tx ports.EntryTx) error {
		var err error
		if id, err = tx.EnsureEntry(ctx, clientID, d, note); err != nil {
			return err
		}
		return tx.UpdateEntryTotals(ctx, id, totals)
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return id
}

func newMetrics() *metrics.Collector {
	return metrics.NewWithRegistry(prometheus.NewRegistry())
}

func TestHandleSavedAndDeleted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c, _ := store.CreateClient(ctx, "Acme", core.Money{})
	day := core.NewDate(2024, 3, 5)
	id := seedEntry(t, store, c.ID, day, core.Totals{Investment: core.Money{Cents: 150_00}, Leads: 3}, "promo")

	exp := sheetsmem.New()
	m := newMetrics()
	w := NewExportWorker(store, exp, m)

	saved := amqp.NewEntryEventMessage(amqp.EventEntrySaved, id, c.ID, day.String())
	if err := w.HandleEvent(ctx, saved); err != nil {
		t.Fatalf("saved: %v", err)
	}
	rows := exp.Rows()
	if len(rows) != 1 || rows[0].ClientName != "Acme" || rows[0].Note != "promo" || rows[0].Totals.Leads != 3 {
		t.Fatalf("exported rows = %+v", rows)
	}

	if err := store.DeleteEntry(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	deleted := amqp.NewEntryEventMessage(amqp.EventEntryDeleted, id, c.ID, day.String())
	if err := w.HandleEvent(ctx, deleted); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if rows := exp.Rows(); len(rows) != 0 {
		t.Fatalf("rows after delete = %+v", rows)
	}

	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues(amqp.EventEntrySaved, "ok")); got != 1 {
		t.Errorf("saved ok = %v", got)
	}
	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues(amqp.EventEntryDeleted, "ok")); got != 1 {
		t.Errorf("deleted ok = %v", got)
	}
}

func TestHandleEventDiscards(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c, _ := store.CreateClient(ctx, "Acme", core.Money{})
	other, _ := store.CreateClient(ctx, "Other", core.Money{})
	day := core.NewDate(2024, 3, 5)
	id := seedEntry(t, store, c.ID, day, core.Totals{}, "")

	m := newMetrics()
	w := NewExportWorker(store, sheetsmem.New(), m)

	tests := []struct {
		name string
		msg  *amqp.EntryEventMessage
	}{
		{"entry gone", amqp.NewEntryEventMessage(amqp.EventEntrySaved, 999, c.ID, day.String())},
		{"client mismatch", amqp.NewEntryEventMessage(amqp.EventEntrySaved, id, other.ID, day.String())},
		{"bad date", amqp.NewEntryEventMessage(amqp.EventEntryDeleted, id, c.ID, "05/03/2024")},
		{"unknown type", &amqp.EntryEventMessage{Type: "entry.touched", EntryID: id, ClientID: c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleEvent(ctx, tt.msg); !errors.Is(err, amqp.ErrDiscard) {
				t.Fatalf("err = %v, want ErrDiscard", err)
			}
		})
	}
	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues(amqp.EventEntrySaved, "discarded")); got != 2 {
		t.Errorf("discarded saved events = %v", got)
	}
}

func TestHandleEventExporterFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c, _ := store.CreateClient(ctx, "Acme", core.Money{})
	day := core.NewDate(2024, 3, 5)
	id := seedEntry(t, store, c.ID, day, core.Totals{}, "")

	boom := errors.New("quota exceeded")
	m := newMetrics()
	w := NewExportWorker(store, failingExporter{err: boom}, m)

	err := w.HandleEvent(ctx, amqp.NewEntryEventMessage(amqp.EventEntrySaved, id, c.ID, day.String()))
	if !errors.Is(err, boom) || errors.Is(err, amqp.ErrDiscard) {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues(amqp.EventEntrySaved, "error")); got != 1 {
		t.Errorf("error count = %v", got)
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a, _ := store.CreateClient(ctx, "Acme", core.Money{})
	b, _ := store.CreateClient(ctx, "Beta", core.Money{})
	gone, _ := store.CreateClient(ctx, "Gone", core.Money{})
	seedEntry(t, store, a.ID, core.NewDate(2024, 3, 1), core.Totals{Leads: 1}, "")
	seedEntry(t, store, a.ID, core.NewDate(2024, 3, 2), core.Totals{Leads: 2}, "")
	seedEntry(t, store, a.ID, core.NewDate(2024, 4, 1), core.Totals{Leads: 3}, "")
	seedEntry(t, store, b.ID, core.NewDate(2024, 3, 9), core.Totals{Leads: 4}, "")
	seedEntry(t, store, gone.ID, core.NewDate(2024, 3, 9), core.Totals{Leads: 5}, "")
	if err := store.DeactivateClient(ctx, gone.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, nil)
	if err := w.Backfill(ctx, core.YearMonth{Year: 2024, Month: 3}); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	rows := exp.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[2].ClientName != "Beta" || rows[2].Totals.Leads != 4 {
		t.Errorf("last row = %+v", rows[2])
	}

	failing := NewExportWorker(store, failingExporter{err: errors.New("down")}, nil)
	if err := failing.Backfill(ctx, core.YearMonth{Year: 2024, Month: 3}); err == nil {
		t.Fatal("expected backfill error")
	}
}
