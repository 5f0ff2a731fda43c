package worker

import (
	"context"
	"testing"
	"time"

	"traffic/internal/core"
	sheetsmem "traffic/internal/sheets/memory"
	"traffic/internal/storage/memory"
)

func newReconcilerFixture(t *testing.T, config ReconcilerConfig) (*Reconciler, *sheetsmem.Exporter) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	c, _ := store.CreateClient(ctx, "Acme", core.Money{})
	seedEntry(t, store, c.ID, core.NewDate(2024, 3, 5), core.Totals{Investment: core.Money{Cents: 10_00}}, "")
	seedEntry(t, store, c.ID, core.NewDate(2024, 2, 28), core.Totals{Investment: core.Money{Cents: 20_00}}, "")

	exp := sheetsmem.New()
	r := NewReconciler(NewExportWorker(store, exp, newMetrics()), config)
	r.now = func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }
	return r, exp
}

func waitForRows(t *testing.T, exp *sheetsmem.Exporter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exp.Rows()) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("exported rows = %d, want %d", len(exp.Rows()), n)
}

func TestReconciler_RunOnStart(t *testing.T) {
	r, exp := newReconcilerFixture(t, ReconcilerConfig{RunOnStart: true})
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("second start should fail")
	}
	waitForRows(t, exp, 1)
	if got := exp.Rows()[0].Date.String(); got != "2024-03-05" {
		t.Errorf("exported %s, want only the current month", got)
	}

	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("still running after stop")
	}
	if err := r.Stop(ctx); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestReconciler_Periodic(t *testing.T) {
	r, exp := newReconcilerFixture(t, ReconcilerConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForRows(t, exp, 1)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
