package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"traffic/internal/amqp"
	"traffic/internal/core"
	"traffic/internal/metrics"
	"traffic/internal/sheets"
)

// EntrySource is the read side the worker needs from storage.
type EntrySource interface {
	GetClient(ctx context.Context, id int64) (core.Client, error)
	ListClients(ctx context.Context, activeOnly bool) ([]core.Client, error)
	GetEntry(ctx context.Context, id int64) (core.Entry, error)
	ListEntriesForMonth(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.Entry, error)
}

// ExportWorker mirrors entry events into a spreadsheet. Messages carry only
// identifiers, so saved entries are always re-read from storage.
type ExportWorker struct {
	store    EntrySource
	exporter sheets.EntryExporter
	metrics  *metrics.Collector
}

func NewExportWorker(store EntrySource, exporter sheets.EntryExporter, m *metrics.Collector) *ExportWorker {
	return &ExportWorker{store: store, exporter: exporter, metrics: m}
}

// HandleEvent processes one message. Errors wrapping amqp.ErrDiscard mark
// messages that can never succeed.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.EntryEventMessage) error {
	var err error
	switch msg.Type {
	case amqp.EventEntrySaved:
		err = w.handleSaved(ctx, msg)
	case amqp.EventEntryDeleted:
		err = w.handleDeleted(ctx, msg)
	default:
		err = fmt.Errorf("unknown event type %q: %w", msg.Type, amqp.ErrDiscard)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, amqp.ErrDiscard):
		outcome = "discarded"
	case err != nil:
		outcome = "error"
	}
	w.metrics.ExportProcessed(msg.Type, outcome)
	return err
}

func (w *ExportWorker) handleSaved(ctx context.Context, msg *amqp.EntryEventMessage) error {
	entry, err := w.store.GetEntry(ctx, msg.EntryID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted after the event was published; its delete event follows
		return fmt.Errorf("entry %d no longer exists: %w", msg.EntryID, amqp.ErrDiscard)
	}
	if err != nil {
		return fmt.Errorf("get entry %d: %w", msg.EntryID, err)
	}
	if entry.ClientID != msg.ClientID {
		return fmt.Errorf("entry %d belongs to client %d, event says %d: %w",
			entry.ID, entry.ClientID, msg.ClientID, amqp.ErrDiscard)
	}
	client, err := w.store.GetClient(ctx, entry.ClientID)
	if err != nil {
		return fmt.Errorf("get client %d: %w", entry.ClientID, err)
	}

	ref, err := w.exporter.UpsertEntry(ctx, sheets.NewExportRow(client, entry))
	if err != nil {
		return fmt.Errorf("export entry %d: %w", entry.ID, err)
	}
	slog.InfoContext(ctx, "Exported entry",
		"entry_id", entry.ID,
		"client_id", entry.ClientID,
		"date", entry.Date.String(),
		"sheets_ref", ref)
	return nil
}

func (w *ExportWorker) handleDeleted(ctx context.Context, msg *amqp.EntryEventMessage) error {
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		return fmt.Errorf("delete event for entry %d: %v: %w", msg.EntryID, err, amqp.ErrDiscard)
	}
	if err := w.exporter.DeleteEntry(ctx, msg.ClientID, date); err != nil {
		return fmt.Errorf("remove exported entry %d: %w", msg.EntryID, err)
	}
	slog.InfoContext(ctx, "Removed exported entry",
		"entry_id", msg.EntryID,
		"client_id", msg.ClientID,
		"date", msg.Date)
	return nil
}

// Backfill re-exports every entry of the month for all active clients. The
// worker runs it at startup to recover events missed while it was down.
func (w *ExportWorker) Backfill(ctx context.Context, ym core.YearMonth) error {
	clients, err := w.store.ListClients(ctx, true)
	if err != nil {
		return fmt.Errorf("list clients for backfill: %w", err)
	}

	exported, failed := 0, 0
	for _, c := range clients {
		entries, err := w.store.ListEntriesForMonth(ctx, c.ID, ym)
		if err != nil {
			return fmt.Errorf("list entries of client %d for %s: %w", c.ID, ym, err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := w.exporter.UpsertEntry(ctx, sheets.NewExportRow(c, e)); err != nil {
				slog.ErrorContext(ctx, "Failed to export entry during backfill",
					"entry_id", e.ID, "client_id", c.ID, "error", err)
				w.metrics.ExportProcessed("backfill", "error")
				failed++
				continue
			}
			w.metrics.ExportProcessed("backfill", "ok")
			exported++
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"month", ym.String(),
		"clients", len(clients),
		"exported", exported,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("backfill %s: %d of %d entries failed", ym, failed, exported+failed)
	}
	return nil
}
