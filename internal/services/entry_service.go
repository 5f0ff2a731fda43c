package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"traffic/internal/core"
	"traffic/internal/metrics"
	"traffic/internal/ports"
)

const (
	ModeProducts  = "products"
	ModeAggregate = "aggregate"
)

type (
	// SaveEntryRequest is one submitted day. With no Products the client is
	// treated as undifferentiated and Investment is the day's aggregate spend;
	// otherwise Investment is ignored and totals come from the rows.
	SaveEntryRequest struct {
		ClientID   int64
		Date       core.Date
		Investment core.Money
		Note       string
		Products   []core.RowInput
	}

	SaveResult struct {
		Entry     core.Entry
		Rows      []core.ProductMetric
		Mode      string
		Preserved []int64 // product ids whose stored rows were kept
	}

	// EntryView is an entry with its product rows, for pre-filling a form.
	EntryView struct {
		Entry core.Entry
		Rows  []core.ProductMetric
	}
)

// EntryService merges submitted days into persisted entries.
type EntryService struct {
	store     ports.Store
	publisher EventPublisher
	metrics   *metrics.Collector
	locks     *keyLock
	listeners []ChangeListener
}

// NewEntryService wires the merge engine. publisher and m may be nil.
func NewEntryService(store ports.Store, publisher EventPublisher, m *metrics.Collector) *EntryService {
	return &EntryService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		locks:     newKeyLock(),
	}
}

// OnChange registers a listener notified after every save or delete.
func (s *EntryService) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// SaveEntry validates the request and applies it atomically.
func (s *EntryService) SaveEntry(ctx context.Context, req SaveEntryRequest) (SaveResult, error) {
	if err := validateSave(req); err != nil {
		return SaveResult{}, err
	}
	req.Note = strings.TrimSpace(req.Note)

	if _, err := s.store.GetClient(ctx, req.ClientID); err != nil {
		return SaveResult{}, err
	}

	names := map[int64]string{}
	if len(req.Products) > 0 {
		products, err := s.store.ListProducts(ctx, req.ClientID, false)
		if err != nil {
			return SaveResult{}, fmt.Errorf("load products of client %d: %w", req.ClientID, err)
		}
		for _, p := range products {
			names[p.ID] = p.Name
		}
		for _, row := range req.Products {
			if _, ok := names[row.ProductID]; !ok {
				return SaveResult{}, &core.ConstraintViolation{
					Reason: fmt.Sprintf("product %d does not belong to client %d", row.ProductID, req.ClientID),
				}
			}
		}
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d|%s", req.ClientID, req.Date))
	defer unlock()

	var res SaveResult
	err := s.store.WithinTx(ctx, func(tx ports.EntryTx) error {
		id, err := tx.EnsureEntry(ctx, req.ClientID, req.Date, req.Note)
		if err != nil {
			return err
		}

		if len(req.Products) > 0 {
			res.Mode = ModeProducts
			res.Preserved, err = mergeProducts(ctx, tx, id, req.Products, names)
		} else {
			res.Mode = ModeAggregate
			err = mergeAggregate(ctx, tx, id, req.Investment)
		}
		if err != nil {
			return err
		}

		if res.Entry, err = tx.GetEntry(ctx, id); err != nil {
			return err
		}
		res.Rows, err = tx.ListProductMetrics(ctx, id)
		return err
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("save entry (client %d, %s): %w", req.ClientID, req.Date, err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"entry_id", res.Entry.ID,
		"client_id", req.ClientID,
		"date", req.Date.String(),
		"mode", res.Mode,
		"preserved", len(res.Preserved))

	s.metrics.EntrySaved(res.Mode, len(res.Preserved))
	s.notify(req.ClientID)
	if s.publisher != nil {
		if err := s.publisher.PublishEntrySaved(ctx, res.Entry.ID, req.ClientID, req.Date); err != nil {
			// the entry is committed; the export catches up on the next save
			slog.ErrorContext(ctx, "Failed to publish entry saved event",
				"entry_id", res.Entry.ID, "error", err)
		}
	}
	return res, nil
}

// mergeProducts resolves each submitted row against its stored counterpart,
// replaces every row of the entry and stores the sum as the entry totals.
func mergeProducts(ctx context.Context, tx ports.EntryTx, entryID int64, in []core.RowInput, names map[int64]string) ([]int64, error) {
	stored, err := tx.ListProductMetrics(ctx, entryID)
	if err != nil {
		return nil, err
	}
	prior := make(map[int64]core.Totals, len(stored))
	for _, r := range stored {
		prior[r.ProductID] = r.Totals
	}

	var preserved []int64
	rows := make([]core.ProductMetric, 0, len(in))
	for _, row := range in {
		var storedTotals *core.Totals
		if t, ok := prior[row.ProductID]; ok {
			storedTotals = &t
		}
		totals, kept := core.ResolveRow(row, storedTotals)
		if kept {
			preserved = append(preserved, row.ProductID)
		}
		rows = append(rows, core.ProductMetric{
			EntryID:     entryID,
			ProductID:   row.ProductID,
			ProductName: names[row.ProductID],
			Totals:      totals,
		})
	}

	total, err := core.SumRows(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.ReplaceProductMetrics(ctx, entryID, rows); err != nil {
		return nil, err
	}
	if err := tx.UpdateEntryTotals(ctx, entryID, total); err != nil {
		return nil, err
	}
	return preserved, nil
}

// mergeAggregate sets the day's investment and keeps the other totals.
// Product rows left from an earlier product-mode save are removed.
func mergeAggregate(ctx context.Context, tx ports.EntryTx, entryID int64, investment core.Money) error {
	e, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := tx.ReplaceProductMetrics(ctx, entryID, nil); err != nil {
		return err
	}
	totals := e.Totals
	totals.Investment = investment
	return tx.UpdateEntryTotals(ctx, entryID, totals)
}

// GetEntry returns the client's entry for a day with its product rows.
func (s *EntryService) GetEntry(ctx context.Context, clientID int64, date core.Date) (EntryView, error) {
	if err := date.Validate(); err != nil {
		return EntryView{}, err
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return EntryView{}, err
	}
	e, ok, err := s.store.FindEntry(ctx, clientID, date)
	if err != nil {
		return EntryView{}, err
	}
	if !ok {
		return EntryView{}, core.NewNotFound("entry", fmt.Sprintf("%d/%s", clientID, date))
	}
	rows, err := s.store.ListEntryProductMetrics(ctx, e.ID)
	if err != nil {
		return EntryView{}, err
	}
	return EntryView{Entry: e, Rows: rows}, nil
}

// DeleteEntry removes an entry and, through the cascade, its product rows.
func (s *EntryService) DeleteEntry(ctx context.Context, entryID int64) error {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d|%s", e.ClientID, e.Date))
	defer unlock()

	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	s.metrics.EntryDeleted()
	s.notify(e.ClientID)
	if s.publisher != nil {
		if err := s.publisher.PublishEntryDeleted(ctx, entryID, e.ClientID, e.Date); err != nil {
			slog.ErrorContext(ctx, "Failed to publish entry deleted event",
				"entry_id", entryID, "error", err)
		}
	}
	return nil
}

func (s *EntryService) notify(clientID int64) {
	for _, l := range s.listeners {
		l.Invalidate(clientID)
	}
}

func validateSave(req SaveEntryRequest) error {
	var errs []error
	if err := req.Date.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := req.Investment.Validate(); err != nil {
		errs = append(errs, &core.ValidationError{Field: "investment", Reason: err.Error()})
	}
	seen := make(map[int64]bool, len(req.Products))
	for _, row := range req.Products {
		if seen[row.ProductID] {
			errs = append(errs, &core.ValidationError{
				Field:  "products",
				Reason: fmt.Sprintf("product %d submitted more than once", row.ProductID),
			})
		}
		seen[row.ProductID] = true
		if err := row.Totals.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("product %d: %w", row.ProductID, err))
		}
	}
	return errors.Join(errs...)
}
