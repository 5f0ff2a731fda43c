package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"traffic/internal/core"
	"traffic/internal/ports"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timestampLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the pool opens
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Immediate transactions take the write lock up front so two merges
	// never both read stored rows and then race on the write.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithinTx runs fn inside a single transaction and rolls back on any error.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(tx ports.EntryTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&entryTx{q: r.queries.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateClient(ctx context.Context, name string, budget core.Money) (core.Client, error) {
	c, err := r.queries.CreateClient(ctx, name, budget.Cents)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Client{}, &core.DuplicateError{Entity: "client", Name: name}
		}
		return core.Client{}, fmt.Errorf("create client %q: %w", name, err)
	}
	slog.InfoContext(ctx, "Client created", "client_id", c.ID, "name", c.Name)
	return toCoreClient(c), nil
}

func (r *SQLiteRepository) GetClient(ctx context.Context, id int64) (core.Client, error) {
	c, err := r.queries.GetClient(ctx, id)
	if err != nil {
		return core.Client{}, notFoundOr(err, "client", id, "get client")
	}
	return toCoreClient(c), nil
}

func (r *SQLiteRepository) ListClients(ctx context.Context, activeOnly bool) ([]core.Client, error) {
	rows, err := r.queries.ListClients(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]core.Client, len(rows))
	for i, c := range rows {
		out[i] = toCoreClient(c)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateClient(ctx context.Context, id int64, name string, budget core.Money) (core.Client, error) {
	c, err := r.queries.UpdateClient(ctx, id, name, budget.Cents)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Client{}, &core.DuplicateError{Entity: "client", Name: name}
		}
		return core.Client{}, notFoundOr(err, "client", id, "update client")
	}
	return toCoreClient(c), nil
}

func (r *SQLiteRepository) DeactivateClient(ctx context.Context, id int64) error {
	n, err := r.queries.DeactivateClient(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate client (%d): %w", id, err)
	}
	if n == 0 {
		return core.NewNotFound("client", id)
	}
	return nil
}

func (r *SQLiteRepository) CreateProduct(ctx context.Context, clientID int64, name string) (core.Product, error) {
	p, err := r.queries.CreateProduct(ctx, clientID, name)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return core.Product{}, &core.DuplicateError{Entity: "product", Name: name}
		case isForeignKeyError(err):
			return core.Product{}, core.NewNotFound("client", clientID)
		}
		return core.Product{}, fmt.Errorf("create product %q (client %d): %w", name, clientID, err)
	}
	return toCoreProduct(p), nil
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	p, err := r.queries.GetProduct(ctx, id)
	if err != nil {
		return core.Product{}, notFoundOr(err, "product", id, "get product")
	}
	return toCoreProduct(p), nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context, clientID int64, activeOnly bool) ([]core.Product, error) {
	rows, err := r.queries.ListProducts(ctx, clientID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products (client %d): %w", clientID, err)
	}
	out := make([]core.Product, len(rows))
	for i, p := range rows {
		out[i] = toCoreProduct(p)
	}
	return out, nil
}

func (r *SQLiteRepository) DeactivateProduct(ctx context.Context, id int64) error {
	n, err := r.queries.DeactivateProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate product (%d): %w", id, err)
	}
	if n == 0 {
		return core.NewNotFound("product", id)
	}
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	return loadEntry(ctx, r.queries, id)
}

func (r *SQLiteRepository) FindEntry(ctx context.Context, clientID int64, date core.Date) (core.Entry, bool, error) {
	e, err := r.queries.GetEntryByClientDate(ctx, clientID, date.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, false, nil
	}
	if err != nil {
		return core.Entry{}, false, fmt.Errorf("find entry (client %d, %s): %w", clientID, date, err)
	}
	out, err := toCoreEntry(e)
	if err != nil {
		return core.Entry{}, false, err
	}
	return out, true, nil
}

func (r *SQLiteRepository) ListEntryProductMetrics(ctx context.Context, entryID int64) ([]core.ProductMetric, error) {
	return listProductMetrics(ctx, r.queries, entryID)
}

func (r *SQLiteRepository) ListEntriesForMonth(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.Entry, error) {
	rows, err := r.queries.ListEntriesByMonth(ctx, clientID, ym.Prefix())
	if err != nil {
		return nil, fmt.Errorf("list entries (client %d, %s): %w", clientID, ym, err)
	}
	out := make([]core.Entry, 0, len(rows))
	for _, e := range rows {
		ce, err := toCoreEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, nil
}

func (r *SQLiteRepository) ListMonthProductMetrics(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.DailyProductMetric, error) {
	rows, err := r.queries.ListProductMetricsByMonth(ctx, clientID, ym.Prefix())
	if err != nil {
		return nil, fmt.Errorf("list product metrics (client %d, %s): %w", clientID, ym, err)
	}
	out := make([]core.DailyProductMetric, 0, len(rows))
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("stored entry date %q: %w", row.Date, err)
		}
		pm := toCoreProductMetric(row.ProductMetricRow)
		out = append(out, core.DailyProductMetric{
			Date:        d,
			ProductID:   pm.ProductID,
			ProductName: pm.ProductName,
			Totals:      pm.Totals,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("delete entry (%d): %w", id, err)
	}
	if n == 0 {
		return core.NewNotFound("entry", id)
	}
	slog.InfoContext(ctx, "Entry deleted", "entry_id", id)
	return nil
}

// entryTx implements ports.EntryTx on top of a transaction-bound Queries.
type entryTx struct {
	q *Queries
}

func (t *entryTx) EnsureEntry(ctx context.Context, clientID int64, date core.Date, note string) (int64, error) {
	if err := t.q.InsertEntryIgnore(ctx, clientID, date.String(), note); err != nil {
		if isForeignKeyError(err) {
			return 0, core.NewNotFound("client", clientID)
		}
		return 0, fmt.Errorf("insert entry (client %d, %s): %w", clientID, date, err)
	}
	id, err := t.q.UpdateEntryNote(ctx, clientID, date.String(), note)
	if err != nil {
		return 0, fmt.Errorf("update entry note (client %d, %s): %w", clientID, date, err)
	}
	return id, nil
}

func (t *entryTx) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	return loadEntry(ctx, t.q, id)
}

func (t *entryTx) ListProductMetrics(ctx context.Context, entryID int64) ([]core.ProductMetric, error) {
	return listProductMetrics(ctx, t.q, entryID)
}

func (t *entryTx) ReplaceProductMetrics(ctx context.Context, entryID int64, rows []core.ProductMetric) error {
	if err := t.q.DeleteProductMetricsByEntry(ctx, entryID); err != nil {
		return fmt.Errorf("delete product metrics (entry %d): %w", entryID, err)
	}
	for _, row := range rows {
		err := t.q.InsertProductMetric(ctx, InsertProductMetricParams{
			EntryID:         entryID,
			ProductID:       row.ProductID,
			InvestmentCents: row.Investment.Cents,
			Leads:           row.Leads,
			Sales:           row.Sales,
			RevenueCents:    row.Revenue.Cents,
		})
		if err != nil {
			switch {
			case isUniqueConstraintError(err):
				return &core.ConstraintViolation{Reason: fmt.Sprintf("product %d submitted twice", row.ProductID)}
			case isForeignKeyError(err):
				return &core.ConstraintViolation{Reason: fmt.Sprintf("unknown product %d", row.ProductID)}
			}
			return fmt.Errorf("insert product metric (entry %d, product %d): %w", entryID, row.ProductID, err)
		}
	}
	return nil
}

func (t *entryTx) UpdateEntryTotals(ctx context.Context, entryID int64, tot core.Totals) error {
	err := t.q.UpdateEntryTotals(ctx, UpdateEntryTotalsParams{
		ID:              entryID,
		InvestmentCents: tot.Investment.Cents,
		Leads:           tot.Leads,
		Sales:           tot.Sales,
		RevenueCents:    tot.Revenue.Cents,
	})
	if err != nil {
		return fmt.Errorf("update entry totals (%d): %w", entryID, err)
	}
	return nil
}

func loadEntry(ctx context.Context, q *Queries, id int64) (core.Entry, error) {
	e, err := q.GetEntry(ctx, id)
	if err != nil {
		return core.Entry{}, notFoundOr(err, "entry", id, "get entry")
	}
	return toCoreEntry(e)
}

func listProductMetrics(ctx context.Context, q *Queries, entryID int64) ([]core.ProductMetric, error) {
	rows, err := q.ListProductMetricsByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("list product metrics (entry %d): %w", entryID, err)
	}
	out := make([]core.ProductMetric, len(rows))
	for i, row := range rows {
		out[i] = toCoreProductMetric(row)
	}
	return out, nil
}

func toCoreClient(c Client) core.Client {
	return core.Client{
		ID:            c.ID,
		Name:          c.Name,
		MonthlyBudget: core.Money{Cents: c.MonthlyBudgetCents},
		Active:        c.Active != 0,
		CreatedAt:     parseTimestamp(c.CreatedAt),
	}
}

func toCoreProduct(p Product) core.Product {
	return core.Product{
		ID:        p.ID,
		ClientID:  p.ClientID,
		Name:      p.Name,
		Active:    p.Active != 0,
		CreatedAt: parseTimestamp(p.CreatedAt),
	}
}

func toCoreEntry(e Entry) (core.Entry, error) {
	d, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("stored entry %d date %q: %w", e.ID, e.Date, err)
	}
	return core.Entry{
		ID:       e.ID,
		ClientID: e.ClientID,
		Date:     d,
		Totals: core.Totals{
			Investment: core.Money{Cents: e.InvestmentCents},
			Leads:      e.Leads,
			Sales:      e.Sales,
			Revenue:    core.Money{Cents: e.RevenueCents},
		},
		Note:      e.Note,
		CreatedAt: parseTimestamp(e.CreatedAt),
	}, nil
}

func toCoreProductMetric(r ProductMetricRow) core.ProductMetric {
	return core.ProductMetric{
		EntryID:     r.EntryID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Totals: core.Totals{
			Investment: core.Money{Cents: r.InvestmentCents},
			Leads:      r.Leads,
			Sales:      r.Sales,
			Revenue:    core.Money{Cents: r.RevenueCents},
		},
	}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func notFoundOr(err error, entity string, id int64, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFound(entity, id)
	}
	return fmt.Errorf("%s (%d): %w", op, id, err)
}

func isUniqueConstraintError(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
