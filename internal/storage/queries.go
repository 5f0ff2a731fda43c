package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Client struct {
	ID                 int64
	Name               string
	MonthlyBudgetCents int64
	Active             int64
	CreatedAt          string
}

type Product struct {
	ID        int64
	ClientID  int64
	Name      string
	Active    int64
	CreatedAt string
}

type Entry struct {
	ID              int64
	ClientID        int64
	Date            string
	InvestmentCents int64
	Leads           int64
	Sales           int64
	RevenueCents    int64
	Note            string
	CreatedAt       string
}

type ProductMetricRow struct {
	EntryID         int64
	ProductID       int64
	ProductName     string
	InvestmentCents int64
	Leads           int64
	Sales           int64
	RevenueCents    int64
}

type MonthProductMetricRow struct {
	Date string
	ProductMetricRow
}

const clientColumns = `id, name, monthly_budget_cents, active, created_at`

func scanClient(row interface{ Scan(...any) error }) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.MonthlyBudgetCents, &c.Active, &c.CreatedAt)
	return c, err
}

const createClient = `-- name: CreateClient :one
INSERT INTO clients (name, monthly_budget_cents) VALUES (?, ?)
RETURNING ` + clientColumns

func (q *Queries) CreateClient(ctx context.Context, name string, budgetCents int64) (Client, error) {
	return scanClient(q.db.QueryRowContext(ctx, createClient, name, budgetCents))
}

const getClient = `-- name: GetClient :one
SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

func (q *Queries) GetClient(ctx context.Context, id int64) (Client, error) {
	return scanClient(q.db.QueryRowContext(ctx, getClient, id))
}

const listClients = `-- name: ListClients :many
SELECT ` + clientColumns + ` FROM clients
WHERE (? = 0 OR active = 1)
ORDER BY name`

func (q *Queries) ListClients(ctx context.Context, activeOnly bool) ([]Client, error) {
	rows, err := q.db.QueryContext(ctx, listClients, boolToInt(activeOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateClient = `-- name: UpdateClient :one
UPDATE clients SET name = ?, monthly_budget_cents = ? WHERE id = ?
RETURNING ` + clientColumns

func (q *Queries) UpdateClient(ctx context.Context, id int64, name string, budgetCents int64) (Client, error) {
	return scanClient(q.db.QueryRowContext(ctx, updateClient, name, budgetCents, id))
}

const deactivateClient = `-- name: DeactivateClient :execrows
UPDATE clients SET active = 0 WHERE id = ?`

func (q *Queries) DeactivateClient(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deactivateClient, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const productColumns = `id, client_id, name, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Active, &p.CreatedAt)
	return p, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (client_id, name) VALUES (?, ?)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, clientID int64, name string) (Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, createProduct, clientID, name))
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = ?`

func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, getProduct, id))
}

const listProducts = `-- name: ListProducts :many
SELECT ` + productColumns + ` FROM products
WHERE client_id = ? AND (? = 0 OR active = 1)
ORDER BY name`

func (q *Queries) ListProducts(ctx context.Context, clientID int64, activeOnly bool) ([]Product, error) {
	rows, err := q.db.QueryContext(ctx, listProducts, clientID, boolToInt(activeOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const deactivateProduct = `-- name: DeactivateProduct :execrows
UPDATE products SET active = 0 WHERE id = ?`

func (q *Queries) DeactivateProduct(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deactivateProduct, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const entryColumns = `id, client_id, date, investment_cents, leads, sales, revenue_cents, note, created_at`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ClientID, &e.Date, &e.InvestmentCents, &e.Leads, &e.Sales, &e.RevenueCents, &e.Note, &e.CreatedAt)
	return e, err
}

const insertEntryIgnore = `-- name: InsertEntryIgnore :exec
INSERT OR IGNORE INTO entries (client_id, date, note) VALUES (?, ?, ?)`

func (q *Queries) InsertEntryIgnore(ctx context.Context, clientID int64, date, note string) error {
	_, err := q.db.ExecContext(ctx, insertEntryIgnore, clientID, date, note)
	return err
}

const updateEntryNote = `-- name: UpdateEntryNote :one
UPDATE entries SET note = ? WHERE client_id = ? AND date = ?
RETURNING id`

func (q *Queries) UpdateEntryNote(ctx context.Context, clientID int64, date, note string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, updateEntryNote, note, clientID, date).Scan(&id)
	return id, err
}

const getEntry = `-- name: GetEntry :one
SELECT ` + entryColumns + ` FROM entries WHERE id = ?`

func (q *Queries) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id))
}

const getEntryByClientDate = `-- name: GetEntryByClientDate :one
SELECT ` + entryColumns + ` FROM entries WHERE client_id = ? AND date = ?`

func (q *Queries) GetEntryByClientDate(ctx context.Context, clientID int64, date string) (Entry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntryByClientDate, clientID, date))
}

const listEntriesByMonth = `-- name: ListEntriesByMonth :many
SELECT ` + entryColumns + ` FROM entries
WHERE client_id = ? AND date LIKE ?
ORDER BY date`

func (q *Queries) ListEntriesByMonth(ctx context.Context, clientID int64, monthPrefix string) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, listEntriesByMonth, clientID, monthPrefix+"-%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const updateEntryTotals = `-- name: UpdateEntryTotals :exec
UPDATE entries
SET investment_cents = ?, leads = ?, sales = ?, revenue_cents = ?
WHERE id = ?`

type UpdateEntryTotalsParams struct {
	ID              int64
	InvestmentCents int64
	Leads           int64
	Sales           int64
	RevenueCents    int64
}

func (q *Queries) UpdateEntryTotals(ctx context.Context, arg UpdateEntryTotalsParams) error {
	_, err := q.db.ExecContext(ctx, updateEntryTotals, arg.InvestmentCents, arg.Leads, arg.Sales, arg.RevenueCents, arg.ID)
	return err
}

const deleteEntry = `-- name: DeleteEntry :execrows
DELETE FROM entries WHERE id = ?`

func (q *Queries) DeleteEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listProductMetricsByEntry = `-- name: ListProductMetricsByEntry :many
SELECT pm.entry_id, pm.product_id, p.name, pm.investment_cents, pm.leads, pm.sales, pm.revenue_cents
FROM product_metrics pm
JOIN products p ON p.id = pm.product_id
WHERE pm.entry_id = ?
ORDER BY p.name`

func (q *Queries) ListProductMetricsByEntry(ctx context.Context, entryID int64) ([]ProductMetricRow, error) {
	rows, err := q.db.QueryContext(ctx, listProductMetricsByEntry, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductMetricRow
	for rows.Next() {
		var r ProductMetricRow
		if err := rows.Scan(&r.EntryID, &r.ProductID, &r.ProductName, &r.InvestmentCents, &r.Leads, &r.Sales, &r.RevenueCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listProductMetricsByMonth = `-- name: ListProductMetricsByMonth :many
SELECT e.date, pm.entry_id, pm.product_id, p.name, pm.investment_cents, pm.leads, pm.sales, pm.revenue_cents
FROM product_metrics pm
JOIN entries e ON e.id = pm.entry_id
JOIN products p ON p.id = pm.product_id
WHERE e.client_id = ? AND e.date LIKE ?
ORDER BY e.date, p.name`

func (q *Queries) ListProductMetricsByMonth(ctx context.Context, clientID int64, monthPrefix string) ([]MonthProductMetricRow, error) {
	rows, err := q.db.QueryContext(ctx, listProductMetricsByMonth, clientID, monthPrefix+"-%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthProductMetricRow
	for rows.Next() {
		var r MonthProductMetricRow
		if err := rows.Scan(&r.Date, &r.EntryID, &r.ProductID, &r.ProductName, &r.InvestmentCents, &r.Leads, &r.Sales, &r.RevenueCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteProductMetricsByEntry = `-- name: DeleteProductMetricsByEntry :exec
DELETE FROM product_metrics WHERE entry_id = ?`

func (q *Queries) DeleteProductMetricsByEntry(ctx context.Context, entryID int64) error {
	_, err := q.db.ExecContext(ctx, deleteProductMetricsByEntry, entryID)
	return err
}

const insertProductMetric = `-- name: InsertProductMetric :exec
INSERT INTO product_metrics (entry_id, product_id, investment_cents, leads, sales, revenue_cents)
VALUES (?, ?, ?, ?, ?, ?)`

type InsertProductMetricParams struct {
	EntryID         int64
	ProductID       int64
	InvestmentCents int64
	Leads           int64
	Sales           int64
	RevenueCents    int64
}

func (q *Queries) InsertProductMetric(ctx context.Context, arg InsertProductMetricParams) error {
	_, err := q.db.ExecContext(ctx, insertProductMetric,
		arg.EntryID, arg.ProductID, arg.InvestmentCents, arg.Leads, arg.Sales, arg.RevenueCents)
	return err
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
