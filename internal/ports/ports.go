// Package ports declares the storage contracts the services depend on.
package ports

import (
	"context"

	"traffic/internal/core"
)

type (
	ClientStore interface {
		CreateClient(ctx context.Context, name string, budget core.Money) (core.Client, error)
		GetClient(ctx context.Context, id int64) (core.Client, error)
		ListClients(ctx context.Context, activeOnly bool) ([]core.Client, error)
		UpdateClient(ctx context.Context, id int64, name string, budget core.Money) (core.Client, error)
		DeactivateClient(ctx context.Context, id int64) error
	}

	ProductStore interface {
		CreateProduct(ctx context.Context, clientID int64, name string) (core.Product, error)
		GetProduct(ctx context.Context, id int64) (core.Product, error)
		// ListProducts returns the client's products ordered by name.
		ListProducts(ctx context.Context, clientID int64, activeOnly bool) ([]core.Product, error)
		DeactivateProduct(ctx context.Context, id int64) error
	}

	// EntryReader provides read access to persisted entries.
	EntryReader interface {
		GetEntry(ctx context.Context, id int64) (core.Entry, error)
		// FindEntry looks up the entry of a client for a day; ok is false when none exists.
		FindEntry(ctx context.Context, clientID int64, date core.Date) (e core.Entry, ok bool, err error)
		// ListEntryProductMetrics returns the rows of an entry ordered by product name.
		ListEntryProductMetrics(ctx context.Context, entryID int64) ([]core.ProductMetric, error)
		// ListEntriesForMonth returns the client's entries of a month ordered by date.
		ListEntriesForMonth(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.Entry, error)
		// ListMonthProductMetrics returns every product row of the month ordered by date then product name.
		ListMonthProductMetrics(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.DailyProductMetric, error)
		DeleteEntry(ctx context.Context, id int64) error
	}

	// EntryTx is the set of writes a merge performs inside one transaction.
	EntryTx interface {
		// EnsureEntry creates the (client, date) entry with zero totals if absent,
		// sets its note and returns its id.
		EnsureEntry(ctx context.Context, clientID int64, date core.Date, note string) (int64, error)
		GetEntry(ctx context.Context, id int64) (core.Entry, error)
		ListProductMetrics(ctx context.Context, entryID int64) ([]core.ProductMetric, error)
		// ReplaceProductMetrics deletes every row of the entry and inserts rows.
		ReplaceProductMetrics(ctx context.Context, entryID int64, rows []core.ProductMetric) error
		UpdateEntryTotals(ctx context.Context, entryID int64, t core.Totals) error
	}

	Store interface {
		ClientStore
		ProductStore
		EntryReader
		// WithinTx runs fn in a transaction, committing only if fn returns nil.
		WithinTx(ctx context.Context, fn func(tx EntryTx) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
