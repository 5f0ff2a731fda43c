package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"

	"traffic/internal/core"
	"traffic/internal/sheets"
)

// Exporter keeps exported rows in memory. It backs the worker when no
// spreadsheet is configured and doubles as a test double.
type Exporter struct {
	mu   sync.Mutex
	rows map[string]sheets.ExportRow
}

var _ sheets.EntryExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[string]sheets.ExportRow)}
}

func (e *Exporter) UpsertEntry(_ context.Context, row sheets.ExportRow) (string, error) {
	if err := row.Date.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[row.Key()] = row
	return "mem:" + row.Key(), nil
}

func (e *Exporter) DeleteEntry(_ context.Context, clientID int64, date core.Date) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rows, strconv.FormatInt(clientID, 10)+"|"+date.String())
	return nil
}

// Rows returns the exported rows ordered by client and date.
func (e *Exporter) Rows() []sheets.ExportRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sheets.ExportRow, 0, len(e.rows))
	for _, r := range e.rows {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b sheets.ExportRow) int {
		if c := cmp.Compare(a.ClientID, b.ClientID); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date.Time)
	})
	return out
}

