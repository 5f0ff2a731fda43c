// Package memory is an in-process ports.Store used by tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"traffic/internal/core"
	"traffic/internal/ports"
)

type entryKey struct {
	clientID int64
	date     string
}

type metricKey struct {
	entryID   int64
	productID int64
}

// state is copied for each transaction and swapped in on success.
type state struct {
	nextID   int64
	clients  map[int64]core.Client
	products map[int64]core.Product
	entries  map[int64]core.Entry
	byDay    map[entryKey]int64
	metrics  map[metricKey]core.Totals
}

func (s *state) clone() *state {
	return &state{
		nextID:   s.nextID,
		clients:  maps.Clone(s.clients),
		products: maps.Clone(s.products),
		entries:  maps.Clone(s.entries),
		byDay:    maps.Clone(s.byDay),
		metrics:  maps.Clone(s.metrics),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			clients:  map[int64]core.Client{},
			products: map[int64]core.Product{},
			entries:  map[int64]core.Entry{},
			byDay:    map[entryKey]int64{},
			metrics:  map[metricKey]core.Totals{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error              { return nil }

func (s *Store) CreateClient(_ context.Context, name string, budget core.Money) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.st.clients {
		if c.Name == name {
			return core.Client{}, &core.DuplicateError{Entity: "client", Name: name}
		}
	}
	c := core.Client{ID: s.st.id(), Name: name, MonthlyBudget: budget, Active: true, CreatedAt: s.now()}
	s.st.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id int64) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.clients[id]
	if !ok {
		return core.Client{}, core.NewNotFound("client", id)
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context, activeOnly bool) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Client
	for _, c := range s.st.clients {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateClient(_ context.Context, id int64, name string, budget core.Money) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.clients[id]
	if !ok {
		return core.Client{}, core.NewNotFound("client", id)
	}
	for _, other := range s.st.clients {
		if other.ID != id && other.Name == name {
			return core.Client{}, &core.DuplicateError{Entity: "client", Name: name}
		}
	}
	c.Name, c.MonthlyBudget = name, budget
	s.st.clients[id] = c
	return c, nil
}

func (s *Store) DeactivateClient(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.clients[id]
	if !ok {
		return core.NewNotFound("client", id)
	}
	c.Active = false
	s.st.clients[id] = c
	return nil
}

func (s *Store) CreateProduct(_ context.Context, clientID int64, name string) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.clients[clientID]; !ok {
		return core.Product{}, core.NewNotFound("client", clientID)
	}
	for _, p := range s.st.products {
		if p.ClientID == clientID && p.Name == name {
			return core.Product{}, &core.DuplicateError{Entity: "product", Name: name}
		}
	}
	p := core.Product{ID: s.st.id(), ClientID: clientID, Name: name, Active: true, CreatedAt: s.now()}
	s.st.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return core.Product{}, core.NewNotFound("product", id)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, clientID int64, activeOnly bool) ([]core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Product
	for _, p := range s.st.products {
		if p.ClientID != clientID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeactivateProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return core.NewNotFound("product", id)
	}
	p.Active = false
	s.st.products[id] = p
	return nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.entry(id)
}

func (s *Store) FindEntry(_ context.Context, clientID int64, date core.Date) (core.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.st.byDay[entryKey{clientID, date.String()}]
	if !ok {
		return core.Entry{}, false, nil
	}
	return s.st.entries[id], true, nil
}

func (s *Store) ListEntryProductMetrics(_ context.Context, entryID int64) ([]core.ProductMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.rows(entryID), nil
}

func (s *Store) ListEntriesForMonth(_ context.Context, clientID int64, ym core.YearMonth) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.st.monthEntries(clientID, ym)
	return out, nil
}

func (s *Store) ListMonthProductMetrics(_ context.Context, clientID int64, ym core.YearMonth) ([]core.DailyProductMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DailyProductMetric
	for _, e := range s.st.monthEntries(clientID, ym) {
		for _, r := range s.st.rows(e.ID) {
			out = append(out, core.DailyProductMetric{
				Date:        e.Date,
				ProductID:   r.ProductID,
				ProductName: r.ProductName,
				Totals:      r.Totals,
			})
		}
	}
	core.SortDaily(out)
	return out, nil
}

func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.entries[id]
	if !ok {
		return core.NewNotFound("entry", id)
	}
	delete(s.st.entries, id)
	delete(s.st.byDay, entryKey{e.ClientID, e.Date.String()})
	s.st.dropRows(id)
	return nil
}

// WithinTx holds the store lock for the whole transaction and applies fn to
// a copy of the state, which replaces the live state only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.EntryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) EnsureEntry(_ context.Context, clientID int64, date core.Date, note string) (int64, error) {
	if _, ok := t.st.clients[clientID]; !ok {
		return 0, core.NewNotFound("client", clientID)
	}
	key := entryKey{clientID, date.String()}
	id, ok := t.st.byDay[key]
	if !ok {
		id = t.st.id()
		t.st.byDay[key] = id
		t.st.entries[id] = core.Entry{ID: id, ClientID: clientID, Date: date, CreatedAt: t.now()}
	}
	e := t.st.entries[id]
	e.Note = note
	t.st.entries[id] = e
	return id, nil
}

func (t *tx) GetEntry(_ context.Context, id int64) (core.Entry, error) {
	return t.st.entry(id)
}

func (t *tx) ListProductMetrics(_ context.Context, entryID int64) ([]core.ProductMetric, error) {
	return t.st.rows(entryID), nil
}

func (t *tx) ReplaceProductMetrics(_ context.Context, entryID int64, rows []core.ProductMetric) error {
	if _, ok := t.st.entries[entryID]; !ok {
		return core.NewNotFound("entry", entryID)
	}
	t.st.dropRows(entryID)
	for _, r := range rows {
		if _, ok := t.st.products[r.ProductID]; !ok {
			return &core.ConstraintViolation{Reason: fmt.Sprintf("unknown product %d", r.ProductID)}
		}
		k := metricKey{entryID, r.ProductID}
		if _, dup := t.st.metrics[k]; dup {
			return &core.ConstraintViolation{Reason: fmt.Sprintf("product %d submitted twice", r.ProductID)}
		}
		t.st.metrics[k] = r.Totals
	}
	return nil
}

func (t *tx) UpdateEntryTotals(_ context.Context, entryID int64, tot core.Totals) error {
	e, ok := t.st.entries[entryID]
	if !ok {
		return core.NewNotFound("entry", entryID)
	}
	e.Totals = tot
	t.st.entries[entryID] = e
	return nil
}

func (s *state) entry(id int64) (core.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return core.Entry{}, core.NewNotFound("entry", id)
	}
	return e, nil
}

func (s *state) rows(entryID int64) []core.ProductMetric {
	var out []core.ProductMetric
	for k, t := range s.metrics {
		if k.entryID != entryID {
			continue
		}
		out = append(out, core.ProductMetric{
			EntryID:     entryID,
			ProductID:   k.productID,
			ProductName: s.products[k.productID].Name,
			Totals:      t,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out
}

func (s *state) dropRows(entryID int64) {
	for k := range s.metrics {
		if k.entryID == entryID {
			delete(s.metrics, k)
		}
	}
}

func (s *state) monthEntries(clientID int64, ym core.YearMonth) []core.Entry {
	prefix := ym.Prefix() + "-"
	var out []core.Entry
	for _, e := range s.entries {
		if e.ClientID == clientID && strings.HasPrefix(e.Date.String(), prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}
