package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"traffic/internal/cache"
	"traffic/internal/core"
	"traffic/internal/metrics"
	"traffic/internal/ports"
)

// Dashboard is the month view of one client.
type Dashboard struct {
	Client     core.Client
	Comparison core.MonthComparison
	Products   []core.ProductSummary
	Budget     core.BudgetStatus
}

// RollupService aggregates persisted entries into monthly views.
type RollupService struct {
	store      ports.Store
	metrics    *metrics.Collector
	dashboards cache.Cache[Dashboard]

	// generations counts invalidations per client; a dashboard computed
	// across an invalidation is not cached.
	mu          sync.Mutex
	generations map[int64]uint64
}

// NewRollupService builds the aggregator. dashboards and m may be nil.
func NewRollupService(store ports.Store, m *metrics.Collector, dashboards cache.Cache[Dashboard]) *RollupService {
	return &RollupService{
		store:       store,
		metrics:     m,
		dashboards:  dashboards,
		generations: make(map[int64]uint64),
	}
}

// Invalidate drops every cached dashboard of the client.
func (s *RollupService) Invalidate(clientID int64) {
	if s.dashboards == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[clientID]++
	s.dashboards.DeletePrefix(fmt.Sprintf("%d:", clientID))
}

func (s *RollupService) generation(clientID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[clientID]
}

// storeDashboard caches d unless the client was invalidated since gen.
func (s *RollupService) storeDashboard(key string, clientID int64, gen uint64, d Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[clientID] != gen {
		return
	}
	s.dashboards.Set(key, d)
}

func (s *RollupService) ListEntriesForMonth(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.AnnotatedEntry, error) {
	if err := s.check(ctx, clientID, ym); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntriesForMonth(ctx, clientID, ym)
	if err != nil {
		return nil, err
	}
	return core.Annotate(entries), nil
}

func (s *RollupService) MonthlySummary(ctx context.Context, clientID int64, ym core.YearMonth) (core.MonthSummary, error) {
	if err := s.check(ctx, clientID, ym); err != nil {
		return core.MonthSummary{}, err
	}
	return s.summary(ctx, clientID, ym)
}

func (s *RollupService) MonthlySummaryByProduct(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.ProductSummary, error) {
	if err := s.check(ctx, clientID, ym); err != nil {
		return nil, err
	}
	return s.byProduct(ctx, clientID, ym)
}

// DailyProductMetrics returns the month's product rows ordered by date then product.
func (s *RollupService) DailyProductMetrics(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.DailyProductMetric, error) {
	if err := s.check(ctx, clientID, ym); err != nil {
		return nil, err
	}
	rows, err := s.store.ListMonthProductMetrics(ctx, clientID, ym)
	if err != nil {
		return nil, err
	}
	core.SortDaily(rows)
	return rows, nil
}

// Compare summarizes ym and the month before it concurrently.
func (s *RollupService) Compare(ctx context.Context, clientID int64, ym core.YearMonth) (core.MonthComparison, error) {
	if err := s.check(ctx, clientID, ym); err != nil {
		return core.MonthComparison{}, err
	}
	return s.compare(ctx, clientID, ym)
}

// Dashboard combines the comparison, the product breakdown and the budget status.
func (s *RollupService) Dashboard(ctx context.Context, clientID int64, ym core.YearMonth) (Dashboard, error) {
	if err := ym.Validate(); err != nil {
		return Dashboard{}, err
	}
	key := fmt.Sprintf("%d:%s", clientID, ym)
	var gen uint64
	if s.dashboards != nil {
		if d, ok := s.dashboards.Get(key); ok {
			return d, nil
		}
		gen = s.generation(clientID)
	}

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{Client: client}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Comparison, err = s.compare(gctx, clientID, ym)
		return err
	})
	g.Go(func() error {
		var err error
		d.Products, err = s.byProduct(gctx, clientID, ym)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.Budget = core.Consumption(d.Comparison.Current.Totals.Investment, client.MonthlyBudget)
	if d.Budget.Ratio != nil {
		s.metrics.SetBudgetRatio(clientID, *d.Budget.Ratio)
		if d.Budget.Band == core.BandExceeded {
			slog.WarnContext(ctx, "Monthly budget exceeded",
				"client_id", clientID,
				"month", ym.String(),
				"invested", d.Budget.Invested.String(),
				"budget", d.Budget.Budget.String())
		}
	}

	if s.dashboards != nil {
		s.storeDashboard(key, clientID, gen, d)
	}
	return d, nil
}

func (s *RollupService) compare(ctx context.Context, clientID int64, ym core.YearMonth) (core.MonthComparison, error) {
	var cur, prev core.MonthSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cur, err = s.summary(gctx, clientID, ym)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = s.summary(gctx, clientID, ym.Prev())
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthComparison{}, err
	}
	return core.Compare(cur, prev), nil
}

func (s *RollupService) summary(ctx context.Context, clientID int64, ym core.YearMonth) (core.MonthSummary, error) {
	entries, err := s.store.ListEntriesForMonth(ctx, clientID, ym)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.SummarizeMonth(ym, entries), nil
}

func (s *RollupService) byProduct(ctx context.Context, clientID int64, ym core.YearMonth) ([]core.ProductSummary, error) {
	rows, err := s.store.ListMonthProductMetrics(ctx, clientID, ym)
	if err != nil {
		return nil, err
	}
	return core.SummarizeProducts(rows), nil
}

func (s *RollupService) check(ctx context.Context, clientID int64, ym core.YearMonth) error {
	if err := ym.Validate(); err != nil {
		return err
	}
	_, err := s.store.GetClient(ctx, clientID)
	return err
}
