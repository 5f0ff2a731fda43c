package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"traffic/internal/core"
)

type ReconcilerConfig struct {
	// Interval between backfills of the current month; zero disables the
	// periodic pass.
	Interval time.Duration
	// RunOnStart backfills once as soon as the reconciler starts.
	RunOnStart bool
}

// Reconciler periodically re-exports the current month so rows missed
// while the broker or the sheet was unavailable converge.
type Reconciler struct {
	worker *ExportWorker
	config ReconcilerConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(worker *ExportWorker, config ReconcilerConfig) *Reconciler {
	return &Reconciler{worker: worker, config: config, now: time.Now}
}

// Start begins the reconcile loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Reconciler started",
		"interval", r.config.Interval,
		"run_on_start", r.config.RunOnStart)
	return nil
}

// Stop signals the loop and waits for the pass in progress to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	// Stop must be able to interrupt a pass in progress.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if r.config.RunOnStart {
		r.reconcile(ctx)
	}
	if r.config.Interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	now := r.now()
	ym := core.YearMonth{Year: now.Year(), Month: int(now.Month())}
	start := time.Now()
	if err := r.worker.Backfill(ctx, ym); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.ErrorContext(ctx, "Reconcile pass failed", "month", ym.String(), "error", err)
		return
	}
	slog.DebugContext(ctx, "Reconcile pass completed",
		"month", ym.String(),
		"duration_ms", time.Since(start).Milliseconds())
}
