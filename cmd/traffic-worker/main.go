package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"traffic/internal/amqp"
	"traffic/internal/backend"
	"traffic/internal/cli"
	applog "traffic/internal/log"
	"traffic/internal/metrics"
	"traffic/internal/sheets"
	gsheet "traffic/internal/sheets/google"
	sheetsmem "traffic/internal/sheets/memory"
	"traffic/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Error("Failed to load .env file", applog.FieldError, err)
		os.Exit(1)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.SlogLevel(), applog.ComponentWorker)
	logger.Info("Starting traffic-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		logger.Warn("Worker reads a private store; exports only see entries shared through SQLite",
			"backend", cfg.DataBackend)
	}

	ctx, stop := cli.ShutdownContext()
	defer stop()

	// The store is opened without a publisher: the worker only consumes.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	var exporter sheets.EntryExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
		exporter = client
	} else {
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to memory only")
		exporter = sheetsmem.New()
	}

	m := metrics.New()
	if cfg.WorkerMetricsAddr != "" {
		srv := metricsServer(cfg.WorkerMetricsAddr, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	exportWorker := worker.NewExportWorker(res.Store, exporter, m)
	reconciler := worker.NewReconciler(exportWorker, worker.ReconcilerConfig{
		Interval:   cfg.ReconcileInterval,
		RunOnStart: cfg.BackfillOnStart,
	})
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		reconciler.Stop(stopCtx)
	}()

	client, err := amqp.ConnectWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Info("Stopped before the broker became reachable", applog.FieldError, err)
		return
	}
	defer client.Close()

	if err := client.ConsumeEntryEvents(ctx, exportWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
	}
	logger.Info("Worker stopped gracefully")
}

func metricsServer(addr string, m *metrics.Collector) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
