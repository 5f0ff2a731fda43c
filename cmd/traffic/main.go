package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"traffic/internal/backend"
	"traffic/internal/cache"
	"traffic/internal/cli"
	apphttp "traffic/internal/http"
	applog "traffic/internal/log"
	"traffic/internal/metrics"
	"traffic/internal/services"
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
	logger := cli.SetupLogger(cfg.SlogLevel(), applog.ComponentApp)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	m := metrics.New()

	dashboards := cache.NewLRUCache[services.Dashboard](cfg.CacheSize, cfg.CacheTTL)
	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(dashboards)
	caches.StartCleanup(cfg.CacheTTL)
	defer caches.Stop()

	rollups := services.NewRollupService(res.Store, m, dashboards)
	entries := services.NewEntryService(res.Store, res.Publisher, m)
	entries.OnChange(rollups)
	clients := services.NewClientService(res.Store)
	clients.OnChange(rollups)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Entries: entries,
		Rollups: rollups,
		Clients: clients,
		Store:   res.Store,
	}, apphttp.Options{
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting traffic server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	start := time.Now()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully", "shutdown_ms", time.Since(start).Milliseconds())
}
