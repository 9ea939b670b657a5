package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Logger.With(applog.FieldComponent, applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	ledger := services.NewLedger(be.Store)
	engine := services.NewEngine()
	processor := services.NewRecurringProcessor(ledger, engine, be.Notifier)

	overviewCache := cache.NewLRUCache[core.MonthOverview](cfg.OverviewCacheSize, cfg.OverviewCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(overviewCache)
	cacheManager.StartCleanup(ctx, cfg.OverviewCacheTTL)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions: services.NewTransactionService(ledger, engine, be.Notifier),
		Recurring:    processor,
		Overview:     services.NewOverviewService(ledger, overviewCache),
		Budgets:      services.NewBudgetService(ledger),
	}, apphttp.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
	})

	// Catch up on anything that fell due while the app was down.
	if cfg.RunOnStart {
		if summary, err := processor.ProcessDueNow(ctx); err != nil {
			logger.Error("Startup recurring run failed", "error", err)
		} else {
			logger.Info("Startup recurring run complete",
				"created", len(summary.Created),
				"expired", len(summary.Expired))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", be.Notifier != nil,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
