package main

import (
	"os"

	"github.com/robfig/cron/v3"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRecurring)
	logger.Info("Starting recurring-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateRecurringWorker(); err != nil {
		logger.Error("Invalid recurring worker configuration", "error", err)
		os.Exit(1)
	}

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
	if be.Notifier == nil {
		logger.Info("AMQP disabled - generated transactions will not be exported")
	}

	processor := services.NewRecurringProcessor(services.NewLedger(be.Store), services.NewEngine(), be.Notifier)

	run := func() {
		summary, err := processor.ProcessDueNow(ctx)
		if err != nil {
			logger.Error("Recurring processing failed", "error", err)
			return
		}
		logger.Info("Recurring processing complete",
			"created", len(summary.Created),
			"expired", len(summary.Expired),
			"skipped", len(summary.Diagnostics))
	}

	if cfg.RunOnStart {
		logger.Info("Running initial recurring processing...")
		run()
	}

	c := cron.New(
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := c.AddFunc(cfg.RecurringSchedule, run); err != nil {
		logger.Error("Invalid recurring schedule", "error", err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}
	c.Start()
	logger.Info("Recurring processor scheduled",
		"schedule", cfg.RecurringSchedule,
		"backend", cfg.DataBackend)

	<-ctx.Done()

	logger.Info("Shutting down recurring-worker...", applog.FieldOperation, applog.OpShutdown)
	// waits for a run in progress
	<-c.Stop().Done()
	logger.Info("Recurring-worker shutdown complete")
}

// cronLogger routes scheduler messages through the worker's logger.
type cronLogger struct {
	l *applog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}
