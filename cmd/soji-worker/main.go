package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"soji/internal/config"
	"soji/internal/invoice"
	invgsheet "soji/internal/invoice/gsheet"
	invmem "soji/internal/invoice/memory"
	invscript "soji/internal/invoice/script"
	"soji/internal/queue"
	"soji/internal/scheduler"
	"soji/internal/store"
	"soji/internal/store/memory"
	"soji/internal/store/sqlite"
	"soji/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting soji-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Choose data backend
	var (
		records  store.RecordStore
		settings store.SettingsStore
	)
	switch cfg.DataBackend {
	case "sqlite":
		if err := sqlite.RunMigrations(cfg.SQLiteDBPath); err != nil {
			logger.Error("Failed to run migrations", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		records, settings = repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		records = memory.NewRecordStore()
		settings = memory.NewSettingsStore(nil)
		logger.Info("Initialized memory backend")
	}

	resolved, err := store.LoadSettings(ctx, settings, store.Settings{
		PIN:          cfg.PINCode,
		ReporterName: cfg.ReporterName,
		ClientName:   cfg.ClientName,
	})
	if err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	var renderer invoice.Renderer
	switch cfg.RenderBackend {
	case "sheets":
		ws, err := invgsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets workspace", "error", err)
			os.Exit(1)
		}
		renderer = invoice.NewTemplateRenderer(ws)
		logger.Info("Initialized Google Sheets renderer", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "script":
		renderer = invscript.NewRenderer(cfg.ScriptEndpoint)
		logger.Info("Initialized script renderer", "endpoint", cfg.ScriptEndpoint)
	default:
		renderer = invoice.NewTemplateRenderer(invmem.NewWorkspace())
		logger.Info("Initialized memory renderer")
	}

	invoices := invoice.NewService(records, renderer, resolved)
	invoiceWorker := worker.NewInvoiceWorker(invoices, cfg.InvoiceOutputDir)

	queueClient, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer queueClient.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := queueClient.ConsumeInvoiceJobs(gctx, func(job *queue.InvoiceJob) error {
			return invoiceWorker.HandleJob(gctx, job)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.BillingCron != "" {
		sched, err := scheduler.New(cfg.BillingCron, queueClient)
		if err != nil {
			logger.Error("Failed to initialize scheduler", "error", err, "cron", cfg.BillingCron)
			os.Exit(1)
		}
		sched.Start()
		logger.Info("Billing scheduler started", "cron", cfg.BillingCron)

		g.Go(func() error {
			<-gctx.Done()
			select {
			case <-sched.Stop().Done():
			case <-time.After(30 * time.Second):
				logger.Warn("Scheduler shutdown timeout reached")
			}
			return nil
		})
	}

	logger.Info("Worker running", "queue", cfg.AMQPQueue, "output_dir", cfg.InvoiceOutputDir)
	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
