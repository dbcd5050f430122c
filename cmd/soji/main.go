package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"soji/internal/auth"
	"soji/internal/config"
	apphttp "soji/internal/http"
	"soji/internal/invoice"
	invgsheet "soji/internal/invoice/gsheet"
	invmem "soji/internal/invoice/memory"
	invscript "soji/internal/invoice/script"
	"soji/internal/store"
	"soji/internal/store/memory"
	"soji/internal/store/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

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

	// Settings rows override environment defaults.
	resolved, err := store.LoadSettings(ctx, settings, store.Settings{
		PIN:          cfg.PINCode,
		ReporterName: cfg.ReporterName,
		ClientName:   cfg.ClientName,
	})
	if err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	renderer, err := buildRenderer(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize invoice renderer", "error", err, "backend", cfg.RenderBackend)
		os.Exit(1)
	}
	invoices := invoice.NewService(records, renderer, resolved)

	// Choose access gate
	var srv *apphttp.Server
	switch cfg.AuthMode {
	case "jwt":
		verifier, err := auth.NewTokenVerifier(ctx, cfg.JWKSURL, cfg.JWTIssuer)
		if err != nil {
			logger.Error("Failed to initialize token verifier", "error", err, "jwks_url", cfg.JWKSURL)
			os.Exit(1)
		}
		srv = apphttp.NewRESTServer(":"+cfg.Port, records, invoices, verifier)
		logger.Info("Serving REST API with JWT auth", "jwks_url", cfg.JWKSURL)
	default:
		srv = apphttp.NewActionServer(":"+cfg.Port, records, invoices, auth.NewPINGate(resolved.PIN))
		logger.Info("Serving action API with PIN auth")
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 120 * time.Second // PDF rendering can be slow
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	shutdownDone := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		close(shutdownDone)
	}()

	logger.Info("Starting soji server", "port", cfg.Port, "data_backend", cfg.DataBackend, "render_backend", cfg.RenderBackend, "auth_mode", cfg.AuthMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("Server stopped gracefully")
}

func buildRenderer(ctx context.Context, cfg *config.Config) (invoice.Renderer, error) {
	switch cfg.RenderBackend {
	case "sheets":
		ws, err := invgsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return invoice.NewTemplateRenderer(ws), nil
	case "script":
		return invscript.NewRenderer(cfg.ScriptEndpoint), nil
	default:
		return invoice.NewTemplateRenderer(invmem.NewWorkspace()), nil
	}
}
