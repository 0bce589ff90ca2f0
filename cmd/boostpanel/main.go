package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	socialapiadapter "github.com/boostpanel/boostpanel/internal/adapter/driven/socialapi"
	sqliteadapter "github.com/boostpanel/boostpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/boostpanel/boostpanel/internal/adapter/driving/http"
	"github.com/boostpanel/boostpanel/internal/application"
	"github.com/boostpanel/boostpanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base_url", cfg.APIBaseURL,
		"encryption", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	auditStore := sqliteadapter.NewAuditRepo(db, cfg.AuditCapacity)
	apiClient := socialapiadapter.NewClient(cfg.APIBaseURL, cfg.APITimeout)

	// 6. Wire application services. No credential refresher is configured by
	// default; expired credentials fail their actions until rotated.
	dispatcher := application.NewDispatcher(apiClient, auditStore, nil)
	registry := application.NewBotRegistry(credentialStore, apiClient, dispatcher, cfg.FetchLimit)
	limiter := application.NewRateLimiter(cfg.AdHocCooldown, cfg.AdHocDailyQuota)
	adhoc := application.NewAdHocService(credentialStore, apiClient, limiter, auditStore)

	// 7. Wire the control-plane HTTP API.
	logger := slog.Default()
	handler := httphandler.NewHandler(credentialStore, auditStore, registry, adhoc, logger)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 8. Graceful shutdown: stop accepting requests, then stop all watches
	// and wait for in-flight ticks to record their outcomes.
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	registry.StopAll()
	slog.Info("all watches stopped")

	return nil
}
