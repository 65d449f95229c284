// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery-dl-web/internal/config"
	"gallery-dl-web/internal/infra/events"
	"gallery-dl-web/internal/infra/gallerydl"
	"gallery-dl-web/internal/infra/logging"
	"gallery-dl-web/internal/infra/netcheck"
	"gallery-dl-web/internal/infra/security"
	"gallery-dl-web/internal/infra/store"
	"gallery-dl-web/internal/infra/web"
	"gallery-dl-web/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure defaults)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 16 && len(encKey) != 24 && len(encKey) != 32 {
		if !cfg.Runtime.Dev {
			log.Fatalf("security.encryption_key must be 16, 24, or 32 bytes")
		}
		log.Printf("WARNING: security.encryption_key not usable; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	vault, err := security.NewVault(encKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}

	// ---- Storage ----
	if err := os.MkdirAll(cfg.Storage.DownloadsDir, 0o755); err != nil {
		log.Fatalf("downloads dir: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.CookiesDir, 0o700); err != nil {
		log.Fatalf("cookies dir: %v", err)
	}

	// ---- Core ----
	hub := events.NewHub(logger)
	jobRepo := store.NewMemoryJobRepository(hub, logger)
	runner := gallerydl.NewRunner(cfg.Downloader, logger)
	checker := netcheck.NewChecker(cfg.Downloader.PreflightTimeout.Std())
	policy := usecase.NewRetryPolicy(cfg.Downloader.MaxAttempts, cfg.Downloader.RetryDelay.Std())

	downloadUC := usecase.NewDownloadUseCase(
		jobRepo, runner, vault, checker, policy,
		cfg.Downloader.MaxConcurrent, cfg.Storage.CookiesDir, logger,
	)
	sessionUC := usecase.NewSessionUseCase(
		jobRepo, downloadUC, vault,
		cfg.Storage.DownloadsDir, cfg.Storage.CookiesDir, logger,
	)

	// ---- HTTP ----
	apiServer := web.NewServer(cfg.Server.Port, sessionUC, logger)
	go func() {
		if err := apiServer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	metricsServer := web.NewMetricsServer(cfg.Admin.Port, logger)
	go func() {
		if err := metricsServer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := downloadUC.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("downloads did not settle before deadline")
	}
	hub.Close()
}
