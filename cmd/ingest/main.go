package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"xmlrelay/docs/ingestdocs"
	"xmlrelay/internal/config"
	"xmlrelay/internal/database"
	"xmlrelay/internal/forwarder"
	handlers "xmlrelay/internal/http/handler"
	"xmlrelay/internal/logging"
	"xmlrelay/internal/otel"
	"xmlrelay/internal/server"
	"xmlrelay/internal/service"
	"xmlrelay/internal/staging"
	"xmlrelay/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title xmlrelay ingest API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel).With("service", "ingest")

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest_exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, "xmlrelay-ingest", logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	stager, health, err := newStager(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	outcomes, err := service.NewOutcomeCounter(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	fwd := forwarder.New(cfg.Ingest.StorageServiceURL, cfg.Storage.APIKey, forwarder.WithTimeout(cfg.Ingest.ForwardTimeout))
	svc := service.NewIngestService(stager, fwd, logger, outcomes)

	app, err := server.NewIngestApp(svc, health, server.Options{
		Registry:  reg,
		Location:  cfg.Location(),
		BodyLimit: cfg.Ingest.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	handlers.RegisterSwagger(app, ingestdocs.SwaggerInfo)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	logger.Info("ingest_listening",
		"port", cfg.Port,
		"staging_backend", cfg.Ingest.StagingBackend,
		"storage_service_url", cfg.Ingest.StorageServiceURL,
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// newStager selects the staging backend named by STAGING_BACKEND and the
// dependency /health should ping, if any.
func newStager(ctx context.Context, cfg *config.AppConfig) (staging.Stager, database.Pinger, error) {
	switch cfg.Ingest.StagingBackend {
	case "disk":
		if err := os.MkdirAll(cfg.Ingest.StagingDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create staging dir: %w", err)
		}
		return staging.NewDiskStager(cfg.Ingest.StagingDir), nil, nil
	case "minio":
		objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		return staging.NewObjectStager(objStore), objStore, nil
	default:
		return nil, nil, fmt.Errorf("unsupported STAGING_BACKEND %q", cfg.Ingest.StagingBackend)
	}
}
