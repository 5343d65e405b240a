package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"xmlrelay/docs/storagedocs"
	"xmlrelay/internal/config"
	"xmlrelay/internal/database"
	"xmlrelay/internal/database/migration"
	handlers "xmlrelay/internal/http/handler"
	"xmlrelay/internal/logging"
	"xmlrelay/internal/otel"
	"xmlrelay/internal/repository"
	"xmlrelay/internal/repository/memory"
	"xmlrelay/internal/repository/postgres"
	"xmlrelay/internal/repository/sqlite"
	"xmlrelay/internal/server"
	"xmlrelay/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title xmlrelay storage API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel).With("service", "storage")

	if err := run(cfg, logger); err != nil {
		logger.Error("storage_exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.APIKey == "" {
		return errors.New("PROCESSED_FILES_API_KEY is required")
	}

	shutdownTracing, err := otel.Init(ctx, "xmlrelay-storage", logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	repo, pinger, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := service.NewStoredFilesGauge(reg, repo); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	svc := service.NewProcessedFileService(repo)
	app, err := server.NewStorageApp(svc, pinger, cfg.Storage.APIKey, server.Options{
		Registry:  reg,
		Location:  cfg.Location(),
		BodyLimit: cfg.Storage.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	handlers.RegisterSwagger(app, storagedocs.SwaggerInfo)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	logger.Info("storage_listening", "port", cfg.Port, "db_driver", cfg.Database.Driver)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// openStore selects the record store backend named by DB_DRIVER and applies its schema.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.ProcessedFileRepository, database.Pinger, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Host); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return postgres.NewProcessedFilePostgres(db), db, func() { _ = db.Close() }, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		logger.Info("sqlite_ready", "component", "migration", "path", cfg.SQLitePath)
		return sqlite.NewProcessedFileSQLite(db), db, func() { _ = db.Close() }, nil

	case "memory":
		logger.Warn("memory_store_in_use", "component", "repository")
		return memory.NewProcessedFileMemory(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
