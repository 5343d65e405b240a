// Package server assembles the Fiber applications of the ingest and storage services.
package server

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"xmlrelay/internal/database"
	handlers "xmlrelay/internal/http/handler"
	"xmlrelay/internal/http/middleware"
	"xmlrelay/internal/service"
)

// Options are shared by both services.
type Options struct {
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
	// AccessLog defaults to stdout.
	AccessLog io.Writer
	Location  *time.Location
	// BodyLimit in bytes; zero keeps Fiber's default.
	BodyLimit int
}

func newApp(name string, opts Options, health database.Pinger) (*fiber.App, error) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	prom, err := middleware.NewPrometheusMiddleware(opts.Registry, name)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    opts.BodyLimit,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.LoggerWithWriter(opts.AccessLog, opts.Location))
	app.Use(otelfiber.Middleware())
	app.Use(prom.Handler())

	handlers.RegisterHealthRoutes(app, health)
	handlers.RegisterMetricsRoute(app, opts.Registry)

	return app, nil
}

// NewIngestApp builds the ingest service application. staging backs /health and may be nil.
func NewIngestApp(svc service.IngestService, staging database.Pinger, opts Options) (*fiber.App, error) {
	app, err := newApp("ingest", opts, staging)
	if err != nil {
		return nil, err
	}
	handlers.RegisterIngestRoutes(app, svc)
	return app, nil
}

// NewStorageApp builds the storage service application. db backs /health and may be nil.
func NewStorageApp(svc service.ProcessedFileService, db database.Pinger, apiKey string, opts Options) (*fiber.App, error) {
	app, err := newApp("storage", opts, db)
	if err != nil {
		return nil, err
	}
	handlers.RegisterStorageRoutes(app, svc, apiKey)
	return app, nil
}
