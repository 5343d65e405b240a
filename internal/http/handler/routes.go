package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	"xmlrelay/internal/database"
	"xmlrelay/internal/http/middleware"
	"xmlrelay/internal/service"
)

// RegisterHealthRoutes attaches /health and /healthz.
func RegisterHealthRoutes(app fiber.Router, db database.Pinger) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
}

// RegisterMetricsRoute exposes the metrics gathered by g on /metrics.
func RegisterMetricsRoute(app fiber.Router, g prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// RegisterIngestRoutes attaches the upload endpoint of the ingest service.
func RegisterIngestRoutes(app fiber.Router, svc service.IngestService) {
	api := app.Group("/api/FileUpload")
	api.Post("/upload", Upload(svc))
}

// RegisterStorageRoutes attaches the processed files endpoints of the storage service.
// Only the receive endpoint requires the ApiKey header.
func RegisterStorageRoutes(app fiber.Router, svc service.ProcessedFileService, apiKey string) {
	api := app.Group("/api/ProcessedFiles")
	api.Post("/ReceiveProcessedFile", middleware.APIKey(apiKey, InvalidAPIKey), ReceiveProcessedFile(svc))
	api.Get("/", ListProcessedFiles(svc))
	api.Get("/:id", GetProcessedFile(svc))
	api.Get("/:id/download", DownloadProcessedFile(svc))
	api.Delete("/:id", DeleteProcessedFile(svc))
}

// RegisterSwagger serves the Swagger UI for info with the request's host and scheme.
func RegisterSwagger(app fiber.Router, info *swag.Spec) {
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		info.Host = c.Get("Host")
		info.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})
}
