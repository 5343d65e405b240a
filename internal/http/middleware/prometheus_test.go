package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMiddleware(reg, "storage")
	require.NoError(t, err)

	app := fiber.New()
	app.Use(pm.Handler())
	return app, pm, reg
}

func TestPrometheusMiddleware_StatusLabels(t *testing.T) {
	app, pm, _ := newPromApp(t)

	app.Get("/api/ProcessedFiles", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Delete("/api/ProcessedFiles/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/api/ProcessedFiles/ReceiveProcessedFile", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad request")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	tests := []struct {
		method, target string
		path, status   string
	}{
		{"GET", "/api/ProcessedFiles", "/api/ProcessedFiles", "200"},
		{"DELETE", "/api/ProcessedFiles/7", "/api/ProcessedFiles/:id", "204"},
		{"POST", "/api/ProcessedFiles/ReceiveProcessedFile", "/api/ProcessedFiles/ReceiveProcessedFile", "400"},
		{"GET", "/boom", "/boom", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			_, err := app.Test(httptest.NewRequest(tt.method, tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, float64(1), testutil.ToFloat64(pm.requestCount.WithLabelValues(tt.method, tt.path, tt.status)))
		})
	}

	assert.Equal(t, float64(0), testutil.ToFloat64(pm.inFlight))
	assert.Equal(t, 4, testutil.CollectAndCount(pm.requestDuration))
}

func TestPrometheusMiddleware_SkipsMetricsPath(t *testing.T) {
	app, _, reg := newPromApp(t)
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrometheusMiddleware_InFlightDuringRequest(t *testing.T) {
	app, pm, _ := newPromApp(t)

	var during float64
	app.Get("/slow", func(c *fiber.Ctx) error {
		during = testutil.ToFloat64(pm.inFlight)
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/slow", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(pm.inFlight))
}

func TestPrometheusMiddleware_ServiceLabel(t *testing.T) {
	app, _, reg := newPromApp(t)
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var service string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "service" {
					service = lp.GetValue()
				}
			}
			assert.Equal(t, "storage", service, mf.GetName())
		}
	}
}

func TestNewPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg, "ingest")
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg, "ingest")
	assert.Error(t, err)
}
