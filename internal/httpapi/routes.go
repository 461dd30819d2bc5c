package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"killboard-stats/internal/observability"
)

// NewApp wires the stats routes, health and Prometheus metrics.
func NewApp(h *StatsHandler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(recordRequests)

	app.Get("/stats", h.GetStats)
	app.Get("/health", health)
	app.Get("/metrics", adaptor.HTTPHandler(observability.Handler()))

	return app
}

func health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func recordRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	route := c.Route().Path
	observability.RecordHTTPRequest(route, c.Response().StatusCode(), time.Since(start))
	return err
}
