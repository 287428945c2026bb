package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	// Health check routes
	deps.HealthHandler.RegisterRoutes(app)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	deps.ReelsHandler.RegisterRoutes(app)
	deps.ItinerariesHandler.RegisterRoutes(app)
	deps.RunsHandler.RegisterRoutes(app)
	deps.SessionsHandler.RegisterRoutes(app)
	deps.MetricsHandler.RegisterRoutes(app)
	deps.EventsHandler.RegisterRoutes(app)
}
