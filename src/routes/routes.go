package routes

import (
	"github.com/gofiber/fiber/v2"

	"trading-venue/src/config"
	"trading-venue/src/handlers"
	"trading-venue/src/middleware"
)

func SetupRoutes(app *fiber.App, orderHandler *handlers.OrderHandler, cfg *config.Config) *middleware.ServiceAvailability {
	serviceAvailability := middleware.NewServiceAvailability(cfg.Server)
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger(cfg.Server.RequestLogging))

	api := app.Group("/api/v1")

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", orderHandler.SubmitOrder)
	api.Post("/messages", orderHandler.SubmitMessages)
	api.Get("/orders/:instrument/:side/:id", orderHandler.GetOrder)
	api.Delete("/orders/:instrument/:side/:id", orderHandler.CancelOrder)
	api.Get("/orderbook/:instrument", orderHandler.GetOrderBook)
	api.Get("/aggregations/:by", orderHandler.GetAggregation)

	app.Get("/health", orderHandler.HealthCheck)
	app.Get("/metrics", orderHandler.Metrics)

	return serviceAvailability
}
