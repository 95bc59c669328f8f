package routes

import (
	"github.com/gofiber/fiber/v2"

	"backtest-engine/src/config"
	"backtest-engine/src/handlers"
	"backtest-engine/src/middleware"
)

func SetupRoutes(app *fiber.App, runHandler *handlers.RunHandler, cfg *config.Config) {
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	runGate := middleware.NewRunGate(cfg.MaxConcurrentRuns)
	api.Use(runGate.Middleware())

	api.Post("/runs", runHandler.StartRun)
	api.Get("/runs/:id", runHandler.GetRun)
	api.Get("/runs/:id/trades", runHandler.GetRunTrades)

	app.Get("/health", runHandler.HealthCheck)
	app.Get("/metrics", runHandler.Metrics)
}
