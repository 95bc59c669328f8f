package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"backtest-engine/src/config"
	"backtest-engine/src/engine"
	"backtest-engine/src/feed"
	"backtest-engine/src/handlers"
	"backtest-engine/src/logger"
	"backtest-engine/src/routes"
	"backtest-engine/src/sim"
)

func main() {
	logger.InitLogger()
	defer logger.CloseLogger()
	log := logger.GetLogger()

	cfg := config.Load()

	if cfg.RunDataFile != "" {
		runBatch(cfg)
		return
	}

	log.Info().Msg("Initializing Backtest Engine")

	runHandler := handlers.NewRunHandler(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, runHandler, cfg)

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(cfg.Port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Msg("Backtest Engine started")

	log.Info().
		Strs("endpoints", []string{
			"POST /api/v1/runs",
			"GET  /api/v1/runs/:id",
			"GET  /api/v1/runs/:id/trades",
			"GET  /health",
			"GET  /metrics",
		}).
		Msg("API endpoints registered")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// edge case: a bind failure can surface after startup logging; treat it
	// as fatal whenever it arrives rather than only checking once.
	if err := awaitShutdown(serverError, quit); err != nil {
		log.Fatal().
			Err(err).
			Str("port", cfg.Port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	}
	log.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}
}

// awaitShutdown blocks until the server reports a startup error or a
// shutdown signal arrives. A nil return means a clean signal-driven shutdown.
func awaitShutdown(serverError <-chan error, quit <-chan os.Signal) error {
	select {
	case err := <-serverError:
		return err
	case <-quit:
		return nil
	}
}

// runBatch executes a single backtest from RUN_DATA_FILE / RUN_TRADES_FILE
// and logs the report. A signal cancels the run cleanly between timesteps.
func runBatch(cfg *config.Config) {
	log := logger.GetLogger()

	log.Info().
		Str("data_file", cfg.RunDataFile).
		Str("trades_file", cfg.RunTradesFile).
		Msg("Starting batch backtest run")

	src, err := feed.Load(cfg.RunDataFile, cfg.RunTradesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load historical data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger := engine.NewPositionLedger(cfg.PositionLimit, cfg.PositionLimits)
	strategy := sim.NewMeanReversion(sim.DefaultMeanReversionConfig())

	started := time.Now()
	result, err := sim.NewSimulator(ledger).Run(ctx, src, strategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest run aborted")
	}

	event := log.Info().
		Str("run_id", result.RunID).
		Int("timesteps", result.Timesteps).
		Int("trades", len(result.Trades)).
		Dur("elapsed", time.Since(started))
	for symbol, position := range result.Positions {
		event = event.Int64("position_"+symbol, position)
	}
	event.Msg("Batch backtest run complete")
}
