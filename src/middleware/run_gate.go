package middleware

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RunGate caps how many backtest runs execute concurrently. Runs are
// synchronous and CPU-heavy, so unbounded concurrency would starve the
// process; excess requests get a 503 instead of queueing.
type RunGate struct {
	maxInFlight int64
	inFlight    atomic.Int64
}

// NewRunGate builds a gate allowing maxInFlight concurrent runs. A limit of
// zero or less disables the gate.
func NewRunGate(maxInFlight int64) *RunGate {
	return &RunGate{maxInFlight: maxInFlight}
}

func (g *RunGate) InFlight() int64 {
	return g.inFlight.Load()
}

func (g *RunGate) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if g.maxInFlight <= 0 {
			return c.Next()
		}

		if current := g.inFlight.Load(); current >= g.maxInFlight {
			log.Warn().
				Str("path", c.Path()).
				Int64("in_flight", current).
				Int64("max_in_flight", g.maxInFlight).
				Msg("Run rejected: too many concurrent runs")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Service unavailable",
				"message": "Too many concurrent backtest runs. Please try again later.",
			})
		}

		g.inFlight.Add(1)
		defer g.inFlight.Add(-1)

		return c.Next()
	}
}
