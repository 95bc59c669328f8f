package handlers

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"backtest-engine/src/config"
	"backtest-engine/src/engine"
	"backtest-engine/src/feed"
	"backtest-engine/src/models"
	"backtest-engine/src/sim"
)

type RunHandler struct {
	Config    *config.Config
	StartTime time.Time

	RunsStarted     int64
	RunsCompleted   int64
	RunsFailed      int64
	TradesGenerated int64

	runsMu sync.RWMutex
	runs   map[string]*sim.RunResult

	latenciesMu  sync.Mutex
	latencies    []time.Duration
	maxLatencies int
}

func NewRunHandler(cfg *config.Config) *RunHandler {
	return &RunHandler{
		Config:       cfg,
		StartTime:    time.Now(),
		runs:         make(map[string]*sim.RunResult),
		latencies:    make([]time.Duration, 0, 1024),
		maxLatencies: 1024,
	}
}

// StartRun executes a backtest synchronously and returns its report.
func (h *RunHandler) StartRun(c *fiber.Ctx) error {
	var req models.RunRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().Err(err).Str("ip", c.IP()).Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if err := validateRunRequest(&req); err != nil {
		log.Warn().Err(err).Str("book_file", req.BookFile).Msg("Invalid run request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	src, err := feed.Load(req.BookFile, req.TradesFile)
	if err != nil {
		log.Warn().Err(err).Str("book_file", req.BookFile).Msg("Failed to load historical data")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Failed to load historical data: " + err.Error(),
		})
	}

	limit := h.Config.PositionLimit
	if req.PositionLimit != nil {
		limit = *req.PositionLimit
	}
	limits := make(map[string]int64, len(h.Config.PositionLimits)+len(req.PositionLimits))
	for symbol, l := range h.Config.PositionLimits {
		limits[symbol] = l
	}
	for symbol, l := range req.PositionLimits {
		limits[symbol] = l
	}

	ledger := engine.NewPositionLedger(limit, limits)
	strategy := sim.NewMeanReversion(sim.MeanReversionConfig{
		Lookback:  req.Strategy.Lookback,
		EntryZ:    req.Strategy.EntryZ,
		ExitZ:     req.Strategy.ExitZ,
		OrderSize: req.Strategy.OrderSize,
	})

	atomic.AddInt64(&h.RunsStarted, 1)
	started := time.Now()

	result, err := sim.NewSimulator(ledger).Run(c.Context(), src, strategy)

	h.recordLatency(time.Since(started))

	if err != nil {
		atomic.AddInt64(&h.RunsFailed, 1)
		log.Error().Err(err).Str("book_file", req.BookFile).Msg("Backtest run failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Backtest run failed: " + err.Error(),
		})
	}

	h.runsMu.Lock()
	h.runs[result.RunID] = result
	h.runsMu.Unlock()

	atomic.AddInt64(&h.RunsCompleted, 1)
	atomic.AddInt64(&h.TradesGenerated, int64(len(result.Trades)))

	log.Info().
		Str("run_id", result.RunID).
		Int("timesteps", result.Timesteps).
		Int("trades", len(result.Trades)).
		Dur("elapsed", time.Since(started)).
		Msg("Backtest run completed")

	return c.Status(fiber.StatusCreated).JSON(runResponse(result))
}

func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	result, ok := h.lookupRun(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Run not found",
		})
	}
	return c.Status(fiber.StatusOK).JSON(runResponse(result))
}

func (h *RunHandler) GetRunTrades(c *fiber.Ctx) error {
	result, ok := h.lookupRun(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Run not found",
		})
	}

	trades := make([]models.TradeInfo, 0, len(result.Trades))
	for _, t := range result.Trades {
		trades = append(trades, models.TradeInfo{
			TradeID:   t.TradeID,
			Timestamp: t.Timestamp,
			Symbol:    t.Symbol,
			Price:     t.Price,
			Quantity:  t.Quantity,
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.RunTradesResponse{
		RunID:  result.RunID,
		Trades: trades,
	})
}

func (h *RunHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		RunsCompleted: atomic.LoadInt64(&h.RunsCompleted),
	})
}

func (h *RunHandler) Metrics(c *fiber.Ctx) error {
	p50, p99 := h.latencyPercentiles()
	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		RunsStarted:     atomic.LoadInt64(&h.RunsStarted),
		RunsCompleted:   atomic.LoadInt64(&h.RunsCompleted),
		RunsFailed:      atomic.LoadInt64(&h.RunsFailed),
		TradesGenerated: atomic.LoadInt64(&h.TradesGenerated),
		RunP50Ms:        p50,
		RunP99Ms:        p99,
	})
}

func (h *RunHandler) lookupRun(id string) (*sim.RunResult, bool) {
	h.runsMu.RLock()
	defer h.runsMu.RUnlock()
	result, ok := h.runs[id]
	return result, ok
}

func (h *RunHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()
	h.latencies = append(h.latencies, latency)
	if len(h.latencies) > h.maxLatencies {
		h.latencies = h.latencies[len(h.latencies)-h.maxLatencies:]
	}
}

func (h *RunHandler) latencyPercentiles() (p50, p99 float64) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	if len(h.latencies) == 0 {
		return 0, 0
	}

	sorted := make([]time.Duration, len(h.latencies))
	copy(sorted, h.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(q float64) int {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}

	p50 = float64(sorted[idx(0.50)].Nanoseconds()) / 1e6
	p99 = float64(sorted[idx(0.99)].Nanoseconds()) / 1e6
	return p50, p99
}

func runResponse(result *sim.RunResult) models.RunResponse {
	return models.RunResponse{
		RunID:      result.RunID,
		Timesteps:  result.Timesteps,
		TradeCount: len(result.Trades),
		Positions:  result.Positions,
	}
}

func validateRunRequest(req *models.RunRequest) error {
	if req.BookFile == "" {
		return &engine.ValidationError{Message: "Invalid run: book_file is required"}
	}
	if req.PositionLimit != nil && *req.PositionLimit < 0 {
		return &engine.ValidationError{Message: "Invalid run: position_limit must be >= 0"}
	}
	for symbol, limit := range req.PositionLimits {
		if limit < 0 {
			return &engine.ValidationError{Message: "Invalid run: position limit for " + symbol + " must be >= 0"}
		}
	}
	if req.Strategy.Lookback < 0 || req.Strategy.OrderSize < 0 {
		return &engine.ValidationError{Message: "Invalid run: strategy parameters must be >= 0"}
	}
	return nil
}
