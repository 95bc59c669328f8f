package models

type RunRequest struct {
	BookFile       string           `json:"book_file"`
	TradesFile     string           `json:"trades_file,omitempty"`
	PositionLimit  *int64           `json:"position_limit,omitempty"`
	PositionLimits map[string]int64 `json:"position_limits,omitempty"`
	Strategy       StrategyParams   `json:"strategy"`
}

type StrategyParams struct {
	Lookback  int     `json:"lookback,omitempty"`
	EntryZ    float64 `json:"entry_z,omitempty"`
	ExitZ     float64 `json:"exit_z,omitempty"`
	OrderSize int64   `json:"order_size,omitempty"`
}

type RunResponse struct {
	RunID      string           `json:"run_id"`
	Timesteps  int              `json:"timesteps"`
	TradeCount int              `json:"trade_count"`
	Positions  map[string]int64 `json:"positions"`
}

type TradeInfo struct {
	TradeID   string `json:"trade_id"`
	Timestamp int64  `json:"timestamp"`
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`    // price in ticks
	Quantity  int64  `json:"quantity"` // signed: positive buys, negative sells
}

type RunTradesResponse struct {
	RunID  string      `json:"run_id"`
	Trades []TradeInfo `json:"trades"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RunsCompleted int64  `json:"runs_completed"`
}

type MetricsResponse struct {
	RunsStarted     int64   `json:"runs_started"`
	RunsCompleted   int64   `json:"runs_completed"`
	RunsFailed      int64   `json:"runs_failed"`
	TradesGenerated int64   `json:"trades_generated"`
	RunP50Ms        float64 `json:"run_p50_ms"`
	RunP99Ms        float64 `json:"run_p99_ms"`
}
