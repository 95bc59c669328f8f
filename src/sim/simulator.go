package sim

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"backtest-engine/src/engine"
	"backtest-engine/src/feed"
)

// Simulator drives one backtest run: it iterates historical timesteps in
// order, invokes the strategy, matches the submitted orders, and applies the
// confirmed trades before advancing. The position ledger is the only state
// carried from one timestep to the next.
type Simulator struct {
	matcher *engine.Matcher
	ledger  *engine.PositionLedger
}

func NewSimulator(ledger *engine.PositionLedger) *Simulator {
	return &Simulator{
		matcher: engine.NewMatcher(),
		ledger:  ledger,
	}
}

// RunResult is the output of a completed run: the ordered execution log plus
// the final per-symbol positions, sufficient to reconstruct position history
// and realized P&L externally.
type RunResult struct {
	RunID     string
	Timesteps int
	Trades    []*engine.Trade
	Positions map[string]int64
}

// Run executes the simulation to completion. Cancelling the context stops
// the run cleanly between timesteps; no timestep is ever half-processed.
func (s *Simulator) Run(ctx context.Context, src *feed.Source, strategy Strategy) (*RunResult, error) {
	result := &RunResult{
		RunID:  uuid.New().String(),
		Trades: make([]*engine.Trade, 0),
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("timesteps", src.Len()).
		Msg("Backtest run started")

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, ok := src.Next()
		if !ok {
			break
		}

		state, feeds := s.buildState(step)
		orders := strategy.Run(state)

		// Lexicographic symbol order keeps runs deterministic.
		symbols := make([]string, 0, len(orders))
		for symbol := range orders {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		stepTrades := 0
		for _, symbol := range symbols {
			confirmed := s.matcher.MatchTimestep(step.Timestamp, state.Books[symbol], feeds[symbol], orders[symbol], s.ledger)
			result.Trades = append(result.Trades, confirmed...)
			stepTrades += len(confirmed)
		}

		result.Timesteps++

		log.Debug().
			Str("run_id", result.RunID).
			Int64("timestamp", step.Timestamp).
			Int("symbols", len(symbols)).
			Int("trades", stepTrades).
			Msg("Timestep processed")
	}

	result.Positions = s.ledger.Positions()

	log.Info().
		Str("run_id", result.RunID).
		Int("timesteps", result.Timesteps).
		Int("trades", len(result.Trades)).
		Msg("Backtest run complete")

	return result, nil
}

// buildState reconstructs the per-symbol snapshots and trade feeds for one
// timestep. Both are owned by this timestep only and discarded afterwards.
func (s *Simulator) buildState(step *feed.Timestep) (*MarketState, map[string]*engine.TradeFeed) {
	state := &MarketState{
		Timestamp:    step.Timestamp,
		Books:        make(map[string]*engine.Snapshot, len(step.Symbols)),
		MarketTrades: make(map[string][]engine.MarketTrade, len(step.Symbols)),
		Positions:    s.ledger.Positions(),
	}
	feeds := make(map[string]*engine.TradeFeed, len(step.Symbols))

	for symbol, data := range step.Symbols {
		state.Books[symbol] = engine.NewSnapshot(symbol, data.Bids, data.Asks)
		if len(data.Trades) > 0 {
			state.MarketTrades[symbol] = append([]engine.MarketTrade(nil), data.Trades...)
		}
		feeds[symbol] = engine.NewTradeFeed(symbol, data.Trades)
	}

	return state, feeds
}
