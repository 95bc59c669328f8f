package sim

import (
	"backtest-engine/src/engine"
)

// MarketState is the read-only view handed to a strategy for one timestep:
// the per-symbol book snapshots, the market trades observed between third
// parties, and the strategy's current positions. Strategies must not retain
// it across timesteps.
type MarketState struct {
	Timestamp    int64
	Books        map[string]*engine.Snapshot
	MarketTrades map[string][]engine.MarketTrade
	Positions    map[string]int64
}

func (s *MarketState) Position(symbol string) int64 {
	return s.Positions[symbol]
}

// MidPrice returns the midpoint of the best bid and ask, when both exist.
func (s *MarketState) MidPrice(symbol string) (float64, bool) {
	book, ok := s.Books[symbol]
	if !ok {
		return 0, false
	}
	bid, _, hasBid := book.BestBid()
	ask, _, hasAsk := book.BestAsk()
	if !hasBid || !hasAsk {
		return 0, false
	}
	return float64(bid+ask) / 2, true
}

// Strategy decides the orders to submit for one timestep. Any state a
// strategy needs across timesteps (price histories, running averages) is
// owned by the strategy value itself.
type Strategy interface {
	Run(state *MarketState) map[string][]engine.Order
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc func(state *MarketState) map[string][]engine.Order

func (f StrategyFunc) Run(state *MarketState) map[string][]engine.Order {
	return f(state)
}
