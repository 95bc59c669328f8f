package engine

import (
	"github.com/rs/zerolog/log"
)

// MarketTrade is liquidity observed between third parties at one timestep.
// Quantity is the remaining magnitude; the matcher decrements it so a single
// market trade is never double-counted across the strategy's orders.
type MarketTrade struct {
	Price    int64
	Quantity int64
}

// TradeFeed holds the market trades of one symbol for one timestep. Supplied
// fresh per timestep and discarded afterwards regardless of remaining amount.
type TradeFeed struct {
	trades []*MarketTrade
}

// NewTradeFeed normalizes raw market trades: quantity signs carry no meaning
// for the engine, so magnitudes are taken; non-positive prices indicate bad
// input data and are dropped with a warning.
func NewTradeFeed(symbol string, trades []MarketTrade) *TradeFeed {
	f := &TradeFeed{trades: make([]*MarketTrade, 0, len(trades))}
	for _, mt := range trades {
		if mt.Price <= 0 {
			log.Warn().
				Str("symbol", symbol).
				Int64("price", mt.Price).
				Int64("quantity", mt.Quantity).
				Msg("Market trade with non-positive price, dropping")
			continue
		}
		qty := mt.Quantity
		if qty < 0 {
			qty = -qty
		}
		f.trades = append(f.trades, &MarketTrade{Price: mt.Price, Quantity: qty})
	}
	return f
}

// Each visits the feed's trades in feed order until visit returns false.
// The matcher mutates the visited trade's Quantity as it consumes it.
func (f *TradeFeed) Each(visit func(mt *MarketTrade) bool) {
	for _, mt := range f.trades {
		if !visit(mt) {
			return
		}
	}
}

// Remaining reports the total unconsumed market-trade liquidity.
func (f *TradeFeed) Remaining() int64 {
	var total int64
	for _, mt := range f.trades {
		total += mt.Quantity
	}
	return total
}
