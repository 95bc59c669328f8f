package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Matcher resolves a strategy's orders for one symbol at one timestep into
// confirmed trades. Book liquidity is always consumed before market-trade
// liquidity, fills against the book execute at the level's price, fills
// against market trades execute at the order's own price, and any unfilled
// remainder is dropped rather than carried forward.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

type MatchResult struct {
	Status            OrderStatus
	FilledQuantity    int64 // magnitude filled across all trades
	RemainingQuantity int64 // magnitude dropped at end of timestep
	Trades            []*Trade
}

// MatchOrder resolves a single order against the timestep's remaining book
// and market-trade liquidity, applying confirmed trades to the ledger so the
// next order's limit pre-check sees an up-to-date position.
//
// A zero-quantity order is a no-op. A non-positive price is a strategy bug
// and returns an error; the caller decides whether to abort or skip. An order
// whose full fill would breach the position limit is rejected whole.
func (m *Matcher) MatchOrder(timestamp int64, order Order, book *Snapshot, feed *TradeFeed, ledger *PositionLedger) (*MatchResult, error) {
	if order.Price <= 0 {
		return nil, &ValidationError{Message: "Invalid order: price must be positive"}
	}

	result := &MatchResult{
		Status: StatusDropped,
		Trades: make([]*Trade, 0),
	}

	if order.Quantity == 0 {
		return result, nil
	}

	if !ledger.WithinLimit(order.Symbol, order.Quantity) {
		log.Debug().
			Str("symbol", order.Symbol).
			Int64("quantity", order.Quantity).
			Int64("position", ledger.Position(order.Symbol)).
			Int64("limit", ledger.Limit(order.Symbol)).
			Msg("Order rejected: position limit")
		result.Status = StatusRejected
		result.RemainingQuantity = order.Size()
		return result, nil
	}

	remaining := order.Size()
	remaining = m.sweepBook(timestamp, order, book, remaining, result)
	if remaining > 0 {
		remaining = m.sweepMarketTrades(timestamp, order, feed, remaining, result)
	}

	result.RemainingQuantity = remaining
	result.FilledQuantity = order.Size() - remaining

	switch {
	case result.FilledQuantity == 0:
		result.Status = StatusDropped
	case remaining > 0:
		result.Status = StatusPartialFill
	default:
		result.Status = StatusFilled
	}

	for _, t := range result.Trades {
		ledger.Apply(t)
	}

	return result, nil
}

// sweepBook consumes book levels priced at or better than the order's limit,
// best price first, one trade per level touched, at the level's price.
func (m *Matcher) sweepBook(timestamp int64, order Order, book *Snapshot, remaining int64, result *MatchResult) int64 {
	if book == nil {
		return remaining
	}

	consume := func(lv *Level) bool {
		if lv.Volume <= 0 {
			return true // exhausted earlier this timestep, skip
		}
		fill := remaining
		if fill > lv.Volume {
			fill = lv.Volume
		}
		lv.Volume -= fill
		remaining -= fill
		result.Trades = append(result.Trades, m.newTrade(timestamp, order, lv.Price, fill))
		return remaining > 0
	}

	if order.IsBuy() {
		book.EachAsk(func(lv *Level) bool {
			if lv.Price > order.Price {
				return false
			}
			return consume(lv)
		})
	} else {
		book.EachBid(func(lv *Level) bool {
			if lv.Price < order.Price {
				return false
			}
			return consume(lv)
		})
	}

	return remaining
}

// sweepMarketTrades joins price-compatible market trades in feed order. The
// counterpart is assumed willing to transact at the strategy's limit price,
// so fills execute at the order's own price, not the market trade's.
func (m *Matcher) sweepMarketTrades(timestamp int64, order Order, feed *TradeFeed, remaining int64, result *MatchResult) int64 {
	if feed == nil {
		return remaining
	}

	feed.Each(func(mt *MarketTrade) bool {
		if mt.Quantity <= 0 {
			return true
		}
		if order.IsBuy() {
			if mt.Price > order.Price {
				return true
			}
		} else {
			if mt.Price < order.Price {
				return true
			}
		}
		fill := remaining
		if fill > mt.Quantity {
			fill = mt.Quantity
		}
		mt.Quantity -= fill
		remaining -= fill
		result.Trades = append(result.Trades, m.newTrade(timestamp, order, order.Price, fill))
		return remaining > 0
	})

	return remaining
}

func (m *Matcher) newTrade(timestamp int64, order Order, price, fill int64) *Trade {
	quantity := fill
	if !order.IsBuy() {
		quantity = -fill
	}
	return &Trade{
		TradeID:   uuid.New().String(),
		Timestamp: timestamp,
		Symbol:    order.Symbol,
		Price:     price,
		Quantity:  quantity,
	}
}

// MatchTimestep resolves a symbol's orders strictly in submission order
// against shared, depleting liquidity pools, returning the confirmed trades.
// Invalid orders are logged and skipped; no single bad order aborts the run.
func (m *Matcher) MatchTimestep(timestamp int64, book *Snapshot, feed *TradeFeed, orders []Order, ledger *PositionLedger) []*Trade {
	confirmed := make([]*Trade, 0)
	for _, order := range orders {
		result, err := m.MatchOrder(timestamp, order, book, feed, ledger)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("timestamp", timestamp).
				Str("symbol", order.Symbol).
				Int64("price", order.Price).
				Int64("quantity", order.Quantity).
				Msg("Skipping invalid order")
			continue
		}
		confirmed = append(confirmed, result.Trades...)
	}
	return confirmed
}
