package sim

import (
	"math"
	"sort"

	"backtest-engine/src/engine"
)

// MeanReversionConfig tunes the bundled example strategy.
type MeanReversionConfig struct {
	Lookback   int     // window for the mean/stddev of the mid price
	EntryZ     float64 // z-score that triggers an entry
	ExitZ      float64 // z-score below which an open position is flattened
	OrderSize  int64
	MaxHistory int
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		Lookback:   50,
		EntryZ:     1.2,
		ExitZ:      0.5,
		OrderSize:  5,
		MaxHistory: 500,
	}
}

// MeanReversion quotes against stretched mid prices: it sells into the bid
// when the mid trades well above its rolling mean, buys from the ask when it
// trades well below, and flattens once the z-score normalizes. All state is
// owned by the strategy value, so independent instances backtest in parallel
// deterministically.
type MeanReversion struct {
	cfg     MeanReversionConfig
	history map[string][]float64
}

func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	def := DefaultMeanReversionConfig()
	if cfg.Lookback <= 1 {
		cfg.Lookback = def.Lookback
	}
	if cfg.EntryZ <= 0 {
		cfg.EntryZ = def.EntryZ
	}
	if cfg.ExitZ <= 0 || cfg.ExitZ >= cfg.EntryZ {
		cfg.ExitZ = def.ExitZ
	}
	if cfg.OrderSize <= 0 {
		cfg.OrderSize = def.OrderSize
	}
	if cfg.MaxHistory < cfg.Lookback {
		// The history buffer must hold at least one full lookback window,
		// or the strategy can never leave warmup.
		cfg.MaxHistory = cfg.Lookback
	}
	return &MeanReversion{
		cfg:     cfg,
		history: make(map[string][]float64),
	}
}

func (s *MeanReversion) Run(state *MarketState) map[string][]engine.Order {
	result := make(map[string][]engine.Order)

	symbols := make([]string, 0, len(state.Books))
	for symbol := range state.Books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		book := state.Books[symbol]
		bid, _, hasBid := book.BestBid()
		ask, _, hasAsk := book.BestAsk()
		if !hasBid || !hasAsk {
			continue
		}

		mid := float64(bid+ask) / 2
		hist := append(s.history[symbol], mid)
		if len(hist) > s.cfg.MaxHistory {
			hist = hist[len(hist)-s.cfg.MaxHistory:]
		}
		s.history[symbol] = hist

		if len(hist) < s.cfg.Lookback {
			continue
		}

		mean, stddev := meanStddev(hist[len(hist)-s.cfg.Lookback:])
		if stddev == 0 {
			continue
		}
		z := (mid - mean) / stddev
		pos := state.Position(symbol)

		var orders []engine.Order
		switch {
		case z > s.cfg.EntryZ:
			// Rich mid: sell into the best bid.
			if order, err := engine.NewOrder(symbol, bid, -s.cfg.OrderSize); err == nil {
				orders = append(orders, order)
			}
		case z < -s.cfg.EntryZ:
			// Cheap mid: lift the best ask.
			if order, err := engine.NewOrder(symbol, ask, s.cfg.OrderSize); err == nil {
				orders = append(orders, order)
			}
		case math.Abs(z) < s.cfg.ExitZ && pos != 0:
			// Signal normalized: flatten at the touch we can trade against.
			price := bid
			if pos < 0 {
				price = ask
			}
			if order, err := engine.NewOrder(symbol, price, -pos); err == nil {
				orders = append(orders, order)
			}
		}

		if len(orders) > 0 {
			result[symbol] = orders
		}
	}

	return result
}

func meanStddev(window []float64) (float64, float64) {
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return mean, math.Sqrt(variance)
}
