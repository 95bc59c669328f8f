package engine

// DefaultPositionLimit caps the absolute net position per symbol unless a
// per-symbol override is configured.
const DefaultPositionLimit = 50

// PositionLedger tracks the running net position per symbol. It is the only
// state carried across timesteps and is mutated exclusively by the matcher
// applying confirmed trades. The simulation is single-threaded, so the ledger
// carries no locking.
type PositionLedger struct {
	defaultLimit int64
	limits       map[string]int64
	positions    map[string]int64
}

func NewPositionLedger(defaultLimit int64, limits map[string]int64) *PositionLedger {
	if defaultLimit < 0 {
		defaultLimit = DefaultPositionLimit
	}
	l := &PositionLedger{
		defaultLimit: defaultLimit,
		limits:       make(map[string]int64, len(limits)),
		positions:    make(map[string]int64),
	}
	for symbol, limit := range limits {
		if limit >= 0 {
			l.limits[symbol] = limit
		}
	}
	return l
}

func (l *PositionLedger) Position(symbol string) int64 {
	return l.positions[symbol]
}

func (l *PositionLedger) Limit(symbol string) int64 {
	if limit, ok := l.limits[symbol]; ok {
		return limit
	}
	return l.defaultLimit
}

// WithinLimit reports whether applying the signed delta to the symbol's
// position would keep it inside [-limit, limit].
func (l *PositionLedger) WithinLimit(symbol string, delta int64) bool {
	limit := l.Limit(symbol)
	next := l.positions[symbol] + delta
	return next >= -limit && next <= limit
}

// Apply mutates the position by the trade's signed quantity and returns the
// new position. The matcher is the only caller.
func (l *PositionLedger) Apply(t *Trade) int64 {
	l.positions[t.Symbol] += t.Quantity
	return l.positions[t.Symbol]
}

// Positions returns a copy of all tracked positions for read-only consumers.
func (l *PositionLedger) Positions() map[string]int64 {
	out := make(map[string]int64, len(l.positions))
	for symbol, pos := range l.positions {
		out[symbol] = pos
	}
	return out
}
