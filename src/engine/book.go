package engine

import (
	"github.com/google/btree"
	"github.com/rs/zerolog/log"
)

// Level is one resting price level. Volume is the remaining volume at that
// price and is decremented as the matcher consumes it within a timestep.
type Level struct {
	Price  int64
	Volume int64
}

type bidLevelItem struct {
	level *Level
}

func (b *bidLevelItem) Less(than btree.Item) bool {
	return b.level.Price > than.(*bidLevelItem).level.Price
}

type askLevelItem struct {
	level *Level
}

func (a *askLevelItem) Less(than btree.Item) bool {
	return a.level.Price < than.(*askLevelItem).level.Price
}

// Snapshot is the order book reconstruction for one symbol at one timestep.
// It is built fresh every timestep and discarded afterwards; its only mutable
// state is the remaining volume per level during a single matching pass.
type Snapshot struct {
	Symbol string
	bids   *btree.BTree // highest price first
	asks   *btree.BTree // lowest price first
}

// maxLevelsPerSide caps snapshot depth; historical rows carry at most three
// levels per side, so anything deeper is malformed input.
const maxLevelsPerSide = 3

// NewSnapshot builds a snapshot from the raw levels of one historical row.
// Levels with non-positive prices are ignored. Bid levels priced at or above
// the best ask would cross the book; that signals an upstream data fault, so
// they are dropped with a warning rather than matched against. Each side
// keeps at most three levels, best price first.
func NewSnapshot(symbol string, bids, asks []Level) *Snapshot {
	s := &Snapshot{
		Symbol: symbol,
		bids:   btree.New(8),
		asks:   btree.New(8),
	}

	for _, lv := range asks {
		if lv.Price <= 0 {
			continue
		}
		s.insert(s.asks, &askLevelItem{level: &Level{Price: lv.Price}}, lv)
	}
	s.truncate(s.asks)

	bestAsk, _, hasAsk := s.BestAsk()
	for _, lv := range bids {
		if lv.Price <= 0 {
			continue
		}
		if hasAsk && lv.Price >= bestAsk {
			log.Warn().
				Str("symbol", symbol).
				Int64("bid_price", lv.Price).
				Int64("best_ask", bestAsk).
				Msg("Crossed book level in historical data, dropping bid level")
			continue
		}
		s.insert(s.bids, &bidLevelItem{level: &Level{Price: lv.Price}}, lv)
	}
	s.truncate(s.bids)

	return s
}

// truncate drops the worst levels until the side is within the depth cap.
func (s *Snapshot) truncate(tree *btree.BTree) {
	for tree.Len() > maxLevelsPerSide {
		var lv *Level
		switch it := tree.DeleteMax().(type) {
		case *bidLevelItem:
			lv = it.level
		case *askLevelItem:
			lv = it.level
		}
		log.Warn().
			Str("symbol", s.Symbol).
			Int64("price", lv.Price).
			Int64("volume", lv.Volume).
			Msg("Book level beyond depth limit, dropping")
	}
}

// insert adds volume to an existing level at the same price, or creates one.
func (s *Snapshot) insert(tree *btree.BTree, probe btree.Item, lv Level) {
	if existing := tree.Get(probe); existing != nil {
		switch it := existing.(type) {
		case *bidLevelItem:
			it.level.Volume += lv.Volume
		case *askLevelItem:
			it.level.Volume += lv.Volume
		}
		return
	}
	level := &Level{Price: lv.Price, Volume: lv.Volume}
	switch it := probe.(type) {
	case *bidLevelItem:
		it.level = level
	case *askLevelItem:
		it.level = level
	}
	tree.ReplaceOrInsert(probe)
}

func (s *Snapshot) BestBid() (price int64, volume int64, ok bool) {
	item := s.bids.Min()
	if item == nil {
		return 0, 0, false
	}
	lv := item.(*bidLevelItem).level
	return lv.Price, lv.Volume, true
}

func (s *Snapshot) BestAsk() (price int64, volume int64, ok bool) {
	item := s.asks.Min()
	if item == nil {
		return 0, 0, false
	}
	lv := item.(*askLevelItem).level
	return lv.Price, lv.Volume, true
}

// EachAsk visits ask levels in ascending price order until visit returns false.
// The matcher mutates the visited level's Volume as it consumes liquidity.
func (s *Snapshot) EachAsk(visit func(lv *Level) bool) {
	s.asks.Ascend(func(item btree.Item) bool {
		return visit(item.(*askLevelItem).level)
	})
}

// EachBid visits bid levels in descending price order until visit returns false.
func (s *Snapshot) EachBid(visit func(lv *Level) bool) {
	s.bids.Ascend(func(item btree.Item) bool {
		return visit(item.(*bidLevelItem).level)
	})
}

func (s *Snapshot) BidVolumeAt(price int64) int64 {
	item := s.bids.Get(&bidLevelItem{level: &Level{Price: price}})
	if item == nil {
		return 0
	}
	return item.(*bidLevelItem).level.Volume
}

func (s *Snapshot) AskVolumeAt(price int64) int64 {
	item := s.asks.Get(&askLevelItem{level: &Level{Price: price}})
	if item == nil {
		return 0
	}
	return item.(*askLevelItem).level.Volume
}

// Depth returns the remaining levels, best price first, as value copies for
// read-only consumers such as strategies.
func (s *Snapshot) Depth() (bids []Level, asks []Level) {
	bids = make([]Level, 0, s.bids.Len())
	asks = make([]Level, 0, s.asks.Len())
	s.EachBid(func(lv *Level) bool {
		bids = append(bids, *lv)
		return true
	})
	s.EachAsk(func(lv *Level) bool {
		asks = append(asks, *lv)
		return true
	})
	return bids, asks
}
