package engine_test

import (
	"testing"

	"backtest-engine/src/engine"
)

func TestSnapshotBestBidAsk(t *testing.T) {
	book := engine.NewSnapshot("ABRA",
		[]engine.Level{{Price: 99, Volume: 4}, {Price: 100, Volume: 5}, {Price: 98, Volume: 6}},
		[]engine.Level{{Price: 103, Volume: 1}, {Price: 102, Volume: 2}})

	price, volume, ok := book.BestBid()
	if !ok || price != 100 || volume != 5 {
		t.Errorf("Expected best bid 5 @ 100, got: %d @ %d (ok=%v)", volume, price, ok)
	}

	price, volume, ok = book.BestAsk()
	if !ok || price != 102 || volume != 2 {
		t.Errorf("Expected best ask 2 @ 102, got: %d @ %d (ok=%v)", volume, price, ok)
	}
}

func TestSnapshotEmptySides(t *testing.T) {
	book := engine.NewSnapshot("ABRA", nil, nil)

	if _, _, ok := book.BestBid(); ok {
		t.Error("Expected no best bid on empty book")
	}
	if _, _, ok := book.BestAsk(); ok {
		t.Error("Expected no best ask on empty book")
	}
}

// Levels with non-positive prices come from absent fields in the data and
// must not become book levels. A present price with zero volume is a valid,
// inert level.
func TestSnapshotSkipsAbsentLevels(t *testing.T) {
	book := engine.NewSnapshot("ABRA",
		[]engine.Level{{Price: 0, Volume: 9}, {Price: 100, Volume: 0}},
		[]engine.Level{{Price: -1, Volume: 9}})

	price, volume, ok := book.BestBid()
	if !ok || price != 100 || volume != 0 {
		t.Errorf("Expected inert bid level 0 @ 100, got: %d @ %d (ok=%v)", volume, price, ok)
	}
	if _, _, ok := book.BestAsk(); ok {
		t.Error("Expected no ask levels")
	}
}

// A bid at or above the best ask would cross the book; the snapshot drops it
// and keeps the rest.
func TestSnapshotDropsCrossedBidLevels(t *testing.T) {
	book := engine.NewSnapshot("ABRA",
		[]engine.Level{{Price: 102, Volume: 5}, {Price: 100, Volume: 5}},
		[]engine.Level{{Price: 102, Volume: 5}})

	price, _, ok := book.BestBid()
	if !ok || price != 100 {
		t.Errorf("Expected crossed bid dropped and best bid 100, got: %d (ok=%v)", price, ok)
	}
	if vol := book.BidVolumeAt(102); vol != 0 {
		t.Errorf("Expected no bid volume at 102, got: %d", vol)
	}
}

// Rows deeper than three levels per side are malformed; the snapshot keeps
// the three best and drops the rest.
func TestSnapshotKeepsThreeBestLevelsPerSide(t *testing.T) {
	book := engine.NewSnapshot("ABRA",
		[]engine.Level{{Price: 97, Volume: 1}, {Price: 100, Volume: 2}, {Price: 99, Volume: 3}, {Price: 98, Volume: 4}},
		[]engine.Level{{Price: 104, Volume: 1}, {Price: 101, Volume: 2}, {Price: 103, Volume: 3}, {Price: 102, Volume: 4}})

	bids, asks := book.Depth()
	if len(bids) != 3 || len(asks) != 3 {
		t.Fatalf("Expected 3 levels per side, got: %d bids, %d asks", len(bids), len(asks))
	}
	if vol := book.BidVolumeAt(97); vol != 0 {
		t.Errorf("Expected worst bid (97) dropped, got volume: %d", vol)
	}
	if vol := book.AskVolumeAt(104); vol != 0 {
		t.Errorf("Expected worst ask (104) dropped, got volume: %d", vol)
	}
}

func TestSnapshotAggregatesDuplicatePrices(t *testing.T) {
	book := engine.NewSnapshot("ABRA", nil,
		[]engine.Level{{Price: 101, Volume: 3}, {Price: 101, Volume: 4}})

	if vol := book.AskVolumeAt(101); vol != 7 {
		t.Errorf("Expected aggregated ask volume 7, got: %d", vol)
	}
}

func TestSnapshotDepthOrdering(t *testing.T) {
	book := engine.NewSnapshot("ABRA",
		[]engine.Level{{Price: 98, Volume: 1}, {Price: 100, Volume: 2}, {Price: 99, Volume: 3}},
		[]engine.Level{{Price: 103, Volume: 4}, {Price: 101, Volume: 5}})

	bids, asks := book.Depth()

	wantBids := []int64{100, 99, 98}
	for i, price := range wantBids {
		if bids[i].Price != price {
			t.Errorf("Bid %d: expected price %d, got: %d", i, price, bids[i].Price)
		}
	}

	wantAsks := []int64{101, 103}
	for i, price := range wantAsks {
		if asks[i].Price != price {
			t.Errorf("Ask %d: expected price %d, got: %d", i, price, asks[i].Price)
		}
	}
}

func TestTradeFeedNormalization(t *testing.T) {
	feed := engine.NewTradeFeed("ABRA", []engine.MarketTrade{
		{Price: 100, Quantity: -7}, // sign carries no meaning
		{Price: 0, Quantity: 5},    // invalid price, dropped
		{Price: 101, Quantity: 3},
	})

	if remaining := feed.Remaining(); remaining != 10 {
		t.Errorf("Expected remaining 10 (|−7| + 3), got: %d", remaining)
	}

	var count int
	feed.Each(func(mt *engine.MarketTrade) bool {
		count++
		if mt.Quantity < 0 {
			t.Errorf("Expected normalized quantity, got: %d", mt.Quantity)
		}
		return true
	})
	if count != 2 {
		t.Errorf("Expected 2 trades in feed, got: %d", count)
	}
}
