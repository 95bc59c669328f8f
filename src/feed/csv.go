package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"backtest-engine/src/engine"
)

// SymbolData is one symbol's raw market data for one timestep: up to three
// bid/ask levels and the market trades observed between third parties.
type SymbolData struct {
	Bids   []engine.Level
	Asks   []engine.Level
	Trades []engine.MarketTrade
}

type Timestep struct {
	Timestamp int64
	Symbols   map[string]*SymbolData
}

// Source iterates historical timesteps in strictly increasing timestamp
// order, one at a time, so consumers can never observe future data.
type Source struct {
	steps []*Timestep
	next  int
}

// Load reads a book CSV and an optional trades CSV into a Source.
//
// Book columns: timestamp,symbol followed by three bid price/volume pairs and
// three ask price/volume pairs. An empty or malformed price field means the
// level is absent; a present price with a malformed volume keeps the level
// with volume 0. Trades columns: timestamp,symbol,price,quantity.
func Load(bookPath, tradesPath string) (*Source, error) {
	src := &Source{}
	byTimestamp := make(map[int64]*Timestep)

	if err := readRows(bookPath, func(row []string, ts int64, symbol string) {
		data := src.symbolData(byTimestamp, ts, symbol)
		for i := 0; i < 3; i++ {
			if lv, ok := parseLevel(row, 2+i*2); ok {
				data.Bids = append(data.Bids, lv)
			}
			if lv, ok := parseLevel(row, 8+i*2); ok {
				data.Asks = append(data.Asks, lv)
			}
		}
	}); err != nil {
		return nil, err
	}

	if tradesPath != "" {
		if err := readRows(tradesPath, func(row []string, ts int64, symbol string) {
			price, perr := parseField(row, 2)
			qty, qerr := parseField(row, 3)
			if perr != nil || qerr != nil {
				log.Warn().
					Int64("timestamp", ts).
					Str("symbol", symbol).
					Msg("Malformed market trade row, skipping")
				return
			}
			data := src.symbolData(byTimestamp, ts, symbol)
			data.Trades = append(data.Trades, engine.MarketTrade{Price: price, Quantity: qty})
		}); err != nil {
			return nil, err
		}
	}

	sortSteps(src.steps)
	return src, nil
}

func (s *Source) symbolData(byTimestamp map[int64]*Timestep, ts int64, symbol string) *SymbolData {
	step, ok := byTimestamp[ts]
	if !ok {
		step = &Timestep{Timestamp: ts, Symbols: make(map[string]*SymbolData)}
		byTimestamp[ts] = step
		s.steps = append(s.steps, step)
	}
	data, ok := step.Symbols[symbol]
	if !ok {
		data = &SymbolData{}
		step.Symbols[symbol] = data
	}
	return data
}

// FromTimesteps builds a Source from already-assembled timesteps, ordered by
// timestamp. Useful for driving the simulator without CSV files.
func FromTimesteps(steps []*Timestep) *Source {
	src := &Source{steps: append([]*Timestep(nil), steps...)}
	sortSteps(src.steps)
	return src
}

// Next hands out the following timestep, or false when the run is exhausted.
// Ownership of the returned step transfers to the caller for that timestep.
func (s *Source) Next() (*Timestep, bool) {
	if s.next >= len(s.steps) {
		return nil, false
	}
	step := s.steps[s.next]
	s.next++
	return step, true
}

func (s *Source) Len() int {
	return len(s.steps)
}

// readRows streams a CSV file, skipping a header row if the first field of
// the first record is not numeric, and enforcing non-decreasing timestamps.
func readRows(path string, visit func(row []string, ts int64, symbol string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var lastTs int64
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if len(row) < 2 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			if first {
				first = false
				continue // header row
			}
			log.Warn().Str("file", path).Str("field", row[0]).Msg("Row with malformed timestamp, skipping")
			continue
		}
		if !first && ts < lastTs {
			return fmt.Errorf("read %s: timestamp %d out of order (previous %d)", path, ts, lastTs)
		}
		first = false
		lastTs = ts
		visit(row, ts, row[1])
	}
}

// parseLevel reads a price/volume pair starting at index i. A missing or
// malformed price means no level; a malformed volume defaults to 0.
func parseLevel(row []string, i int) (engine.Level, bool) {
	price, err := parseField(row, i)
	if err != nil || price <= 0 {
		return engine.Level{}, false
	}
	volume, err := parseField(row, i+1)
	if err != nil {
		volume = 0
	}
	return engine.Level{Price: price, Volume: volume}, true
}

func parseField(row []string, i int) (int64, error) {
	if i >= len(row) || row[i] == "" {
		return 0, fmt.Errorf("field %d absent", i)
	}
	return strconv.ParseInt(row[i], 10, 64)
}

func sortSteps(steps []*Timestep) {
	// Both input files are non-decreasing, but merging them can interleave.
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Timestamp < steps[j].Timestamp
	})
}
