package market

import (
	"math"
	"sync"
)

// Store holds the rolling in-memory state for one instrument. All sequences
// are bounded: appends beyond capacity evict the oldest entry. A Store is
// safe for concurrent use; one lock per instrument keeps unrelated
// instruments from serializing each other.
type Store struct {
	mu sync.RWMutex

	candles      map[string][]Candle
	trades       []Trade
	liquidations []Liquidation
	book         Book
	funding      Funding
	openInterest OpenInterest

	candleDepth      int
	tradeDepth       int
	liquidationDepth int
}

func newStore(candleDepth, tradeDepth, liquidationDepth int) *Store {
	candles := make(map[string][]Candle, len(TimeframeSeconds))
	for tf := range TimeframeSeconds {
		candles[tf] = make([]Candle, 0, candleDepth)
	}
	return &Store{
		candles:          candles,
		trades:           make([]Trade, 0, tradeDepth),
		liquidations:     make([]Liquidation, 0, liquidationDepth),
		candleDepth:      candleDepth,
		tradeDepth:       tradeDepth,
		liquidationDepth: liquidationDepth,
	}
}

// UpsertCandle merges a bar into the series for the given timeframe. When the
// last bar carries the same start time the bar is still forming and is
// rewritten in place; otherwise the bar is appended, evicting the oldest bar
// once the series is at capacity. Unknown timeframes are ignored.
func (s *Store) UpsertCandle(tf string, bar Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.candles[tf]
	if !ok {
		return
	}

	if n := len(series); n > 0 && series[n-1].Time == bar.Time {
		series[n-1] = bar
		return
	}

	if len(series) >= s.candleDepth {
		copy(series, series[1:])
		series[len(series)-1] = bar
		return
	}

	s.candles[tf] = append(series, bar)
}

// AppendTrade appends a trade, evicting the oldest once at capacity.
func (s *Store) AppendTrade(trade Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.trades) >= s.tradeDepth {
		copy(s.trades, s.trades[1:])
		s.trades[len(s.trades)-1] = trade
		return
	}
	s.trades = append(s.trades, trade)
}

// AppendLiquidation appends a liquidation event, evicting the oldest once at
// capacity.
func (s *Store) AppendLiquidation(liq Liquidation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.liquidations) >= s.liquidationDepth {
		copy(s.liquidations, s.liquidations[1:])
		s.liquidations[len(s.liquidations)-1] = liq
		return
	}
	s.liquidations = append(s.liquidations, liq)
}

// SetBook overwrites the top of book and returns the stored snapshot with
// the derived spread.
func (s *Store) SetBook(bid, ask float64) Book {
	spread := 0.0
	if ask > 0 {
		spread = math.Round((ask-bid)/ask*100*10000) / 10000
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.book = Book{Bid: bid, Ask: ask, Spread: spread}
	return s.book
}

// SetFunding overwrites the funding state and returns the stored snapshot.
func (s *Store) SetFunding(rate float64, nextFundingTime int64) Funding {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funding = Funding{Rate: rate, NextFundingTime: nextFundingTime}
	return s.funding
}

// SetOpenInterest overwrites the open-interest state and returns the stored
// snapshot.
func (s *Store) SetOpenInterest(value float64, timeMs int64) OpenInterest {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openInterest = OpenInterest{Value: value, Time: timeMs}
	return s.openInterest
}

// Candles returns a copy of the series for the given timeframe in ascending
// time order. The second return value is false for unknown timeframes.
func (s *Store) Candles(tf string) ([]Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.candles[tf]
	if !ok {
		return nil, false
	}

	out := make([]Candle, len(series))
	copy(out, series)
	return out, true
}

// RecentTrades returns a copy of the most recent n trades, oldest first.
func (s *Store) RecentTrades(n int) []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.trades) {
		n = len(s.trades)
	}
	out := make([]Trade, n)
	copy(out, s.trades[len(s.trades)-n:])
	return out
}

// RecentLiquidations returns a copy of the most recent n liquidation events,
// oldest first.
func (s *Store) RecentLiquidations(n int) []Liquidation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.liquidations) {
		n = len(s.liquidations)
	}
	out := make([]Liquidation, n)
	copy(out, s.liquidations[len(s.liquidations)-n:])
	return out
}

// Book returns the current top-of-book snapshot.
func (s *Store) Book() Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book
}

// Funding returns the current funding state.
func (s *Store) Funding() Funding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.funding
}

// OpenInterest returns the current open-interest state.
func (s *Store) OpenInterest() OpenInterest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openInterest
}
