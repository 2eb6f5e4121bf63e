package models

// EventKind identifies the normalized feed event variant.
type EventKind string

const (
	EventKindCandle       EventKind = "candle"
	EventKindTrade        EventKind = "trade"
	EventKindBook         EventKind = "book"
	EventKindFunding      EventKind = "funding"
	EventKindLiquidation  EventKind = "liquidation"
	EventKindOpenInterest EventKind = "open_interest"
)

// Event is a normalized market-data event produced by a feed reader. Exactly
// one variant pointer matching Kind is populated. Timestamps are fractional
// seconds as delivered by the venue; unit conversion to store representation
// happens in the ingest adapter.
type Event struct {
	Kind   EventKind
	Symbol string // venue symbol, e.g. BTCUSDT

	Candle       *CandleUpdate
	Trade        *TradeUpdate
	Book         *BookUpdate
	Funding      *FundingUpdate
	Liquidation  *LiquidationUpdate
	OpenInterest *OpenInterestUpdate
}

// CandleUpdate carries one OHLCV bar, possibly still forming.
type CandleUpdate struct {
	Timeframe string
	Start     float64 // bucket start, fractional seconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// TradeUpdate carries one executed trade.
type TradeUpdate struct {
	Price float64
	Size  float64
	Side  string // buy/sell
	Time  float64
}

// BookUpdate carries the venue's current best bid and ask.
type BookUpdate struct {
	Bid float64
	Ask float64
}

// FundingUpdate carries the perpetual funding rate and the next funding time.
type FundingUpdate struct {
	Rate            float64
	NextFundingTime float64
}

// LiquidationUpdate carries one forced position closure.
type LiquidationUpdate struct {
	Side  string
	Size  float64
	Price float64
	Time  float64
}

// OpenInterestUpdate carries the venue's reported open interest.
type OpenInterestUpdate struct {
	Value float64
	Time  float64
}
