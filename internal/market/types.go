package market

// Candle is one OHLCV bar. Time is the bucket start in epoch seconds,
// aligned to the timeframe.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Trade is one executed trade. Time is epoch milliseconds.
type Trade struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
	Side  string  `json:"side"`
	Time  int64   `json:"time"`
}

// Liquidation is one forced position closure. Time is epoch milliseconds.
type Liquidation struct {
	Side  string  `json:"side"`
	Size  float64 `json:"size"`
	Price float64 `json:"price"`
	Time  int64   `json:"time"`
}

// Book is the current top of book. Spread is derived from bid and ask on
// every write and expressed in percent.
type Book struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Spread float64 `json:"spread"`
}

// Funding is the current funding state. NextFundingTime is epoch milliseconds.
type Funding struct {
	Rate            float64 `json:"rate"`
	NextFundingTime int64   `json:"next_funding_time"`
}

// OpenInterest is the venue's reported open interest. Time is epoch
// milliseconds.
type OpenInterest struct {
	Value float64 `json:"open_interest"`
	Time  int64   `json:"timestamp"`
}

// TimeframeSeconds maps every supported candle timeframe to its bucket
// length in seconds.
var TimeframeSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
}

// SupportedTimeframe reports whether tf is one of the configured candle
// aggregation periods.
func SupportedTimeframe(tf string) bool {
	_, ok := TimeframeSeconds[tf]
	return ok
}
