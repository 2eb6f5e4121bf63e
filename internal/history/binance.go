package history

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	appconfig "chartflow/config"
	"chartflow/internal/market"
)

// BinanceFetcher retrieves spot klines from the Binance REST API. Requests
// are rate limited so a burst of cold-cache reads cannot trip the venue's
// request weight limits.
type BinanceFetcher struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinanceFetcher builds a fetcher with an unauthenticated client; kline
// endpoints are public.
func NewBinanceFetcher(cfg appconfig.HistoryConfig) *BinanceFetcher {
	return &BinanceFetcher{
		client:  binance.NewClient("", ""),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
	}
}

// FetchCandles fetches up to limit klines, converting venue millisecond open
// times to epoch seconds.
func (f *BinanceFetcher) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, timeframe, err)
	}

	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, market.Candle{
			Time:   k.OpenTime / 1000,
			Open:   parsePrice(k.Open),
			High:   parsePrice(k.High),
			Low:    parsePrice(k.Low),
			Close:  parsePrice(k.Close),
			Volume: parsePrice(k.Volume),
		})
	}
	return out, nil
}

func parsePrice(v string) float64 {
	if v == "" {
		return 0
	}
	val, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return val
}
