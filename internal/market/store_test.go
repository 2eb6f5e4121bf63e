package market

import (
	"testing"

	appconfig "chartflow/config"
)

func testMarket() *Market {
	return NewMarket(appconfig.MarketConfig{
		Instruments:      []string{"BTC", "ETH"},
		QuoteAsset:       "USDT",
		CandleDepth:      500,
		TradeDepth:       100,
		LiquidationDepth: 50,
	})
}

func TestUpsertCandleRewritesOpenBar(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	store.UpsertCandle("1m", Candle{Time: 60, Open: 1, Close: 2})
	for i := 0; i < 10; i++ {
		store.UpsertCandle("1m", Candle{Time: 60, Open: 1, Close: float64(i)})
	}

	series, ok := store.Candles("1m")
	if !ok {
		t.Fatalf("expected 1m series")
	}
	if len(series) != 1 {
		t.Fatalf("expected series length 1, got %d", len(series))
	}
	if series[0].Close != 9 {
		t.Fatalf("expected last rewrite to win, got close=%v", series[0].Close)
	}
}

func TestUpsertCandleEvictsOldest(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	for i := 0; i < 600; i++ {
		store.UpsertCandle("1m", Candle{Time: int64(60 * i), Close: float64(i)})
	}

	series, _ := store.Candles("1m")
	if len(series) != 500 {
		t.Fatalf("expected series capped at 500, got %d", len(series))
	}
	if series[0].Time != 60*100 {
		t.Fatalf("expected oldest bar evicted, first time=%d", series[0].Time)
	}
	if series[499].Time != 60*599 {
		t.Fatalf("expected newest bar retained, last time=%d", series[499].Time)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Time <= series[i-1].Time {
			t.Fatalf("series not ascending at index %d", i)
		}
	}
}

func TestUpsertCandleUnknownTimeframeIgnored(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	store.UpsertCandle("7m", Candle{Time: 60})
	if _, ok := store.Candles("7m"); ok {
		t.Fatalf("expected unknown timeframe to stay unknown")
	}
}

func TestAppendTradeEvictsOldest(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	for i := 0; i < 150; i++ {
		store.AppendTrade(Trade{Price: float64(i), Time: int64(i)})
	}

	trades := store.RecentTrades(200)
	if len(trades) != 100 {
		t.Fatalf("expected trade log capped at 100, got %d", len(trades))
	}
	if trades[0].Time != 50 || trades[99].Time != 149 {
		t.Fatalf("unexpected eviction order: first=%d last=%d", trades[0].Time, trades[99].Time)
	}
}

func TestAppendLiquidationEvictsOldest(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	for i := 0; i < 60; i++ {
		store.AppendLiquidation(Liquidation{Price: float64(i), Time: int64(i)})
	}

	liqs := store.RecentLiquidations(100)
	if len(liqs) != 50 {
		t.Fatalf("expected liquidation log capped at 50, got %d", len(liqs))
	}
	if liqs[0].Time != 10 {
		t.Fatalf("expected oldest evicted, first=%d", liqs[0].Time)
	}
}

func TestRecentTradesOldestFirst(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	for i := 0; i < 30; i++ {
		store.AppendTrade(Trade{Time: int64(i)})
	}

	recent := store.RecentTrades(20)
	if len(recent) != 20 {
		t.Fatalf("expected 20 trades, got %d", len(recent))
	}
	if recent[0].Time != 10 || recent[19].Time != 29 {
		t.Fatalf("expected most recent 20 oldest first, got first=%d last=%d", recent[0].Time, recent[19].Time)
	}
}

func TestSetBookSpread(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	book := store.SetBook(99, 100)
	if book.Spread != 1 {
		t.Fatalf("expected spread 1%%, got %v", book.Spread)
	}

	book = store.SetBook(100000, 100001)
	if book.Spread != 0.001 {
		t.Fatalf("expected spread rounded to 4 decimals, got %v", book.Spread)
	}

	book = store.SetBook(1, 0)
	if book.Spread != 0 {
		t.Fatalf("expected zero spread with zero ask, got %v", book.Spread)
	}
}

func TestCandlesReturnsCopy(t *testing.T) {
	m := testMarket()
	store, _ := m.Lookup("BTC")

	store.UpsertCandle("1h", Candle{Time: 3600, Close: 5})
	series, _ := store.Candles("1h")
	series[0].Close = 42

	again, _ := store.Candles("1h")
	if again[0].Close != 5 {
		t.Fatalf("snapshot is not a copy: %v", again[0].Close)
	}
}

func TestLookupUnknownInstrument(t *testing.T) {
	m := testMarket()
	if _, ok := m.Lookup("DOGE"); ok {
		t.Fatalf("expected unknown instrument lookup to fail")
	}
	if m.Supported("DOGE") {
		t.Fatalf("expected DOGE unsupported")
	}
	if !m.Supported("btc") {
		t.Fatalf("expected case-insensitive instrument lookup")
	}
}

func TestVenueSymbolRoundTrip(t *testing.T) {
	m := testMarket()
	if sym := m.VenueSymbol("BTC"); sym != "BTCUSDT" {
		t.Fatalf("unexpected venue symbol: %s", sym)
	}
	instrument, ok := m.InstrumentForVenue("ETHUSDT")
	if !ok || instrument != "ETH" {
		t.Fatalf("unexpected venue resolution: %s %v", instrument, ok)
	}
	if _, ok := m.InstrumentForVenue("DOGEUSDT"); ok {
		t.Fatalf("expected unsupported venue symbol to fail resolution")
	}
}
