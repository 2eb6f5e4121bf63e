package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appconfig "chartflow/config"
	"chartflow/internal/history"
	"chartflow/internal/hub"
	"chartflow/internal/market"
	"chartflow/logger"
)

type stubFetcher struct {
	candles []market.Candle
	err     error
}

func (f *stubFetcher) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Chartflow: appconfig.ChartflowConfig{Name: "chartflow", Version: "test"},
		Server:    appconfig.ServerConfig{Address: ":0", ShutdownTimeout: time.Second},
		Market: appconfig.MarketConfig{
			Instruments:      []string{"BTC"},
			QuoteAsset:       "USDT",
			CandleDepth:      500,
			TradeDepth:       100,
			LiquidationDepth: 50,
		},
		Session: appconfig.SessionConfig{
			QueueSize:          200,
			KeepAlive:          20 * time.Second,
			WriteTimeout:       5 * time.Second,
			ReplayTrades:       20,
			ReplayLiquidations: 10,
		},
		History: appconfig.HistoryConfig{
			DefaultTimeframe:  "1h",
			DefaultLimit:      200,
			MaxLimit:          500,
			RequestTimeout:    time.Second,
			RequestsPerSecond: 5,
			RequestBurst:      5,
		},
	}
}

func newTestServer(t *testing.T, cfg *appconfig.Config, fetcher history.Fetcher) (*Server, *httptest.Server, *market.Market, *hub.Hub) {
	t.Helper()

	mkt := market.NewMarket(cfg.Market)
	h := hub.NewHub(cfg.Session.QueueSize, logger.Logger())
	hist := history.NewService(cfg.History, mkt, fetcher)

	srv := NewServer(cfg, mkt, h, hist)
	srv.ctx = context.Background()

	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return srv, ts, mkt, h
}

func TestHealthEndpoint(t *testing.T) {
	_, ts, _, _ := newTestServer(t, testConfig(), &stubFetcher{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestCandlesFromWarmCache(t *testing.T) {
	_, ts, mkt, _ := newTestServer(t, testConfig(), &stubFetcher{err: errors.New("must not be called")})

	store, _ := mkt.Lookup("BTC")
	for i := 0; i < 10; i++ {
		store.UpsertCandle("1h", market.Candle{Time: int64(3600 * i), Close: float64(i)})
	}

	resp, err := http.Get(ts.URL + "/candles/btc?tf=1h&limit=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var candles []market.Candle
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(candles) != 5 {
		t.Fatalf("expected 5 candles, got %d", len(candles))
	}
	if candles[0].Time != 3600*5 {
		t.Fatalf("expected most recent window ascending, first=%d", candles[0].Time)
	}
}

func TestCandlesClientErrors(t *testing.T) {
	_, ts, _, _ := newTestServer(t, testConfig(), &stubFetcher{})

	cases := []string{
		"/candles/DOGE",
		"/candles/BTC?tf=7m",
		"/candles/BTC?limit=501",
		"/candles/BTC?limit=abc",
	}
	for _, path := range cases {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, resp.StatusCode)
		}
		if body["error"] == "" {
			t.Fatalf("%s: expected error body", path)
		}
	}
}

func TestCandlesDegradesWhenVenueDown(t *testing.T) {
	_, ts, mkt, _ := newTestServer(t, testConfig(), &stubFetcher{err: errors.New("venue down")})

	store, _ := mkt.Lookup("BTC")
	store.UpsertCandle("1h", market.Candle{Time: 3600, Close: 1})

	resp, err := http.Get(ts.URL + "/candles/BTC?tf=1h&limit=100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected degraded 200, got %d", resp.StatusCode)
	}
	var candles []market.Candle
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected cached bar, got %d", len(candles))
	}
}

func TestCORSHeaders(t *testing.T) {
	_, ts, _, _ := newTestServer(t, testConfig(), &stubFetcher{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive CORS, got %q", got)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":               "0.0.0.0:8000",
		":9000":          "0.0.0.0:9000",
		"localhost":      "localhost:8000",
		"0.0.0.0:80":     "0.0.0.0:80",
		"*:8000":         "0.0.0.0:8000",
		"localhost:5050": "localhost:5050",
	}
	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}
