package config

import (
	"os"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `chartflow:
  name: "TestApp"
  version: "1.0"
market:
  instruments: ["btc", "ETH"]
`)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Chartflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Chartflow.Name)
	}
	if cfg.Market.Instruments[0] != "BTC" || cfg.Market.Instruments[1] != "ETH" {
		t.Errorf("instruments not normalized: %v", cfg.Market.Instruments)
	}
	if cfg.Market.CandleDepth != 500 {
		t.Errorf("unexpected default candle depth: %d", cfg.Market.CandleDepth)
	}
	if cfg.Session.QueueSize != 200 {
		t.Errorf("unexpected default queue size: %d", cfg.Session.QueueSize)
	}
	if cfg.History.DefaultLimit != 200 || cfg.History.MaxLimit != 500 {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
}

func TestLoadConfigRejectsMissingInstruments(t *testing.T) {
	path := writeTempConfig(t, `chartflow:
  name: "TestApp"
  version: "1.0"
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for missing instruments")
	}
}

func TestLoadConfigRejectsDuplicateInstruments(t *testing.T) {
	path := writeTempConfig(t, `chartflow:
  name: "TestApp"
  version: "1.0"
market:
  instruments: ["BTC", "btc"]
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for duplicate instruments")
	}
}

func TestLoadConfigRejectsBadHistoryLimits(t *testing.T) {
	path := writeTempConfig(t, `chartflow:
  name: "TestApp"
  version: "1.0"
market:
  instruments: ["BTC"]
history:
  default_limit: 400
  max_limit: 100
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for max_limit below default_limit")
	}
}
