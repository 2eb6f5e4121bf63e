// Package market holds the bounded rolling state for every configured
// instrument: candle series per timeframe, trade and liquidation logs, and
// the top-of-book, funding and open-interest singletons.
package market

import (
	"strings"

	appconfig "chartflow/config"
)

// Market is the process-wide context object: one Store per configured
// instrument, created at startup and never destroyed. It is passed by
// reference to the ingest adapter, the session layer and the backfill
// service.
type Market struct {
	instruments []string
	quote       string
	stores      map[string]*Store
	venueIndex  map[string]string // venue symbol -> instrument
}

// NewMarket builds the per-instrument stores from configuration.
func NewMarket(cfg appconfig.MarketConfig) *Market {
	m := &Market{
		instruments: make([]string, 0, len(cfg.Instruments)),
		quote:       cfg.QuoteAsset,
		stores:      make(map[string]*Store, len(cfg.Instruments)),
		venueIndex:  make(map[string]string, len(cfg.Instruments)),
	}
	for _, instrument := range cfg.Instruments {
		m.instruments = append(m.instruments, instrument)
		m.stores[instrument] = newStore(cfg.CandleDepth, cfg.TradeDepth, cfg.LiquidationDepth)
		m.venueIndex[instrument+cfg.QuoteAsset] = instrument
	}
	return m
}

// Instruments returns the configured instrument identifiers.
func (m *Market) Instruments() []string {
	out := make([]string, len(m.instruments))
	copy(out, m.instruments)
	return out
}

// Supported reports whether the instrument is configured.
func (m *Market) Supported(instrument string) bool {
	_, ok := m.stores[strings.ToUpper(instrument)]
	return ok
}

// Lookup returns the store for the given instrument. Unknown instruments
// return false; writes at the boundary must treat that as a silent no-op and
// reads as not found.
func (m *Market) Lookup(instrument string) (*Store, bool) {
	store, ok := m.stores[strings.ToUpper(instrument)]
	return store, ok
}

// VenueSymbol maps an instrument to its venue trading symbol, e.g. BTC to
// BTCUSDT.
func (m *Market) VenueSymbol(instrument string) string {
	return strings.ToUpper(instrument) + m.quote
}

// InstrumentForVenue resolves a venue symbol back to the configured
// instrument identifier. Symbols for instruments outside the configured set
// return false; they may legitimately flow through a shared feed and must be
// discarded silently.
func (m *Market) InstrumentForVenue(symbol string) (string, bool) {
	instrument, ok := m.venueIndex[strings.ToUpper(symbol)]
	return instrument, ok
}
