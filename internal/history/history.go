// Package history serves candle seed data: from the rolling store when it
// holds enough bars, from the venue's REST API otherwise.
package history

import (
	"context"
	"errors"
	"fmt"

	appconfig "chartflow/config"
	"chartflow/internal/market"
	"chartflow/logger"
)

var (
	// ErrUnknownInstrument marks a request for an instrument outside the
	// configured set.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrUnknownTimeframe marks a request for an unsupported timeframe.
	ErrUnknownTimeframe = errors.New("unknown timeframe")
)

// Fetcher retrieves historical candles from an external venue. Implementations
// return bars in ascending time order with times in epoch seconds.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error)
}

// Service answers historical candle requests cache-first.
type Service struct {
	config  appconfig.HistoryConfig
	market  *market.Market
	fetcher Fetcher
	log     *logger.Log
}

// NewService builds the history service.
func NewService(cfg appconfig.HistoryConfig, mkt *market.Market, fetcher Fetcher) *Service {
	return &Service{
		config:  cfg,
		market:  mkt,
		fetcher: fetcher,
		log:     logger.Logger(),
	}
}

// GetCandles returns up to limit bars for the instrument and timeframe,
// ascending. The rolling store is consulted first; a fetch is attempted only
// when the store holds fewer bars than requested, and a fetch failure
// degrades to whatever the store has rather than surfacing an error.
func (s *Service) GetCandles(ctx context.Context, instrument, timeframe string, limit int) ([]market.Candle, error) {
	store, ok := s.market.Lookup(instrument)
	if !ok {
		return nil, ErrUnknownInstrument
	}
	if !market.SupportedTimeframe(timeframe) {
		return nil, ErrUnknownTimeframe
	}

	cached, _ := store.Candles(timeframe)
	if len(cached) >= limit {
		logger.IncrementHistoryCacheHit()
		return cached[len(cached)-limit:], nil
	}

	logger.IncrementHistoryFetch()
	fetchCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	fetched, err := s.fetcher.FetchCandles(fetchCtx, s.market.VenueSymbol(instrument), timeframe, limit)
	if err != nil {
		s.log.WithComponent("history").WithError(err).WithFields(logger.Fields{
			"instrument": instrument,
			"timeframe":  timeframe,
			"limit":      limit,
		}).Error("venue candle fetch failed, serving cached bars")
		return cached, nil
	}
	return fetched, nil
}

// ClampLimit applies the configured default and ceiling to a requested limit.
func (s *Service) ClampLimit(limit int) (int, error) {
	if limit == 0 {
		return s.config.DefaultLimit, nil
	}
	if limit < 0 || limit > s.config.MaxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", s.config.MaxLimit)
	}
	return limit, nil
}

// DefaultTimeframe returns the timeframe used when a request omits one.
func (s *Service) DefaultTimeframe() string {
	return s.config.DefaultTimeframe
}
