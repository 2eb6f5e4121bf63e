// Package feed subscribes to the venue's market-data streams and forwards
// normalized events into the bounded event channel. Each stream worker
// reconnects until the context is cancelled; a dropped connection never
// takes the process down.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	appconfig "chartflow/config"
	"chartflow/internal/channel"
	"chartflow/internal/market"
	"chartflow/logger"
)

// serveFunc matches the shape of the binance SDK's websocket serve helpers.
type serveFunc func() (doneC, stopC chan struct{}, err error)

// BinanceReader owns every Binance stream worker: spot klines, aggregated
// trades and book tickers plus futures mark price, liquidation orders and
// the open-interest poller.
type BinanceReader struct {
	config   *appconfig.Config
	market   *market.Market
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

// NewBinanceReader constructs the reader for the configured instruments.
func NewBinanceReader(cfg *appconfig.Config, mkt *market.Market, ch *channel.Channels) *BinanceReader {
	return &BinanceReader{
		config:   cfg,
		market:   mkt,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches one worker per instrument and stream kind. Workers are
// restarted automatically until the context is cancelled.
func (r *BinanceReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("binance reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	cfg := r.config.Source.Binance
	log := r.log.WithComponent("binance_reader")

	if !cfg.Enabled {
		log.Warn("binance feed disabled via configuration")
		return fmt.Errorf("binance feed disabled")
	}

	instruments := r.market.Instruments()
	log.WithFields(logger.Fields{
		"instruments":    strings.Join(instruments, ","),
		"live_timeframe": cfg.LiveTimeframe,
	}).Info("starting binance reader")

	for _, instrument := range instruments {
		symbol := r.market.VenueSymbol(instrument)

		r.wg.Add(5)
		go r.streamKlines(symbol, cfg.LiveTimeframe)
		go r.streamAggTrades(symbol)
		go r.streamBookTicker(symbol)
		go r.streamMarkPrice(symbol)
		go r.streamLiquidations(symbol)

		if cfg.OpenInterest.Enabled {
			r.wg.Add(1)
			go r.pollOpenInterest(symbol, cfg.OpenInterest.PollInterval)
		}
	}

	log.Info("binance reader started successfully")
	return nil
}

// Stop waits for every stream worker to exit.
func (r *BinanceReader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("binance_reader").Info("stopping binance reader")
	r.wg.Wait()
	r.log.WithComponent("binance_reader").Info("binance reader stopped")
}

// streamLoop runs one websocket subscription until the context is cancelled,
// resubscribing after errors or stream closure.
func (r *BinanceReader) streamLoop(log *logger.Entry, serve serveFunc) {
	defer r.wg.Done()

	reconnect := r.config.Source.Binance.ReconnectDelay
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}

	for {
		if r.ctx.Err() != nil {
			return
		}

		doneC, stopC, err := serve()
		if err != nil {
			log.WithError(err).Error("failed to subscribe to stream")
			select {
			case <-time.After(reconnect):
				continue
			case <-r.ctx.Done():
				return
			}
		}

		select {
		case <-r.ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			log.Warn("stream closed, reconnecting")
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(reconnect):
			}
		}
	}
}
