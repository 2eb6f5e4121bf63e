// Package ingest consumes normalized feed events, applies them to the
// per-instrument stores and publishes the resulting frames to the hub.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	appconfig "chartflow/config"
	"chartflow/internal/channel"
	"chartflow/internal/hub"
	"chartflow/internal/market"
	"chartflow/internal/models"
	"chartflow/logger"
)

// Adapter is the single consumer of the event channel. One goroutine applies
// events in arrival order, so every published frame reflects the store state
// that produced it.
type Adapter struct {
	config   *appconfig.Config
	market   *market.Market
	hub      *hub.Hub
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

// NewAdapter builds the adapter instance.
func NewAdapter(cfg *appconfig.Config, mkt *market.Market, h *hub.Hub, ch *channel.Channels) *Adapter {
	return &Adapter{
		config:   cfg,
		market:   mkt,
		hub:      h,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.Logger(),
	}
}

// Start begins consuming feed events.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("ingest adapter already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	a.log.WithComponent("ingest").Info("starting ingest adapter")

	a.wg.Add(1)
	go a.run()
	return nil
}

// Stop waits for the consumer loop to drain.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.log.WithComponent("ingest").Info("stopping ingest adapter")
	a.wg.Wait()
	a.log.WithComponent("ingest").Info("ingest adapter stopped")
}

func (a *Adapter) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-a.channels.Events:
			if !ok {
				return
			}
			a.handleEvent(ev)
		}
	}
}

// handleEvent applies one event to its instrument's store and publishes the
// stored snapshot. Events for symbols outside the configured set are
// discarded silently.
func (a *Adapter) handleEvent(ev models.Event) {
	instrument, ok := a.market.InstrumentForVenue(ev.Symbol)
	if !ok {
		return
	}
	store, ok := a.market.Lookup(instrument)
	if !ok {
		return
	}

	switch ev.Kind {
	case models.EventKindCandle:
		if ev.Candle == nil || !market.SupportedTimeframe(ev.Candle.Timeframe) {
			return
		}
		bar := market.Candle{
			Time:   int64(math.Round(ev.Candle.Start)),
			Open:   ev.Candle.Open,
			High:   ev.Candle.High,
			Low:    ev.Candle.Low,
			Close:  ev.Candle.Close,
			Volume: ev.Candle.Volume,
		}
		store.UpsertCandle(ev.Candle.Timeframe, bar)
		a.publish(instrument, models.FrameTypeCandle, bar)

	case models.EventKindTrade:
		if ev.Trade == nil {
			return
		}
		trade := market.Trade{
			Price: ev.Trade.Price,
			Size:  ev.Trade.Size,
			Side:  ev.Trade.Side,
			Time:  toMillis(ev.Trade.Time),
		}
		store.AppendTrade(trade)
		a.publish(instrument, models.FrameTypeTrade, trade)

	case models.EventKindBook:
		if ev.Book == nil {
			return
		}
		book := store.SetBook(ev.Book.Bid, ev.Book.Ask)
		a.publish(instrument, models.FrameTypeBook, book)

	case models.EventKindFunding:
		if ev.Funding == nil {
			return
		}
		funding := store.SetFunding(ev.Funding.Rate, toMillis(ev.Funding.NextFundingTime))
		a.publish(instrument, models.FrameTypeFunding, funding)

	case models.EventKindLiquidation:
		if ev.Liquidation == nil {
			return
		}
		liq := market.Liquidation{
			Side:  ev.Liquidation.Side,
			Size:  ev.Liquidation.Size,
			Price: ev.Liquidation.Price,
			Time:  toMillis(ev.Liquidation.Time),
		}
		store.AppendLiquidation(liq)
		a.publish(instrument, models.FrameTypeLiquidation, liq)

	case models.EventKindOpenInterest:
		if ev.OpenInterest == nil {
			return
		}
		oi := store.SetOpenInterest(ev.OpenInterest.Value, toMillis(ev.OpenInterest.Time))
		a.publish(instrument, models.FrameTypeOpenInterest, oi)

	default:
		a.log.WithComponent("ingest").WithFields(logger.Fields{
			"kind": string(ev.Kind),
		}).Debug("unsupported event kind, dropping event")
	}
}

// toMillis converts a fractional-second timestamp to integer milliseconds.
// The feed side divides venue millisecond values by 1000, which is not always
// exact in float64; plain truncation here could land one millisecond low.
func toMillis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// publish serializes the frame once and hands the bytes to the hub; every
// subscriber on the topic shares the same buffer.
func (a *Adapter) publish(instrument, frameType string, data interface{}) {
	frame, err := json.Marshal(models.Envelope{Type: frameType, Data: data})
	if err != nil {
		a.log.WithComponent("ingest").WithError(err).WithFields(logger.Fields{
			"instrument": instrument,
			"type":       frameType,
		}).Error("frame serialization failed")
		return
	}
	logger.IncrementFeedEvent(frameType, len(frame))
	a.hub.Publish(instrument, frameType, frame)
}
