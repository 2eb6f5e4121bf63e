package feed

import (
	"strconv"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/sirupsen/logrus"

	"chartflow/internal/models"
	"chartflow/logger"
)

// streamKlines subscribes to the spot kline stream for the live timeframe.
// Binance pushes the forming bar on every tick, so downstream consumers see
// the open bar rewritten until it closes.
func (r *BinanceReader) streamKlines(symbol, timeframe string) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "kline_stream",
	})

	handler := func(event *binance.WsKlineEvent) {
		ev := models.Event{
			Kind:   models.EventKindCandle,
			Symbol: strings.ToUpper(event.Symbol),
			Candle: &models.CandleUpdate{
				Timeframe: timeframe,
				Start:     float64(event.Kline.StartTime) / 1000,
				Open:      parseFloat(event.Kline.Open),
				High:      parseFloat(event.Kline.High),
				Low:       parseFloat(event.Kline.Low),
				Close:     parseFloat(event.Kline.Close),
				Volume:    parseFloat(event.Kline.Volume),
			},
		}
		r.forward(log, ev)
	}

	r.streamLoop(log, func() (chan struct{}, chan struct{}, error) {
		return binance.WsKlineServe(symbol, timeframe, handler, wsErrHandler(log))
	})
}

// streamAggTrades subscribes to the spot aggregated trade stream.
func (r *BinanceReader) streamAggTrades(symbol string) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "trade_stream",
	})

	handler := func(event *binance.WsAggTradeEvent) {
		side := "buy"
		if event.IsBuyerMaker {
			side = "sell"
		}
		ev := models.Event{
			Kind:   models.EventKindTrade,
			Symbol: strings.ToUpper(event.Symbol),
			Trade: &models.TradeUpdate{
				Price: parseFloat(event.Price),
				Size:  parseFloat(event.Quantity),
				Side:  side,
				Time:  float64(event.TradeTime) / 1000,
			},
		}
		r.forward(log, ev)
	}

	r.streamLoop(log, func() (chan struct{}, chan struct{}, error) {
		return binance.WsAggTradeServe(symbol, handler, wsErrHandler(log))
	})
}

// streamBookTicker subscribes to the spot best bid/ask stream.
func (r *BinanceReader) streamBookTicker(symbol string) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "book_stream",
	})

	handler := func(event *binance.WsBookTickerEvent) {
		ev := models.Event{
			Kind:   models.EventKindBook,
			Symbol: strings.ToUpper(event.Symbol),
			Book: &models.BookUpdate{
				Bid: parseFloat(event.BestBidPrice),
				Ask: parseFloat(event.BestAskPrice),
			},
		}
		r.forward(log, ev)
	}

	r.streamLoop(log, func() (chan struct{}, chan struct{}, error) {
		return binance.WsBookTickerServe(symbol, handler, wsErrHandler(log))
	})
}

// forward hands a normalized event to the bounded channel; drops are counted
// there, this just adds debug visibility.
func (r *BinanceReader) forward(log *logger.Entry, ev models.Event) {
	if r.channels.SendEvent(r.ctx, ev) {
		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logger.Fields{"kind": string(ev.Kind)}).Debug("forwarded event")
		}
	} else if r.ctx.Err() == nil {
		log.WithFields(logger.Fields{"kind": string(ev.Kind)}).Warn("event channel full, dropping event")
	}
}

func wsErrHandler(log *logger.Entry) func(error) {
	return func(err error) {
		if err != nil {
			log.WithError(err).Warn("websocket error")
		}
	}
}

func parseFloat(v string) float64 {
	if v == "" {
		return 0
	}
	val, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return val
}
