package feed

import (
	"strings"

	futures "github.com/adshao/go-binance/v2/futures"

	"chartflow/internal/models"
	"chartflow/logger"
)

// streamMarkPrice subscribes to the futures mark price stream, which carries
// the funding rate and the next funding time.
func (r *BinanceReader) streamMarkPrice(symbol string) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "funding_stream",
	})

	handler := func(event *futures.WsMarkPriceEvent) {
		ev := models.Event{
			Kind:   models.EventKindFunding,
			Symbol: strings.ToUpper(event.Symbol),
			Funding: &models.FundingUpdate{
				Rate:            parseFloat(event.FundingRate),
				NextFundingTime: float64(event.NextFundingTime) / 1000,
			},
		}
		r.forward(log, ev)
	}

	r.streamLoop(log, func() (chan struct{}, chan struct{}, error) {
		return futures.WsMarkPriceServe(symbol, handler, wsErrHandler(log))
	})
}

// streamLiquidations subscribes to the futures forced-order stream.
func (r *BinanceReader) streamLiquidations(symbol string) {
	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "liquidation_stream",
	})

	handler := func(event *futures.WsLiquidationOrderEvent) {
		order := event.LiquidationOrder
		ev := models.Event{
			Kind:   models.EventKindLiquidation,
			Symbol: strings.ToUpper(order.Symbol),
			Liquidation: &models.LiquidationUpdate{
				Side:  strings.ToLower(string(order.Side)),
				Size:  parseFloat(order.OrigQuantity),
				Price: parseFloat(order.Price),
				Time:  float64(order.TradeTime) / 1000,
			},
		}
		r.forward(log, ev)
	}

	r.streamLoop(log, func() (chan struct{}, chan struct{}, error) {
		return futures.WsLiquidationOrderServe(symbol, handler, wsErrHandler(log))
	})
}
