package feed

import (
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"

	"chartflow/internal/models"
	"chartflow/logger"
)

// pollOpenInterest reads the futures open-interest figure on a fixed
// interval. The venue exposes this as REST only at the granularity we need,
// so this worker is a ticker loop rather than a websocket subscription.
func (r *BinanceReader) pollOpenInterest(symbol string, interval time.Duration) {
	defer r.wg.Done()

	if interval <= 0 {
		interval = 30 * time.Second
	}

	log := r.log.WithComponent("binance_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "open_interest_poll",
	})

	client := futures.NewClient("", "")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			oi, err := client.NewGetOpenInterestService().Symbol(symbol).Do(r.ctx)
			if err != nil {
				if r.ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("open-interest poll failed")
				continue
			}

			eventTime := oi.Time
			if eventTime == 0 {
				eventTime = time.Now().UnixMilli()
			}

			ev := models.Event{
				Kind:   models.EventKindOpenInterest,
				Symbol: strings.ToUpper(oi.Symbol),
				OpenInterest: &models.OpenInterestUpdate{
					Value: parseFloat(oi.OpenInterest),
					Time:  float64(eventTime) / 1000,
				},
			}
			r.forward(log, ev)
		}
	}
}
