// Package channel owns the bounded buffer between the feed readers and the
// ingest adapter. Producers never block: when the buffer is full the event is
// dropped and counted, and the next snapshot-bearing update restores the
// subscriber-visible state.
package channel

import (
	"context"
	"sync"
	"time"

	"chartflow/internal/metrics"
	"chartflow/internal/models"
	"chartflow/logger"
)

type ChannelStats struct {
	Sent    int64
	Dropped int64
}

type Channels struct {
	Events chan models.Event

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(bufferSize int) *Channels {
	log := logger.Logger()
	c := &Channels{
		Events: make(chan models.Event, bufferSize),
		log:    log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("event channel initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Events)
	c.log.WithComponent("channels").Info("event channel closed")
}

func (c *Channels) incrementSent() {
	c.statsMutex.Lock()
	c.stats.Sent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementDropped() {
	c.statsMutex.Lock()
	c.stats.Dropped++
	c.statsMutex.Unlock()
}

// SendEvent enqueues a normalized event without blocking. Returns false when
// the event was dropped on a full buffer or the context was cancelled.
func (c *Channels) SendEvent(ctx context.Context, ev models.Event) bool {
	select {
	case c.Events <- ev:
		c.incrementSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementDropped()
		metrics.EmitDropMetric(c.log, metrics.DropMetricFeedEvent, ev.Symbol, string(ev.Kind), "")
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting periodically logs buffer depth and send/drop counters
// until the context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := c.GetStats()
				c.log.WithComponent("channels").WithFields(logger.Fields{
					"queue_depth": len(c.Events),
					"queue_cap":   cap(c.Events),
					"sent":        stats.Sent,
					"dropped":     stats.Dropped,
				}).Info("event channel stats")
				metrics.EmitMetric(c.log, "channels", "queue_depth", float64(len(c.Events)), "gauge", nil)
			}
		}
	}()
}
