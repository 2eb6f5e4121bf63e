package channel

import (
	"context"
	"testing"
	"time"

	"chartflow/internal/models"
)

func TestNewChannels(t *testing.T) {
	c := NewChannels(1)
	if c.Events == nil {
		t.Fatalf("expected non-nil event channel")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.StartMetricsReporting(ctx, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	cancel()
	c.Close()
}

func TestSendEventNonBlocking(t *testing.T) {
	c := NewChannels(1)
	ctx := context.Background()

	ev := models.Event{Kind: models.EventKindTrade, Symbol: "BTCUSDT"}
	if !c.SendEvent(ctx, ev) {
		t.Fatalf("expected send into empty buffer to succeed")
	}
	if c.SendEvent(ctx, ev) {
		t.Fatalf("expected send into full buffer to drop")
	}

	stats := c.GetStats()
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendEventCancelledContext(t *testing.T) {
	c := NewChannels(1)
	c.SendEvent(context.Background(), models.Event{Kind: models.EventKindTrade})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.SendEvent(ctx, models.Event{Kind: models.EventKindTrade}) {
		t.Fatalf("expected send with cancelled context and full buffer to fail")
	}
}
