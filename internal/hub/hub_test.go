package hub

import (
	"fmt"
	"testing"

	"chartflow/logger"
)

func testHub(queueSize int) *Hub {
	return NewHub(queueSize, logger.Logger())
}

func TestPublishDeliversInOrder(t *testing.T) {
	h := testHub(8)
	sub := h.Subscribe("BTC")
	defer h.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		h.Publish("BTC", "trade", []byte(fmt.Sprintf("frame-%d", i)))
	}

	for i := 0; i < 5; i++ {
		got := string(<-sub.C)
		want := fmt.Sprintf("frame-%d", i)
		if got != want {
			t.Fatalf("frame %d: got %q want %q", i, got, want)
		}
	}
}

func TestPublishFansOut(t *testing.T) {
	h := testHub(8)
	a := h.Subscribe("BTC")
	b := h.Subscribe("BTC")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("BTC", "book", []byte("frame"))

	if got := string(<-a.C); got != "frame" {
		t.Fatalf("subscriber a: got %q", got)
	}
	if got := string(<-b.C); got != "frame" {
		t.Fatalf("subscriber b: got %q", got)
	}
}

func TestPublishIsolatesTopics(t *testing.T) {
	h := testHub(8)
	btc := h.Subscribe("BTC")
	eth := h.Subscribe("ETH")
	defer h.Unsubscribe(btc)
	defer h.Unsubscribe(eth)

	h.Publish("BTC", "trade", []byte("frame"))

	if len(eth.C) != 0 {
		t.Fatalf("expected no cross-topic delivery, queue has %d frames", len(eth.C))
	}
	if len(btc.C) != 1 {
		t.Fatalf("expected 1 frame on BTC, got %d", len(btc.C))
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	h := testHub(8)
	// must not panic or block
	h.Publish("BTC", "trade", []byte("frame"))
}

func TestSlowSubscriberEvicted(t *testing.T) {
	h := testHub(2)
	slow := h.Subscribe("BTC")
	fast := h.Subscribe("BTC")
	defer h.Unsubscribe(fast)

	// drain fast, never drain slow
	for i := 0; i < 3; i++ {
		h.Publish("BTC", "trade", []byte("frame"))
		select {
		case <-fast.C:
		default:
		}
	}

	if h.Subscribers("BTC") != 1 {
		t.Fatalf("expected slow subscriber evicted, %d remain", h.Subscribers("BTC"))
	}

	// eviction closes the queue after the buffered frames drain
	count := 0
	for range slow.C {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 buffered frames before close, got %d", count)
	}

	// fast subscriber keeps receiving
	h.Publish("BTC", "trade", []byte("after"))
	if got := string(<-fast.C); got != "after" {
		t.Fatalf("surviving subscriber stalled: got %q", got)
	}
}

func TestPublishDuringUnsubscribeChurn(t *testing.T) {
	h := testHub(1)

	subs := make([]*Subscriber, 0, 256)
	for i := 0; i < 256; i++ {
		subs = append(subs, h.Subscribe("BTC"))
	}

	// Tear subscribers down while frames are in flight. A publish must never
	// hit a queue that an unsubscribe has already closed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sub := range subs {
			h.Unsubscribe(sub)
		}
	}()

	for i := 0; i < 1000; i++ {
		h.Publish("BTC", "trade", []byte("frame"))
	}
	<-done

	if n := h.Subscribers("BTC"); n != 0 {
		t.Fatalf("expected empty topic after churn, %d remain", n)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	h := testHub(2)
	sub := h.Subscribe("BTC")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	if h.Subscribers("BTC") != 0 {
		t.Fatalf("expected empty topic after unsubscribe")
	}
	if _, open := <-sub.C; open {
		t.Fatalf("expected closed queue after unsubscribe")
	}
}

func TestUnsubscribeAfterEviction(t *testing.T) {
	h := testHub(1)
	sub := h.Subscribe("BTC")

	h.Publish("BTC", "trade", []byte("one"))
	h.Publish("BTC", "trade", []byte("two")) // full queue, evicts

	if h.Subscribers("BTC") != 0 {
		t.Fatalf("expected eviction")
	}

	// the session defer still runs; must not panic
	h.Unsubscribe(sub)
}
