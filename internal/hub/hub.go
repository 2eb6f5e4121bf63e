// Package hub routes encoded frames from the ingest adapter to websocket
// subscribers. Topics are instrument identifiers; every subscriber owns a
// bounded queue and a slow subscriber is dropped rather than allowed to
// stall the publisher.
package hub

import (
	"sync"

	"github.com/google/uuid"

	"chartflow/internal/metrics"
	"chartflow/logger"
)

// Subscriber is one registered frame consumer. Frames arrive on C in publish
// order; the channel is closed when the subscriber leaves its topic, whether
// by Unsubscribe or by eviction.
type Subscriber struct {
	ID    string
	C     chan []byte
	topic string
	once  sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.C) })
}

// Topic returns the topic the subscriber was registered on.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Hub is the topic registry. Safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	queueSize int
	topics    map[string]map[*Subscriber]struct{}
	log       *logger.Log
}

// NewHub creates an empty registry. queueSize is the per-subscriber frame
// queue capacity.
func NewHub(queueSize int, log *logger.Log) *Hub {
	return &Hub{
		queueSize: queueSize,
		topics:    make(map[string]map[*Subscriber]struct{}),
		log:       log,
	}
}

// Subscribe registers a new subscriber on the topic and returns it. The topic
// is created on first use.
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		ID:    uuid.NewString(),
		C:     make(chan []byte, h.queueSize),
		topic: topic,
	}

	h.mu.Lock()
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.topics[topic] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	h.log.WithComponent("hub").WithFields(logger.Fields{
		"topic":      topic,
		"subscriber": sub.ID,
	}).Debug("subscriber registered")
	return sub
}

// Unsubscribe removes the subscriber from its topic and closes its queue.
// Safe to call more than once and safe to call after eviction.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	h.detach(sub)
	h.mu.Unlock()

	// Publishers hold the read lock while sending, so once the detach is
	// visible no send can be in flight on this queue.
	sub.close()
}

// detach removes the subscriber from the topic map, dropping the topic once
// it is empty. Caller holds h.mu.
func (h *Hub) detach(sub *Subscriber) {
	set, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.topics, sub.topic)
	}
}

// Publish delivers the frame to every subscriber on the topic without ever
// blocking. A subscriber whose queue is full loses the frame and is evicted
// from the topic on the spot; the remaining subscribers are unaffected.
// Publishing to a topic with no subscribers is a no-op.
//
// The read lock is held across the delivery pass: a queue is closed only
// after a detach under the write lock, so every send here targets an open
// channel.
func (h *Hub) Publish(topic, kind string, frame []byte) {
	var evicted []*Subscriber
	h.mu.RLock()
	for sub := range h.topics[topic] {
		select {
		case sub.C <- frame:
			logger.IncrementFrameSent(len(frame))
		default:
			logger.IncrementFrameDropped()
			evicted = append(evicted, sub)
		}
	}
	h.mu.RUnlock()

	if len(evicted) == 0 {
		return
	}

	h.mu.Lock()
	for _, sub := range evicted {
		h.detach(sub)
	}
	h.mu.Unlock()

	for _, sub := range evicted {
		sub.close()
		h.log.WithComponent("hub").WithFields(logger.Fields{
			"topic":      topic,
			"kind":       kind,
			"subscriber": sub.ID,
		}).Warn("slow subscriber evicted")
		metrics.EmitDropMetric(h.log, metrics.DropMetricSubscriberFrame, topic, kind, sub.ID)
	}
}

// Subscribers returns the number of subscribers currently on the topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
