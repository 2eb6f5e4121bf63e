package metrics

import "chartflow/logger"

// DropMetric identifies the metric name emitted when messages are dropped.
type DropMetric string

const (
	// DropMetricFeedEvent records normalized feed events dropped on a full
	// event buffer before they reach the store.
	DropMetricFeedEvent DropMetric = "event_dropped"
	// DropMetricSubscriberFrame records frames dropped on a full subscriber
	// queue. The subscriber is evicted from its topic at the same time.
	DropMetricSubscriberFrame DropMetric = "subscriber_dropped"
)

// EmitDropMetric logs and emits a metric representing a dropped message. The
// metric value is always incremented by one so callers should invoke this
// helper for each dropped message. Optional metadata (instrument, kind,
// subscriber) is added to the metric fields when provided which enables
// downstream aggregation per topic and stream type.
func EmitDropMetric(log *logger.Log, metric DropMetric, instrument, kind, subscriber string) {
	fields := logger.Fields{}
	if instrument != "" {
		fields["instrument"] = instrument
	}
	if kind != "" {
		fields["kind"] = kind
	}
	if subscriber != "" {
		fields["subscriber"] = subscriber
	}

	EmitMetric(log, "delivery_drops", string(metric), 1, "counter", fields)
}
