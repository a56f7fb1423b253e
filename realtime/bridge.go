package realtime

import "github.com/switchyard-ai/switchyard/analytics"

// Metric types published by the analytics bridge
const (
	MetricRoutingDecision = "routing_decision"
	MetricRoutingFailure  = "routing_failure"
)

// BridgeAnalytics publishes every recorded routing metric onto the bus.
// Failures go out under their own type so dashboards can subscribe to
// just the bad news.
func BridgeAnalytics(collector *analytics.Collector, bus *Bus) {
	collector.OnRecord(func(metric analytics.RoutingMetric) {
		bus.Broadcast(MetricRoutingDecision, metric)
		if !metric.Success {
			bus.Broadcast(MetricRoutingFailure, metric)
		}
	})
}
