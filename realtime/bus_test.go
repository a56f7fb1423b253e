package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/switchyard-ai/switchyard/analytics"
)

// recordingSubscriber collects delivered updates
type recordingSubscriber struct {
	mu      sync.Mutex
	wants   map[string]bool
	updates []Update
}

func newRecordingSubscriber(metricTypes ...string) *recordingSubscriber {
	wants := make(map[string]bool)
	for _, mt := range metricTypes {
		wants[mt] = true
	}
	return &recordingSubscriber{wants: wants}
}

func (r *recordingSubscriber) Deliver(update Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recordingSubscriber) Wants(metricType string) bool {
	return r.wants[metricType]
}

func (r *recordingSubscriber) received() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func TestBus_BroadcastFiltering(t *testing.T) {
	bus := NewBus()

	decisions := newRecordingSubscriber(MetricRoutingDecision)
	failures := newRecordingSubscriber(MetricRoutingFailure)
	bus.Attach(decisions)
	bus.Attach(failures)

	bus.Broadcast(MetricRoutingDecision, map[string]string{"project": "weather"})
	bus.Broadcast(MetricRoutingFailure, map[string]string{"error": "timeout"})

	assert.Len(t, decisions.received(), 1)
	assert.Len(t, failures.received(), 1)
	assert.Equal(t, MetricRoutingDecision, decisions.received()[0].Type)
	assert.False(t, decisions.received()[0].Timestamp.IsZero())
}

func TestBus_Detach(t *testing.T) {
	bus := NewBus()
	sub := newRecordingSubscriber(MetricRoutingDecision)

	bus.Attach(sub)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Detach(sub)
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Broadcast(MetricRoutingDecision, nil)
	assert.Empty(t, sub.received())
}

// detachingSubscriber removes itself from the bus inside Deliver, the
// same re-entrant shape the hub uses when it drops a slow client.
type detachingSubscriber struct {
	bus       *Bus
	delivered bool
}

func (d *detachingSubscriber) Deliver(update Update) {
	d.delivered = true
	d.bus.Detach(d)
}

func (d *detachingSubscriber) Wants(metricType string) bool { return true }

func TestBus_SubscriberMayDetachDuringDeliver(t *testing.T) {
	bus := NewBus()
	sub := &detachingSubscriber{bus: bus}
	bus.Attach(sub)

	done := make(chan struct{})
	go func() {
		bus.Broadcast(MetricRoutingDecision, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a subscriber detaching itself")
	}
	assert.True(t, sub.delivered)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBridgeAnalytics(t *testing.T) {
	bus := NewBus()
	sub := newRecordingSubscriber(MetricRoutingDecision, MetricRoutingFailure)
	bus.Attach(sub)

	collector := analytics.NewCollector(10, nil, nil, nil)
	BridgeAnalytics(collector, bus)

	collector.Record(analytics.RoutingMetric{Query: "ok query", ProjectSelected: "weather", Success: true})
	collector.Record(analytics.RoutingMetric{Query: "bad query", ProjectSelected: "weather", Success: false})

	updates := sub.received()
	assert.Len(t, updates, 3, "two decision updates plus one failure update")
}
