// Package realtime broadcasts analytics updates to subscribers, both
// in-process and over WebSocket.
package realtime

import (
	"sync"
	"time"
)

// Update is one broadcast message
type Update struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
}

// Subscriber receives matching updates. Implementations must not block;
// slow subscribers are the hub's problem, not the bus's.
type Subscriber interface {
	Deliver(update Update)
	Wants(metricType string) bool
}

// Bus is a minimal in-process pub/sub. It owns only the subscriber set.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Subscriber]struct{})}
}

// Attach registers a subscriber
func (b *Bus) Attach(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[s] = struct{}{}
}

// Detach removes a subscriber
func (b *Bus) Detach(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, s)
}

// Broadcast delivers an update to every subscriber interested in the
// metric type.
func (b *Bus) Broadcast(metricType string, payload interface{}) {
	update := Update{
		Timestamp: time.Now().UTC(),
		Type:      metricType,
		Data:      payload,
	}

	b.mu.RLock()
	subscribers := make([]Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subscribers = append(subscribers, s)
	}
	b.mu.RUnlock()

	// Delivery runs outside the lock so a subscriber can detach itself
	// or be dropped by the hub mid-broadcast without deadlocking.
	for _, s := range subscribers {
		if s.Wants(metricType) {
			s.Deliver(update)
		}
	}
}

// SubscriberCount returns the number of attached subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
