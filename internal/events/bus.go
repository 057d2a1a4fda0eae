/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Selection coordination events. Payload carries the new value (or nil
	// for a clear) plus the originating visualization.
	EventAlgorithmSelected   EventType = "selection.algorithm"
	EventCategorySelected    EventType = "selection.category"
	EventSubcategorySelected EventType = "selection.subcategory"
	EventPointSelected       EventType = "selection.point"
	EventSoundSelected       EventType = "selection.sound"
	EventSelectionConflict   EventType = "selection.conflict"

	// Filter events.
	EventFilterChanged EventType = "filter.changed"
	EventFilterCleared EventType = "filter.cleared"

	// Catalog events.
	EventCatalogRebuilt    EventType = "catalog.rebuilt"
	EventCatalogBatchReady EventType = "catalog.batch_ready"
	EventCatalogFailed     EventType = "catalog.failed"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. One bus is created per
// dashboard session; visualizations subscribe only to the fields they need.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
