// Package events provides the in-process change event bus
package events

import "sync"

// Event is one timeline change delivered to subscribers.
type Event struct {
	TimelineID string `json:"timeline_id"`
	Op         string `json:"op"`
	StateID    string `json:"state_id"`
	Label      string `json:"label,omitempty"`
}

// Bus fans out change events to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event and must refetch.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given buffer size. The
// returned cancel function removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with buffer room.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
