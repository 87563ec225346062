// Package events fans triage events out to live subscribers (the websocket
// feed). Delivery is best-effort: slow subscribers drop events rather than
// block the engine.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

type Broadcaster struct {
	subscribers map[uint64]chan *models.TriageEvent
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.TriageEvent),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan *models.TriageEvent) {
	id := b.nextID.Add(1)
	ch := make(chan *models.TriageEvent, 100)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(e *models.TriageEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing feeds to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
