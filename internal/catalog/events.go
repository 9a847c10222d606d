package catalog

import (
	"sync"
	"time"
)

// EventType identifies a catalog change notification.
type EventType string

const (
	EventScanStarted       EventType = "scan_started"
	EventScanCompleted     EventType = "scan_completed"
	EventScanCancelled     EventType = "scan_cancelled"
	EventRepositoryUpdated EventType = "repository_updated"
	EventFavoriteChanged   EventType = "favorite_changed"
	EventCatalogCleared    EventType = "catalog_cleared"
)

// Event is a catalog change notification.
type Event struct {
	Type EventType
	// RepositoryID is set for single-repository events.
	RepositoryID string
	// Count is the catalog size after scan and clear events.
	Count int
	Time  time.Time
}

// broker fans events out to subscribers without ever blocking the publisher.
type broker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, max(buffer, 1))
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// publish drops the event for any subscriber whose buffer is full.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.closed = true
}
