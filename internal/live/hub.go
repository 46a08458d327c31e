package live

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// Subscriber is one dashboard client's view of the snapshot stream
type Subscriber struct {
	id      string
	updates chan models.Snapshot
}

// Updates returns the snapshot channel. It is closed when the
// subscriber's context ends or the hub shuts down.
func (s *Subscriber) Updates() <-chan models.Snapshot {
	return s.updates
}

// Hub fans out state snapshots to a dynamic set of subscribers with
// latest-state semantics: a slow subscriber never blocks publication,
// and a missed snapshot is harmless because the next one is
// self-contained.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	current     models.Snapshot
	hasCurrent  bool
	closed      bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber bound to ctx. The current snapshot,
// if any, is delivered immediately so a dashboard never starts empty.
func (h *Hub) Subscribe(ctx context.Context) *Subscriber {
	sub := &Subscriber{
		id: uuid.New().String(),
		// Capacity 1: the pending slot always holds the newest snapshot
		updates: make(chan models.Snapshot, 1),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.updates)
		return sub
	}
	h.subscribers[sub.id] = sub
	if h.hasCurrent {
		sub.updates <- h.current
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.unsubscribe(sub.id)
	}()

	return sub
}

// Publish broadcasts a snapshot to all subscribers. For a subscriber
// with an undelivered snapshot pending, the stale one is replaced:
// latest wins, nothing blocks.
func (h *Hub) Publish(snapshot models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.current = snapshot
	h.hasCurrent = true

	for _, sub := range h.subscribers {
		select {
		case sub.updates <- snapshot:
		default:
			select {
			case <-sub.updates:
			default:
			}
			select {
			case sub.updates <- snapshot:
			default:
			}
		}
	}
}

// Current returns the most recently published snapshot
func (h *Hub) Current() (models.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.hasCurrent
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close shuts the hub down and terminates all subscriber streams
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subscribers {
		close(sub.updates)
		delete(h.subscribers, id)
	}
}

// unsubscribe removes one subscriber and closes its channel
func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, exists := h.subscribers[id]; exists {
		delete(h.subscribers, id)
		close(sub.updates)
	}
}
