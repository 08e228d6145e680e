package explorer

import "sync"

// Hub fans payloads out to subscribers. Each subscription buffers only the
// most recent payload, so a slow subscriber skips intermediate states instead
// of holding up a broadcast.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates a Hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription receives broadcast payloads on C until it is closed.
type Subscription struct {
	C <-chan Payload

	ch   chan Payload
	hub  *Hub
	once sync.Once
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Payload, 1)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	metricSubscribers.Set(float64(n))
	return sub
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs, s)
		n := len(h.subs)
		close(s.ch)
		h.mu.Unlock()

		metricSubscribers.Set(float64(n))
	})
}

// Broadcast hands payload to every subscriber without blocking, replacing
// any payload a subscriber has not consumed yet.
func (h *Hub) Broadcast(payload Payload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- payload:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- payload:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
