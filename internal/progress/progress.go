// Package progress fans out counters from long-running sync and binning
// loops to any attached observer (the status server's stream endpoint).
package progress

import (
	"sync"
	"time"
)

// Event is one progress counter sample.
type Event struct {
	Kind      string    `json:"kind"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Time      time.Time `json:"time"`
}

// Hub broadcasts events to subscribers. Publishing never blocks; slow
// subscribers drop events.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to every subscriber. Safe on a nil hub.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers an observer. The returned function unsubscribes
// and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}
