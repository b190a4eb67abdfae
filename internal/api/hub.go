package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/roadagent/internal/sim"
)

// Hub fans frames out to websocket subscribers. It satisfies sim.Observer
// and never blocks the simulation: a subscriber that falls behind misses
// frames.
type Hub struct {
	every uint64

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan []byte
	drops  uint64
	closed bool
}

// NewHub broadcasts every Nth tick; every <= 1 broadcasts them all.
func NewHub(every int) *Hub {
	if every < 1 {
		every = 1
	}
	return &Hub{every: uint64(every), subs: make(map[uint64]chan []byte)}
}

// Subscribe registers a subscriber. The channel closes when the returned
// func is called or the hub closes.
func (h *Hub) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many frame deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drops
}

// ObserveFrame encodes f once and offers it to every subscriber.
func (h *Hub) ObserveFrame(_ context.Context, f sim.Frame) error {
	if f.Tick%h.every != 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.subs) == 0 {
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.drops++
		}
	}
	return nil
}

// Close ends every subscription. Later frames are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
