package server

import (
	"sync"

	"github.com/vampirenirmal/alphaaudio/internal/core"
)

const subscriberBuffer = 32

// Hub fans progress events out to the websocket connections of a session.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan core.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan core.Event]struct{})}
}

// Subscribe registers a listener for sessionID. The returned func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan core.Event, func()) {
	ch := make(chan core.Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan core.Event]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every listener of sessionID. Slow listeners miss
// events rather than stalling the pipeline.
func (h *Hub) Publish(sessionID string, ev core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Observer returns a core.Observer bound to sessionID.
func (h *Hub) Observer(sessionID string) core.Observer {
	return func(ev core.Event) {
		h.Publish(sessionID, ev)
	}
}

// Subscribers returns the number of listeners for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
