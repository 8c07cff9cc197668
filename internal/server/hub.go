package server

import (
	"sync"

	"caseforge/internal/orchestrator"
)

// Hub fans pipeline events out to websocket subscribers, keyed by case id.
// Publish never blocks: a subscriber that stops draining loses events rather
// than stalling the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan orchestrator.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan orchestrator.Event]struct{})}
}

func (h *Hub) Subscribe(caseID string) (<-chan orchestrator.Event, func()) {
	ch := make(chan orchestrator.Event, 32)
	h.mu.Lock()
	if h.subs[caseID] == nil {
		h.subs[caseID] = make(map[chan orchestrator.Event]struct{})
	}
	h.subs[caseID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[caseID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, caseID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(ev orchestrator.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.CaseID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
