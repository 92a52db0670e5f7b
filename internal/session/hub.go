package session

import (
	"sync"

	"voice-calculator/internal/speech"
)

// Update is pushed to display subscribers after every applied operation.
type Update struct {
	SessionID  string            `json:"session_id"`
	Operation  string            `json:"operation"`
	Display    string            `json:"display"`
	Expression string            `json:"expression"`
	Action     string            `json:"action,omitempty"`
	Heard      string            `json:"heard,omitempty"`
	Speech     string            `json:"speech,omitempty"`
	Utterance  *speech.Utterance `json:"utterance,omitempty"`
}

// Subscription receives the updates of one session until Close.
type Subscription struct {
	C <-chan Update

	ch   chan Update
	id   string
	hub  *Hub
	once sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans updates out to the subscribers of each session. Slow subscribers
// miss updates rather than block the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for session id.
func (h *Hub) Subscribe(id string) *Subscription {
	ch := make(chan Update, h.buffer)
	sub := &Subscription{C: ch, ch: ch, id: id, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[*Subscription]struct{})
	}
	h.subs[id][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.id]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.id)
		}
	}
	close(sub.ch)
}

// Publish delivers u to every subscriber of u.SessionID and returns how many
// received it.
func (h *Hub) Publish(u Update) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[u.SessionID] {
		select {
		case sub.ch <- u:
			delivered++
		default:
		}
	}
	return delivered
}

// CloseSession drops every subscriber of id.
func (h *Hub) CloseSession(id string) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs[id]))
	for sub := range h.subs[id] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Subscribers returns the number of subscribers of id.
func (h *Hub) Subscribers(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}
