package store

import "sync"

// Hub fans change notifications out to in-process listeners. Backends
// without a native change feed publish to it after each committed write.
type Hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func()
}

func NewHub() *Hub {
	return &Hub{listeners: map[string]map[int]func(){}}
}

// Listen registers fn for userID and returns its cancel func.
func (h *Hub) Listen(userID string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.listeners[userID] == nil {
		h.listeners[userID] = map[int]func(){}
	}
	h.listeners[userID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners[userID], id)
			if len(h.listeners[userID]) == 0 {
				delete(h.listeners, userID)
			}
		})
	}
}

// Publish notifies every listener of userID. Listeners run outside the lock
// on the caller's goroutine.
func (h *Hub) Publish(userID string) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners[userID]))
	for _, fn := range h.listeners[userID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Listeners counts active listeners for userID.
func (h *Hub) Listeners(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[userID])
}

// Users lists user ids with at least one listener.
func (h *Hub) Users() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.listeners))
	for uid := range h.listeners {
		out = append(out, uid)
	}
	return out
}
