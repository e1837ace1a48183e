package store

import "sync"

const subscriberBuffer = 16

// hub fans store events out to subscribers. Sends never block: a subscriber
// that falls behind misses events and is expected to re-query.
type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.closed = true
}
