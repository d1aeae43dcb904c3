package notifier

import (
	"sync"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
)

const subscriberBuffer = 32

type subscriber struct {
	ch     chan domain.Event
	closed bool
}

// Hub relays events to subscribers of one session id. Progress is dropped for slow
// subscribers; the terminal event is always delivered and closes the channel.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers interest in id. The returned func unsubscribes and is safe to call twice.
func (h *Hub) Subscribe(id string) (<-chan domain.Event, func()) {
	s := &subscriber{ch: make(chan domain.Event, subscriberBuffer)}

	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[id] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	return s.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(id, s)
	}
}

// Subscribers returns how many listeners id has.
func (h *Hub) Subscribers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}

func (h *Hub) remove(id string, s *subscriber) {
	set := h.subs[id]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, id)
	}
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (h *Hub) Emit(e domain.Event) {
	if e.SessionID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[e.SessionID] {
		if !e.Kind.Terminal() {
			select {
			case s.ch <- e:
			default:
			}
			continue
		}

		// Make room by dropping the oldest buffered update.
		select {
		case s.ch <- e:
		default:
			select {
			case <-s.ch:
			default:
			}
			s.ch <- e
		}
		h.remove(e.SessionID, s)
	}
}
