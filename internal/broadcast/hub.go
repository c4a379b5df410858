package broadcast

import "sync"

// Subscriber is a local connection that can receive room messages.
type Subscriber interface {
	ID() string
	// Deliver must not block. It reports false when the message was dropped.
	Deliver(Message) bool
}

// Hub tracks the connections attached to each room in this process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]map[string]Subscriber)} }

func (h *Hub) Attach(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[sub.ID()] = sub
}

func (h *Hub) Detach(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Size returns the number of local connections attached to room.
func (h *Hub) Size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// deliver fans msg out to every local member of room except the one with
// id except. It returns the ids whose buffers were full.
func (h *Hub) deliver(room, except string, msg Message) []string {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[room]))
	for id, sub := range h.rooms[room] {
		if id == except {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var dropped []string
	for _, sub := range targets {
		if !sub.Deliver(msg) {
			dropped = append(dropped, sub.ID())
		}
	}
	return dropped
}
