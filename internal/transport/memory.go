// internal/transport/memory.go
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Hub is an in-process room fabric. Every peer made from the same Hub can
// join the same rooms; delivery is synchronous in the sender's goroutine, so
// message order is deterministic. Used by tests and same-process tables.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[PeerID]*MemTransport
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[PeerID]*MemTransport)}
}

// NewPeer creates a transport bound to this hub with a fresh identity.
func (h *Hub) NewPeer(name string) *MemTransport {
	return &MemTransport{
		hub:      h,
		self:     Peer{ID: PeerID(uuid.NewString()), Name: name},
		handlers: make(map[string]Handler),
	}
}

// MemTransport is one peer's handle on the hub.
type MemTransport struct {
	hub      *Hub
	self     Peer
	room     string
	handlers map[string]Handler
	onJoin   func(Peer)
	onLeave  func(PeerID)
}

// Join enters the room and announces this peer to its current members.
func (t *MemTransport) Join(ctx context.Context, code string) error {
	h := t.hub
	h.mu.Lock()
	if t.room != "" {
		h.mu.Unlock()
		return fmt.Errorf("transport: already joined to room %q", t.room)
	}
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[PeerID]*MemTransport)
		h.rooms[code] = room
	}
	members := make([]*MemTransport, 0, len(room))
	for _, m := range room {
		members = append(members, m)
	}
	room[t.self.ID] = t
	t.room = code
	h.mu.Unlock()

	for _, m := range members {
		if m.onJoin != nil {
			m.onJoin(t.self)
		}
	}
	return nil
}

// Leave exits the room and announces the departure.
func (t *MemTransport) Leave() error {
	h := t.hub
	h.mu.Lock()
	if t.room == "" {
		h.mu.Unlock()
		return ErrNotJoined
	}
	room := h.rooms[t.room]
	delete(room, t.self.ID)
	if len(room) == 0 {
		delete(h.rooms, t.room)
	}
	members := make([]*MemTransport, 0, len(room))
	for _, m := range room {
		members = append(members, m)
	}
	t.room = ""
	h.mu.Unlock()

	for _, m := range members {
		if m.onLeave != nil {
			m.onLeave(t.self.ID)
		}
	}
	return nil
}

func (t *MemTransport) Self() Peer { return t.self }

// Peers lists the other current members of the room.
func (t *MemTransport) Peers() []Peer {
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Peer
	for id, m := range h.rooms[t.room] {
		if id != t.self.ID {
			out = append(out, m.self)
		}
	}
	return out
}

// Send delivers tag+payload to one peer, or to every other member for
// Broadcast. Delivery is best-effort: unknown targets and unregistered tags
// are dropped.
func (t *MemTransport) Send(tag string, to PeerID, payload interface{}) error {
	if t.room == "" {
		return ErrNotJoined
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", tag, err)
	}

	h := t.hub
	h.mu.Lock()
	var targets []*MemTransport
	for id, m := range h.rooms[t.room] {
		if id == t.self.ID {
			continue
		}
		if to == Broadcast || to == id {
			targets = append(targets, m)
		}
	}
	h.mu.Unlock()

	for _, m := range targets {
		if fn, ok := m.handlers[tag]; ok {
			fn(t.self, data)
		}
	}
	return nil
}

// Handle registers the handler for one tag. Register before Join.
func (t *MemTransport) Handle(tag string, h Handler) { t.handlers[tag] = h }

func (t *MemTransport) OnPeerJoin(fn func(Peer))    { t.onJoin = fn }
func (t *MemTransport) OnPeerLeave(fn func(PeerID)) { t.onLeave = fn }
