// internal/relay/room.go
package relay

import (
	"sync"

	"github.com/sirupsen/logrus"

	"doudizhu/internal/transport"
)

// outChanSize bounds each connection's outgoing queue. A peer that cannot
// drain its queue loses messages rather than stalling the room.
const outChanSize = 64

// RoomConn is a single peer's presence in a room.
type RoomConn struct {
	Peer    transport.Peer
	OutChan chan transport.Envelope
	Cancel  func()

	// mu orders Write against Close: routers snapshot conns outside the
	// room mutex, so a write can race the peer's removal.
	mu     sync.Mutex
	closed bool
}

// Write pushes an envelope onto the peer's outgoing queue non-blockingly.
// Writes after Close are dropped.
func (c *RoomConn) Write(logger *logrus.Logger, env transport.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.OutChan <- env:
	default:
		logger.Warnf("room: out channel for peer %s full; dropped %q", c.Peer.ID, env.Tag)
	}
}

// Close shuts the outgoing queue exactly once so the write pump drains and
// exits. Idempotent.
func (c *RoomConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.OutChan)
}

// Room is an ephemeral named group of peers with directed and broadcast
// envelope routing. The relay never inspects application payloads.
type Room struct {
	Code string

	Mu    sync.Mutex
	Conns map[transport.PeerID]*RoomConn

	// OnEmpty is called after the last peer leaves, typically wired to the
	// store's delete.
	OnEmpty func(code string)

	logger *logrus.Logger
}

// NewRoom builds an empty room.
func NewRoom(code string, logger *logrus.Logger) *Room {
	return &Room{
		Code:   code,
		Conns:  make(map[transport.PeerID]*RoomConn),
		logger: logger,
	}
}

// Add registers a connection, returning the members present before it
// joined, and announces the arrival to them.
func (r *Room) Add(conn *RoomConn) []transport.Peer {
	r.Mu.Lock()
	existing := make([]transport.Peer, 0, len(r.Conns))
	for _, c := range r.Conns {
		existing = append(existing, c.Peer)
	}
	r.Conns[conn.Peer.ID] = conn
	r.Mu.Unlock()

	r.announce(transport.CtlPeerJoin, conn.Peer, conn.Peer.ID)
	r.logger.WithFields(logrus.Fields{"room": r.Code, "peer": conn.Peer.ID, "name": conn.Peer.Name}).Info("peer joined room")
	return existing
}

// Remove drops a connection, announces the departure, and fires OnEmpty if
// the room drained.
func (r *Room) Remove(id transport.PeerID) {
	r.Mu.Lock()
	conn, ok := r.Conns[id]
	if !ok {
		r.Mu.Unlock()
		return
	}
	delete(r.Conns, id)
	empty := len(r.Conns) == 0
	r.Mu.Unlock()

	conn.Close()
	if conn.Cancel != nil {
		conn.Cancel()
	}
	r.announce(transport.CtlPeerLeave, conn.Peer, id)
	r.logger.WithFields(logrus.Fields{"room": r.Code, "peer": id}).Info("peer left room")

	if empty && r.OnEmpty != nil {
		r.OnEmpty(r.Code)
	}
}

// Route forwards an application envelope from a peer to its target, or to
// every other peer when the target is empty.
func (r *Room) Route(from transport.PeerID, env transport.Envelope) {
	env.From = from

	r.Mu.Lock()
	targets := make([]*RoomConn, 0, len(r.Conns))
	for id, c := range r.Conns {
		if id == from {
			continue
		}
		if env.To == transport.Broadcast || env.To == id {
			targets = append(targets, c)
		}
	}
	r.Mu.Unlock()

	for _, c := range targets {
		c.Write(r.logger, env)
	}
}

// announce broadcasts a peer lifecycle event to everyone but the subject.
func (r *Room) announce(tag string, peer transport.Peer, skip transport.PeerID) {
	payload := mustMarshal(transport.PeerEvent{Peer: peer})
	env := transport.Envelope{Tag: tag, Payload: payload}

	r.Mu.Lock()
	targets := make([]*RoomConn, 0, len(r.Conns))
	for id, c := range r.Conns {
		if id != skip {
			targets = append(targets, c)
		}
	}
	r.Mu.Unlock()

	for _, c := range targets {
		c.Write(r.logger, env)
	}
}
