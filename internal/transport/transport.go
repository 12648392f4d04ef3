// internal/transport/transport.go

// Package transport is the room-membership and message-channel contract the
// game core consumes. The core never sees sockets: it joins a named room,
// registers per-tag handlers, and sends tagged payloads to one peer or to
// the whole room. Implementations: an in-memory hub (tests, same-process
// tables) and a websocket client speaking to the relay server.
package transport

import (
	"context"
	"errors"
)

// PeerID identifies one participant in a room.
type PeerID string

// Peer is a connected participant: identity plus display name.
type Peer struct {
	ID   PeerID `json:"id"`
	Name string `json:"name"`
}

// Broadcast targets every other peer in the room.
const Broadcast PeerID = ""

// Handler consumes one received message for a registered tag.
type Handler func(from Peer, payload []byte)

// ErrNotJoined is returned for operations that need an active room.
var ErrNotJoined = errors.New("transport: not joined to a room")

// Transport is the contract consumed by the network session. Handlers and
// peer callbacks must be registered before Join; implementations deliver
// messages one at a time, never concurrently.
type Transport interface {
	// Join enters the named room. The transport's own peer identity is
	// valid after Join returns.
	Join(ctx context.Context, code string) error
	// Leave exits the current room and stops delivery.
	Leave() error
	// Self returns this transport's peer identity.
	Self() Peer
	// Peers lists the other participants currently in the room.
	Peers() []Peer
	// Send marshals payload as JSON and delivers it under tag to one peer,
	// or to every other peer when to == Broadcast.
	Send(tag string, to PeerID, payload interface{}) error
	// Handle registers the handler for one message tag.
	Handle(tag string, h Handler)
	// OnPeerJoin registers the callback for peers entering the room.
	OnPeerJoin(fn func(Peer))
	// OnPeerLeave registers the callback for peers leaving the room.
	OnPeerLeave(fn func(PeerID))
}
