// internal/transport/wire.go
package transport

import "encoding/json"

// Relay wire format. One JSON envelope per websocket text frame, both
// directions. The relay fills From on the way through; To is empty for a
// room broadcast. Control tags (underscore-prefixed) are reserved for the
// relay itself and never reach application handlers.
type Envelope struct {
	Tag     string          `json:"tag"`
	From    PeerID          `json:"from,omitempty"`
	To      PeerID          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Control tags spoken by the relay.
const (
	CtlWelcome   = "_welcome"    // relay -> client, first frame after accept
	CtlPeerJoin  = "_peer_join"  // relay -> room, a peer entered
	CtlPeerLeave = "_peer_leave" // relay -> room, a peer left
)

// Welcome is the CtlWelcome payload: the client's own assigned identity and
// the room membership at join time.
type Welcome struct {
	Self  Peer   `json:"self"`
	Peers []Peer `json:"peers"`
}

// PeerEvent is the CtlPeerJoin / CtlPeerLeave payload.
type PeerEvent struct {
	Peer Peer `json:"peer"`
}

// Subprotocol is the websocket subprotocol the relay requires.
const Subprotocol = "room"
