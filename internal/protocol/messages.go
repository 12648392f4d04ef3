// internal/protocol/messages.go
package protocol

import (
	"doudizhu/internal/game"
)

// Client -> host intent tags. Each is its own transport action; payloads are
// defined below, and tags without a payload struct carry none.
const (
	MsgSeatRequest = "seat_request"
	MsgLeaveSeat   = "leave_seat"
	MsgReadyToggle = "ready_toggle"
	MsgBid         = "bid"
	MsgPlay        = "play"
	MsgPass        = "pass"
	MsgSyncRequest = "sync_request"
)

// Host -> client tags.
const (
	MsgRoomUpdate = "room_update" // broadcast
	MsgGameSync   = "game_sync"   // directed per seat
	MsgError      = "error"       // directed
)

// Bid actions.
const (
	BidActionBid  = "bid"
	BidActionPass = "pass"
)

// SeatRequest asks the host for the first empty seat.
type SeatRequest struct {
	Name string `json:"name"`
}

// Bid is a bidding decision by the requesting seat.
type Bid struct {
	Action string `json:"action"` // BidActionBid or BidActionPass
}

// Play submits a card selection by ID.
type Play struct {
	CardIDs []string `json:"cardIds"`
}

// SeatInfo is the host's bookkeeping for one seat, shared in room updates.
// A zero Peer means the seat is empty.
type SeatInfo struct {
	Peer      string `json:"peer,omitempty"`
	Name      string `json:"name,omitempty"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// Occupied reports whether an identity holds the seat.
func (s SeatInfo) Occupied() bool { return s.Peer != "" }

// RoomUpdate is broadcast whenever seat bookkeeping or the phase changes.
type RoomUpdate struct {
	Seats [3]SeatInfo `json:"seats"`
	Phase game.Phase  `json:"phase"`
}

// GameSync carries one seat's filtered view. The receiver replaces its local
// projection wholesale; views are never merged.
type GameSync struct {
	View   game.View `json:"view"`
	MySeat int       `json:"mySeat"`
}

// ErrorMsg surfaces a rejected intent to the offending client only.
type ErrorMsg struct {
	Message string `json:"message"`
}
