// internal/session/host.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"doudizhu/internal/game"
	"doudizhu/internal/history"
	"doudizhu/internal/protocol"
	"doudizhu/internal/transport"
)

// Host owns the canonical game state and all seat bookkeeping for a room.
// Exactly one participant runs a Host: the first to join an otherwise-empty
// room. Remote seats never mutate shared state; they send intents, the host
// applies them against its state, and every mutation is answered with one
// filtered view per seat. The host's own player commands flow through the
// same dispatch as remote intents.
//
// All methods lock through the game mutex; transport sends happen with the
// lock held, which is safe because receivers only replace their projections
// and never call back.
type Host struct {
	tr     transport.Transport
	logger *logrus.Logger
	room   string

	g     *game.Game
	seats [3]protocol.SeatInfo

	// recorder, when set, receives finished-round results.
	recorder history.RoundRecorder

	// onSelfView delivers the host player's own view without a network
	// round trip.
	onSelfView func(protocol.GameSync)

	// onRoom mirrors room updates to the host's own UI.
	onRoom func(protocol.RoomUpdate)

	// onSelfError surfaces the host player's own rejected intents, which
	// never travel over the transport.
	onSelfError func(msg string)
}

// newHost wires a Host over an already-joined transport.
func newHost(tr transport.Transport, room string, logger *logrus.Logger) *Host {
	h := &Host{
		tr:     tr,
		logger: logger,
		room:   room,
		g:      game.NewGame(),
	}
	h.g.Logf = logger.Debugf
	h.g.OnChange = h.pushState
	return h
}

// SetThinkDelay overrides the bot thinking delay (tests shrink it).
func (h *Host) SetThinkDelay(d time.Duration) {
	h.g.Mu.Lock()
	defer h.g.Mu.Unlock()
	h.g.ThinkDelay = d
}

// HandleIntent applies one remote (or loopback) intent against the
// canonical state. Out-of-turn intents are dropped silently; other rule
// violations are answered with a directed error message only.
func (h *Host) HandleIntent(from transport.Peer, tag string, payload []byte) {
	h.g.Mu.Lock()
	defer h.g.Mu.Unlock()

	switch tag {
	case protocol.MsgSeatRequest:
		var req protocol.SeatRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			h.sendError(from.ID, "malformed seat request")
			return
		}
		h.handleSeatRequest(from, req.Name)
	case protocol.MsgLeaveSeat:
		h.releaseSeat(from.ID, false)
	case protocol.MsgReadyToggle:
		h.handleReadyToggle(from.ID)
	case protocol.MsgBid:
		var bid protocol.Bid
		if err := json.Unmarshal(payload, &bid); err != nil {
			h.sendError(from.ID, "malformed bid")
			return
		}
		h.handleGameIntent(from.ID, func(seat int) error {
			return h.g.HandleBid(seat, bid.Action == protocol.BidActionBid)
		})
	case protocol.MsgPlay:
		var play protocol.Play
		if err := json.Unmarshal(payload, &play); err != nil {
			h.sendError(from.ID, "malformed play")
			return
		}
		h.handleGameIntent(from.ID, func(seat int) error {
			return h.g.HandlePlay(seat, play.CardIDs)
		})
	case protocol.MsgPass:
		h.handleGameIntent(from.ID, func(seat int) error {
			return h.g.HandlePass(seat)
		})
	case protocol.MsgSyncRequest:
		h.syncPeer(from.ID)
	default:
		h.logger.Debugf("host: ignoring unknown intent %q from %s", tag, from.ID)
	}
}

// handleSeatRequest fills the first empty seat. A full room leaves the
// requester an unassigned observer.
func (h *Host) handleSeatRequest(from transport.Peer, name string) {
	if seat := h.seatOf(from.ID); seat >= 0 {
		h.syncPeer(from.ID) // already seated; just re-sync
		return
	}
	seat := -1
	for i := range h.seats {
		if !h.seats[i].Occupied() {
			seat = i
			break
		}
	}
	if seat < 0 {
		h.sendError(from.ID, "all seats are taken")
		h.sendRoomUpdate()
		return
	}
	if name == "" {
		name = from.Name
	}
	h.seats[seat] = protocol.SeatInfo{Peer: string(from.ID), Name: name, Connected: true}
	h.g.Seats[seat].Name = name
	h.logger.WithFields(logrus.Fields{"room": h.room, "seat": seat, "peer": from.ID}).Info("seat assigned")
	h.sendRoomUpdate()
	h.syncPeer(from.ID)
}

// handleReadyToggle flips readiness; when all three seats are occupied and
// ready with no round underway, the round starts automatically.
func (h *Host) handleReadyToggle(peer transport.PeerID) {
	seat := h.seatOf(peer)
	if seat < 0 {
		return
	}
	h.seats[seat].Ready = !h.seats[seat].Ready
	h.sendRoomUpdate()
	h.maybeStartRound()
}

// StartNewRound re-deals after a finished round (host command).
func (h *Host) StartNewRound() error {
	h.g.Mu.Lock()
	defer h.g.Mu.Unlock()
	if h.g.Phase != game.PhaseFinished && h.g.Phase != game.PhaseIdle {
		return game.ErrBadPhase
	}
	for i := range h.seats {
		h.seats[i].Ready = false
	}
	h.sendRoomUpdate()
	return nil
}

// maybeStartRound starts the round once every seat is occupied and ready.
// Lock held.
func (h *Host) maybeStartRound() {
	if h.g.Phase != game.PhaseIdle && h.g.Phase != game.PhaseFinished {
		return
	}
	for i := range h.seats {
		if !h.seats[i].Occupied() || !h.seats[i].Ready {
			return
		}
	}
	h.logger.WithField("room", h.room).Info("all seats ready; starting round")
	if err := h.g.Start(); err != nil {
		h.logger.Warnf("host: round start failed: %v", err)
	}
}

// handleGameIntent maps a peer to its seat and applies a rule operation.
// ErrOutOfTurn is dropped silently so turn information never leaks to the
// wrong party; other violations go back to the sender only.
func (h *Host) handleGameIntent(peer transport.PeerID, op func(seat int) error) {
	seat := h.seatOf(peer)
	if seat < 0 {
		return
	}
	err := op(seat)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrOutOfTurn):
		h.logger.Debugf("host: dropping out-of-turn intent from seat %d", seat)
	default:
		h.sendError(peer, err.Error())
	}
}

// HandlePeerLeave reacts to the transport's only failure signal. Mid-round
// the seat is kept and marked non-connected with bot takeover; before a
// round starts the seat is freed outright.
func (h *Host) HandlePeerLeave(peer transport.PeerID) {
	h.g.Mu.Lock()
	defer h.g.Mu.Unlock()
	h.releaseSeat(peer, true)
}

// releaseSeat implements both leave_seat and peer-leave. Lock held.
func (h *Host) releaseSeat(peer transport.PeerID, disconnect bool) {
	seat := h.seatOf(peer)
	if seat < 0 {
		return
	}
	midRound := h.g.Phase == game.PhaseBidding || h.g.Phase == game.PhasePlaying
	if midRound {
		h.seats[seat].Connected = false
		h.seats[seat].Ready = false
		h.logger.WithFields(logrus.Fields{"room": h.room, "seat": seat, "disconnect": disconnect}).
			Info("seat lost its player mid-round; bot takes over")
		// SetSeatBot commits, which re-projects and schedules the bot
		// decision if this seat is the acting one.
		h.g.SetSeatBot(seat, true)
	} else {
		h.seats[seat] = protocol.SeatInfo{}
		h.g.Seats[seat].Name = ""
		h.logger.WithFields(logrus.Fields{"room": h.room, "seat": seat}).Info("seat freed")
	}
	h.sendRoomUpdate()
}

// seatOf returns the seat index held by a peer, or -1. Lock held.
func (h *Host) seatOf(peer transport.PeerID) int {
	for i := range h.seats {
		if h.seats[i].Peer == string(peer) {
			return i
		}
	}
	return -1
}

// pushState runs after every game mutation (lock held): one filtered view
// per seat, never the full state, plus a room update so phase changes reach
// observers.
func (h *Host) pushState() {
	// Record before settling: settleRound wipes the names of freed seats.
	h.maybeRecordRound()
	if h.g.Phase == game.PhaseFinished || h.g.Phase == game.PhaseIdle {
		h.settleRound()
	}
	h.sendRoomUpdate()
	for i := range h.seats {
		if h.seats[i].Occupied() {
			h.syncSeat(i)
		}
	}
}

// settleRound runs when a round ends, finished or abandoned to idle by three
// bid passes (lock held): every seat needs a fresh ready toggle before the
// next deal, and seats whose player disconnected mid-round are freed now
// that their bot is done.
func (h *Host) settleRound() {
	for i := range h.seats {
		h.seats[i].Ready = false
		if h.seats[i].Occupied() && !h.seats[i].Connected {
			h.seats[i] = protocol.SeatInfo{}
			h.g.Seats[i].Name = ""
			h.g.Seats[i].Bot = false
			h.logger.WithFields(logrus.Fields{"room": h.room, "seat": i}).Info("disconnected seat freed after round")
		}
	}
}

// syncSeat sends seat i its own view. The host player's view is delivered
// locally. Lock held.
func (h *Host) syncSeat(seat int) {
	sync := protocol.GameSync{View: game.Project(h.g, seat), MySeat: seat}
	peer := transport.PeerID(h.seats[seat].Peer)
	if peer == h.tr.Self().ID {
		if h.onSelfView != nil {
			h.onSelfView(sync)
		}
		return
	}
	if !h.seats[seat].Connected {
		return
	}
	if err := h.tr.Send(protocol.MsgGameSync, peer, sync); err != nil {
		h.logger.Warnf("host: view sync to seat %d failed: %v", seat, err)
	}
}

// syncPeer answers a sync request, including for unassigned observers, who
// get the observer projection. Lock held.
func (h *Host) syncPeer(peer transport.PeerID) {
	seat := h.seatOf(peer)
	if seat >= 0 {
		h.syncSeat(seat)
		return
	}
	sync := protocol.GameSync{View: game.Project(h.g, -1), MySeat: -1}
	if err := h.tr.Send(protocol.MsgGameSync, peer, sync); err != nil {
		h.logger.Warnf("host: observer sync failed: %v", err)
	}
}

// sendRoomUpdate broadcasts seat bookkeeping and phase to the whole room
// and mirrors it to the host's own UI. Lock held.
func (h *Host) sendRoomUpdate() {
	update := protocol.RoomUpdate{Seats: h.seats, Phase: h.g.Phase}
	if err := h.tr.Send(protocol.MsgRoomUpdate, transport.Broadcast, update); err != nil {
		h.logger.Warnf("host: room update broadcast failed: %v", err)
	}
	if h.onRoom != nil {
		h.onRoom(update)
	}
}

// sendError reports a rejected intent to the offending peer only. The
// host's own rejected commands surface through the loopback path.
func (h *Host) sendError(peer transport.PeerID, msg string) {
	if peer == h.tr.Self().ID {
		if h.onSelfError != nil {
			h.onSelfError(msg)
		}
		return
	}
	if err := h.tr.Send(protocol.MsgError, peer, protocol.ErrorMsg{Message: msg}); err != nil {
		h.logger.Warnf("host: error send failed: %v", err)
	}
}

// maybeRecordRound hands a just-finished round to the recorder. Lock held.
func (h *Host) maybeRecordRound() {
	if h.recorder == nil || h.g.Phase != game.PhaseFinished {
		return
	}
	rec := history.RoundRecord{
		GameID:    h.g.ID,
		Room:      h.room,
		Landlord:  h.g.Landlord,
		Winner:    string(h.g.Winner),
		BombCount: h.g.BombCount,
		Timestamp: time.Now().UnixMilli(),
	}
	for i, s := range h.g.Seats {
		rec.Names[i] = s.Name
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.recorder.RecordRound(ctx, rec); err != nil {
			h.logger.Warnf("host: round record failed: %v", err)
		}
	}()
}

// Shutdown cancels timers on teardown.
func (h *Host) Shutdown() {
	h.g.Mu.Lock()
	defer h.g.Mu.Unlock()
	h.g.StopTimers()
}
