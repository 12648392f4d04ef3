// internal/session/net.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"doudizhu/internal/deck"
	"doudizhu/internal/game"
	"doudizhu/internal/history"
	"doudizhu/internal/protocol"
	"doudizhu/internal/transport"
)

// ErrRoomClosed is returned from commands after the authoritative peer left
// the room. State sharing is host-based, so the room cannot continue.
var ErrRoomClosed = errors.New("session: room closed (host left)")

// NetSession is one participant's session in a shared room. The first peer
// to join an empty room becomes the host and runs the canonical game; every
// later joiner is a client that sends intents and renders whatever view the
// host pushes. Both roles expose the same command surface, so callers never
// branch on who holds the state.
type NetSession struct {
	tr     transport.Transport
	logger *logrus.Logger
	name   string

	// host is non-nil when this peer holds the canonical state.
	host *Host

	mu       sync.Mutex
	view     *game.View
	mySeat   int
	seats    [3]protocol.SeatInfo
	phase    game.Phase
	hostPeer transport.PeerID
	notice   string
	closed   bool
	selected map[string]bool

	// OnUpdate, when set, fires after any state change. UIs redraw from it.
	// It may run on internal goroutines; read state through the accessors
	// and never issue commands from inside it.
	OnUpdate func()
}

// JoinRoom connects to the room and settles the host/client role. Handlers
// are registered before joining so no early message is missed.
func JoinRoom(ctx context.Context, tr transport.Transport, room, name string, logger *logrus.Logger) (*NetSession, error) {
	n := &NetSession{
		tr:       tr,
		logger:   logger,
		name:     name,
		mySeat:   -1,
		selected: make(map[string]bool),
	}

	// Client-facing tags.
	tr.Handle(protocol.MsgRoomUpdate, n.onRoomUpdate)
	tr.Handle(protocol.MsgGameSync, n.onGameSync)
	tr.Handle(protocol.MsgError, n.onError)

	// Intent tags. Only the host acts on them; everyone registers so the
	// role can be settled after the join handshake.
	for _, tag := range []string{
		protocol.MsgSeatRequest, protocol.MsgLeaveSeat, protocol.MsgReadyToggle,
		protocol.MsgBid, protocol.MsgPlay, protocol.MsgPass, protocol.MsgSyncRequest,
	} {
		n.handleIntentTag(tag)
	}
	tr.OnPeerLeave(n.onPeerLeave)
	tr.OnPeerJoin(func(transport.Peer) { n.changed() })

	if err := tr.Join(ctx, room); err != nil {
		return nil, err
	}

	if len(tr.Peers()) == 0 {
		n.host = newHost(tr, room, logger)
		n.host.onSelfView = n.applySelfView
		n.host.onRoom = n.applySelfRoom
		n.host.onSelfError = n.applySelfError
		logger.WithField("room", room).Info("first into the room; hosting")
	} else {
		logger.WithField("room", room).Info("joined as client")
	}

	// Take a seat right away; a full room just leaves us observing.
	if err := n.RequestSeat(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetRecorder attaches a round recorder. Only meaningful on the host.
func (n *NetSession) SetRecorder(rec history.RoundRecorder) {
	if n.host != nil {
		n.host.g.Mu.Lock()
		n.host.recorder = rec
		n.host.g.Mu.Unlock()
	}
}

// SetThinkDelay tunes bot pacing; no-op on clients.
func (n *NetSession) SetThinkDelay(d time.Duration) {
	if n.host != nil {
		n.host.SetThinkDelay(d)
	}
}

// IsHost reports whether this session holds the canonical state.
func (n *NetSession) IsHost() bool {
	return n.host != nil
}

// handleIntentTag routes one intent tag into the host dispatch, when
// hosting. Clients drop intent traffic from other clients.
func (n *NetSession) handleIntentTag(tag string) {
	n.tr.Handle(tag, func(from transport.Peer, payload []byte) {
		if n.host == nil {
			return
		}
		n.host.HandleIntent(from, tag, payload)
	})
}

// ---- commands ----

// send delivers an intent: loopback into the host dispatch when hosting,
// broadcast otherwise (only the host acts on intents). Never called with
// n.mu held.
func (n *NetSession) send(tag string, payload interface{}) error {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return ErrRoomClosed
	}
	if n.host != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		n.host.HandleIntent(n.tr.Self(), tag, data)
		return nil
	}
	return n.tr.Send(tag, transport.Broadcast, payload)
}

// RequestSeat asks for the first free seat.
func (n *NetSession) RequestSeat() error {
	return n.send(protocol.MsgSeatRequest, protocol.SeatRequest{Name: n.name})
}

// LeaveSeat gives the seat up. Mid-round this hands the seat to a bot.
func (n *NetSession) LeaveSeat() error {
	return n.send(protocol.MsgLeaveSeat, struct{}{})
}

// ToggleReady flips readiness. The round starts when all three seats are
// occupied and ready.
func (n *NetSession) ToggleReady() error {
	return n.send(protocol.MsgReadyToggle, struct{}{})
}

// Bid claims or declines the landlord role.
func (n *NetSession) Bid(take bool) error {
	action := protocol.BidActionPass
	if take {
		action = protocol.BidActionBid
	}
	return n.send(protocol.MsgBid, protocol.Bid{Action: action})
}

// PlayCards submits an explicit set of card IDs.
func (n *NetSession) PlayCards(ids []string) error {
	return n.send(protocol.MsgPlay, protocol.Play{CardIDs: ids})
}

// Pass declines to beat the table combo.
func (n *NetSession) Pass() error {
	n.clearSelection()
	return n.send(protocol.MsgPass, struct{}{})
}

// RequestSync asks the host for a fresh view.
func (n *NetSession) RequestSync() error {
	return n.send(protocol.MsgSyncRequest, struct{}{})
}

// StartNewRound resets readiness after a finished round. Host only.
func (n *NetSession) StartNewRound() error {
	if n.host == nil {
		return errors.New("session: only the host can reset the round")
	}
	return n.host.StartNewRound()
}

// ---- selection (local-only UI state) ----

// ToggleCard flips a card in or out of the pending selection.
func (n *NetSession) ToggleCard(id string) {
	n.mu.Lock()
	if n.selected[id] {
		delete(n.selected, id)
	} else {
		n.selected[id] = true
	}
	n.mu.Unlock()
	n.changed()
}

// Selected reports whether a card is in the pending selection.
func (n *NetSession) Selected(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.selected[id]
}

// PlaySelected submits the pending selection and clears it.
func (n *NetSession) PlaySelected() error {
	n.mu.Lock()
	ids := make([]string, 0, len(n.selected))
	for id := range n.selected {
		ids = append(ids, id)
	}
	n.mu.Unlock()
	if len(ids) == 0 {
		return game.ErrInvalidCombo
	}
	n.clearSelection()
	return n.PlayCards(ids)
}

func (n *NetSession) clearSelection() {
	n.mu.Lock()
	n.selected = make(map[string]bool)
	n.mu.Unlock()
}

// ---- accessors ----

// View returns the latest pushed view, or nil before the first sync.
func (n *NetSession) View() *game.View {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.view == nil {
		return nil
	}
	v := *n.view
	return &v
}

// MySeat returns this player's seat index, or -1 when observing.
func (n *NetSession) MySeat() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mySeat
}

// Hand returns this player's current cards, already sorted by the host.
func (n *NetSession) Hand() []deck.Card {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.view == nil || n.mySeat < 0 {
		return nil
	}
	return append([]deck.Card(nil), n.view.Seats[n.mySeat].Cards...)
}

// Seats returns the room's seat bookkeeping.
func (n *NetSession) Seats() [3]protocol.SeatInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seats
}

// Phase returns the room's phase as last announced.
func (n *NetSession) Phase() game.Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.view != nil {
		return n.view.Phase
	}
	if n.phase == "" {
		return game.PhaseIdle
	}
	return n.phase
}

// Notice returns and clears the last host-reported rejection message.
func (n *NetSession) Notice() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg := n.notice
	n.notice = ""
	return msg
}

// Closed reports whether the room has shut down under this session.
func (n *NetSession) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Leave tears the session down.
func (n *NetSession) Leave() error {
	if n.host != nil {
		n.host.Shutdown()
	}
	return n.tr.Leave()
}

// ---- inbound ----

func (n *NetSession) onRoomUpdate(from transport.Peer, payload []byte) {
	var update protocol.RoomUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		n.logger.Warnf("session: malformed room update: %v", err)
		return
	}
	n.mu.Lock()
	n.seats = update.Seats
	n.phase = update.Phase
	n.hostPeer = from.ID
	n.mu.Unlock()
	n.changed()
}

func (n *NetSession) onGameSync(from transport.Peer, payload []byte) {
	var sync protocol.GameSync
	if err := json.Unmarshal(payload, &sync); err != nil {
		n.logger.Warnf("session: malformed game sync: %v", err)
		return
	}
	n.mu.Lock()
	// The host's view replaces ours wholesale; clients never merge.
	n.view = &sync.View
	n.mySeat = sync.MySeat
	n.hostPeer = from.ID
	n.pruneSelection()
	n.mu.Unlock()
	n.changed()
}

func (n *NetSession) onError(from transport.Peer, payload []byte) {
	var msg protocol.ErrorMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	n.mu.Lock()
	n.notice = msg.Message
	n.mu.Unlock()
	n.changed()
}

// onPeerLeave closes the session when the authoritative peer disappears;
// other departures are the host's problem.
func (n *NetSession) onPeerLeave(id transport.PeerID) {
	if n.host != nil {
		n.host.HandlePeerLeave(id)
		n.changed()
		return
	}
	n.mu.Lock()
	isHost := n.hostPeer != "" && id == n.hostPeer
	if isHost {
		n.closed = true
		n.notice = "host left; room closed"
	}
	n.mu.Unlock()
	n.changed()
}

// applySelfView is the host player's loopback for its own view pushes.
// Called with the game lock held; takes only n.mu.
func (n *NetSession) applySelfView(sync protocol.GameSync) {
	n.mu.Lock()
	n.view = &sync.View
	n.mySeat = sync.MySeat
	n.pruneSelection()
	n.mu.Unlock()
	n.changed()
}

// applySelfError mirrors rejection messages to the host player's own state.
func (n *NetSession) applySelfError(msg string) {
	n.mu.Lock()
	n.notice = msg
	n.mu.Unlock()
	n.changed()
}

// applySelfRoom mirrors room updates to the host player's own state.
func (n *NetSession) applySelfRoom(update protocol.RoomUpdate) {
	n.mu.Lock()
	n.seats = update.Seats
	n.phase = update.Phase
	n.mu.Unlock()
	n.changed()
}

// pruneSelection drops selected cards no longer in hand. n.mu held.
func (n *NetSession) pruneSelection() {
	if n.view == nil || n.mySeat < 0 {
		return
	}
	inHand := make(map[string]bool, len(n.view.Seats[n.mySeat].Cards))
	for _, c := range n.view.Seats[n.mySeat].Cards {
		inHand[c.ID] = true
	}
	for id := range n.selected {
		if !inHand[id] {
			delete(n.selected, id)
		}
	}
}

func (n *NetSession) changed() {
	if n.OnUpdate != nil {
		n.OnUpdate()
	}
}
