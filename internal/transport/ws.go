// internal/transport/ws.go
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// WSTransport is the client side of the relay protocol: it dials
// {base}/room/ws/{code}, takes the identity the relay assigns in the welcome
// frame, and shuttles envelopes both ways. Handler and callback registration
// must happen before Join; the read loop then delivers messages one at a
// time.
type WSTransport struct {
	base   string // e.g. ws://localhost:8080
	name   string
	logger *logrus.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	self     Peer
	peers    map[PeerID]Peer
	handlers map[string]Handler
	onJoin   func(Peer)
	onLeave  func(PeerID)
}

// NewWSTransport builds an unjoined websocket transport for a relay at base.
func NewWSTransport(base, name string, logger *logrus.Logger) *WSTransport {
	if logger == nil {
		logger = logrus.New()
	}
	return &WSTransport{
		base:     strings.TrimRight(base, "/"),
		name:     name,
		logger:   logger,
		peers:    make(map[PeerID]Peer),
		handlers: make(map[string]Handler),
	}
}

// Join dials the relay, waits for the welcome frame, and starts the read
// loop. The transport's identity is valid once Join returns.
func (t *WSTransport) Join(ctx context.Context, code string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("transport: already joined")
	}

	addr := fmt.Sprintf("%s/room/ws/%s?name=%s", t.base, url.PathEscape(code), url.QueryEscape(t.name))
	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	// The relay speaks first: a welcome envelope with our identity.
	readCtx, cancelRead := context.WithTimeout(ctx, 10*time.Second)
	_, data, err := conn.Read(readCtx)
	cancelRead()
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "no welcome")
		return fmt.Errorf("transport: waiting for welcome: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Tag != CtlWelcome {
		conn.Close(websocket.StatusProtocolError, "bad welcome")
		return fmt.Errorf("transport: bad welcome frame")
	}
	var w Welcome
	if err := json.Unmarshal(env.Payload, &w); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad welcome payload")
		return fmt.Errorf("transport: bad welcome payload: %w", err)
	}
	t.self = w.Self
	for _, p := range w.Peers {
		t.peers[p.ID] = p
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancel = cancel
	go t.readLoop(loopCtx, conn)
	return nil
}

// Leave closes the connection; the relay broadcasts the departure.
func (t *WSTransport) Leave() error {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	t.conn = nil
	t.cancel = nil
	t.peers = make(map[PeerID]Peer)
	t.mu.Unlock()
	if conn == nil {
		return ErrNotJoined
	}
	cancel()
	return conn.Close(websocket.StatusNormalClosure, "leaving room")
}

func (t *WSTransport) Self() Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.self
}

func (t *WSTransport) Peers() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Send writes one envelope. An empty target broadcasts to the room.
func (t *WSTransport) Send(tag string, to PeerID, payload interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotJoined
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", tag, err)
	}
	data, err := json.Marshal(Envelope{Tag: tag, To: to, Payload: raw})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (t *WSTransport) Handle(tag string, h Handler) { t.handlers[tag] = h }

func (t *WSTransport) OnPeerJoin(fn func(Peer))    { t.onJoin = fn }
func (t *WSTransport) OnPeerLeave(fn func(PeerID)) { t.onLeave = fn }

// readLoop reads envelopes until the connection dies, dispatching control
// frames to the peer callbacks and everything else to the tag handlers.
func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				t.logger.Warnf("transport: read loop ended: %v", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.logger.Warnf("transport: dropping malformed envelope: %v", err)
			continue
		}
		t.dispatch(env)
	}
}

func (t *WSTransport) dispatch(env Envelope) {
	switch env.Tag {
	case CtlPeerJoin:
		var ev PeerEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		t.mu.Lock()
		t.peers[ev.Peer.ID] = ev.Peer
		fn := t.onJoin
		t.mu.Unlock()
		if fn != nil {
			fn(ev.Peer)
		}
	case CtlPeerLeave:
		var ev PeerEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		t.mu.Lock()
		delete(t.peers, ev.Peer.ID)
		fn := t.onLeave
		t.mu.Unlock()
		if fn != nil {
			fn(ev.Peer.ID)
		}
	default:
		t.mu.Lock()
		from, ok := t.peers[env.From]
		if !ok {
			from = Peer{ID: env.From}
		}
		h := t.handlers[env.Tag]
		t.mu.Unlock()
		if h != nil {
			h(from, env.Payload)
		}
	}
}
