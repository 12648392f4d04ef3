// internal/relay/handler.go
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"doudizhu/internal/middleware"
	"doudizhu/internal/transport"
)

// writeTimeout bounds a single websocket write to a slow peer.
const writeTimeout = 5 * time.Second

// RoomWSHandler upgrades the connection for /room/ws/{code}?name=..., hands
// the peer its relay-assigned identity, and shuttles envelopes between the
// socket and the room until the peer disconnects.
func RoomWSHandler(logger *logrus.Logger, store *RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.Trim(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")
		if code == "" {
			http.Error(w, "missing room code in path (/room/ws/{code})", http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "player"
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{transport.Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("relay: websocket accept failed for room %s: %v", code, err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "handler exit")

		if conn.Subprotocol() != transport.Subprotocol {
			conn.Close(websocket.StatusPolicyViolation, "client must use the 'room' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		peer := transport.Peer{ID: transport.PeerID(uuid.NewString()), Name: name}
		room := store.GetOrCreate(code)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		rc := &RoomConn{
			Peer:    peer,
			OutChan: make(chan transport.Envelope, outChanSize),
			Cancel:  cancel,
		}
		existing := room.Add(rc)

		// The welcome frame goes straight to the socket, before the write
		// pump starts, so it is always the first thing the client reads.
		welcome := transport.Envelope{
			Tag:     transport.CtlWelcome,
			Payload: mustMarshal(transport.Welcome{Self: peer, Peers: existing}),
		}
		if err := writeEnvelope(ctx, conn, welcome); err != nil {
			logger.Warnf("relay: welcome write failed for peer %s: %v", peer.ID, err)
			room.Remove(peer.ID)
			return
		}

		go writePump(ctx, conn, rc, logger)
		readLoop(ctx, conn, room, peer, logger)

		room.Remove(peer.ID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readLoop consumes envelopes from the peer and routes them until the
// connection closes.
func readLoop(ctx context.Context, conn *websocket.Conn, room *Room, peer transport.Peer, logger *logrus.Logger) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("relay: read error for peer %s: %v", peer.ID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warnf("relay: malformed envelope from peer %s: %v", peer.ID, err)
			continue
		}
		if strings.HasPrefix(env.Tag, "_") {
			// Control tags belong to the relay; clients may not forge them.
			logger.Warnf("relay: peer %s sent reserved tag %q; dropping", peer.ID, env.Tag)
			continue
		}
		room.Route(peer.ID, env)
	}
}

// writePump drains the peer's out channel onto the socket.
func writePump(ctx context.Context, conn *websocket.Conn, rc *RoomConn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-rc.OutChan:
			if !ok {
				return
			}
			if err := writeEnvelope(ctx, conn, env); err != nil {
				logger.Warnf("relay: write to peer %s failed: %v", rc.Peer.ID, err)
				return
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env transport.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// mustMarshal is for payloads built from our own structs, which cannot fail
// to encode.
func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
