// internal/relay/room_test.go
package relay

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doudizhu/internal/transport"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func conn(id, name string) *RoomConn {
	return &RoomConn{
		Peer:    transport.Peer{ID: transport.PeerID(id), Name: name},
		OutChan: make(chan transport.Envelope, outChanSize),
	}
}

func drain(c *RoomConn) []transport.Envelope {
	var out []transport.Envelope
	for {
		select {
		case env, ok := <-c.OutChan:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestRoomAddReturnsExistingAndAnnounces(t *testing.T) {
	r := NewRoom("abc", quietLogger())
	a := conn("a", "alice")
	b := conn("b", "bob")

	existing := r.Add(a)
	assert.Empty(t, existing)

	existing = r.Add(b)
	require.Len(t, existing, 1)
	assert.Equal(t, a.Peer.ID, existing[0].ID)

	// a hears about b's arrival; b hears nothing (its welcome is written by
	// the handler, not the room).
	envs := drain(a)
	require.Len(t, envs, 1)
	assert.Equal(t, transport.CtlPeerJoin, envs[0].Tag)
	var ev transport.PeerEvent
	require.NoError(t, json.Unmarshal(envs[0].Payload, &ev))
	assert.Equal(t, b.Peer.ID, ev.Peer.ID)
	assert.Empty(t, drain(b))
}

func TestRoomRouteBroadcastAndDirected(t *testing.T) {
	r := NewRoom("abc", quietLogger())
	a, b, c := conn("a", "alice"), conn("b", "bob"), conn("c", "carol")
	r.Add(a)
	r.Add(b)
	r.Add(c)
	drain(a)
	drain(b)

	r.Route(a.Peer.ID, transport.Envelope{Tag: "note", To: transport.Broadcast})
	assert.Empty(t, drain(a), "sender excluded from its own broadcast")
	envsB, envsC := drain(b), drain(c)
	require.Len(t, envsB, 1)
	require.Len(t, envsC, 1)
	assert.Equal(t, a.Peer.ID, envsB[0].From, "relay stamps the sender")

	r.Route(b.Peer.ID, transport.Envelope{Tag: "note", To: c.Peer.ID})
	assert.Empty(t, drain(a))
	require.Len(t, drain(c), 1)
}

func TestRoomRemoveAnnouncesAndFiresOnEmpty(t *testing.T) {
	r := NewRoom("abc", quietLogger())
	var emptied []string
	r.OnEmpty = func(code string) { emptied = append(emptied, code) }

	a, b := conn("a", "alice"), conn("b", "bob")
	r.Add(a)
	r.Add(b)
	drain(a)

	r.Remove(b.Peer.ID)
	envs := drain(a)
	require.Len(t, envs, 1)
	assert.Equal(t, transport.CtlPeerLeave, envs[0].Tag)
	assert.Empty(t, emptied)

	r.Remove(a.Peer.ID)
	assert.Equal(t, []string{"abc"}, emptied)

	// Removing an unknown peer is a no-op.
	r.Remove(transport.PeerID("ghost"))
	assert.Len(t, emptied, 1)
}

func TestRoomStoreLifecycle(t *testing.T) {
	s := NewRoomStore(quietLogger())
	r1 := s.GetOrCreate("x")
	r2 := s.GetOrCreate("x")
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, s.Count())

	a := conn("a", "alice")
	r1.Add(a)
	r1.Remove(a.Peer.ID)
	assert.Equal(t, 0, s.Count(), "room deletes itself once drained")
}

// A broadcast snapshots the member list outside the room mutex, so it can
// still be writing while a peer is removed. Removal closes the out channel;
// the write must be dropped, not panic the relay.
func TestRoomBroadcastDuringRemoveDoesNotPanic(t *testing.T) {
	r := NewRoom("abc", quietLogger())
	sender := conn("sender", "sender")
	r.Add(sender)

	conns := make([]*RoomConn, 100)
	for i := range conns {
		conns[i] = conn(fmt.Sprintf("p%d", i), "p")
		r.Add(conns[i])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		env := transport.Envelope{Tag: "note", To: transport.Broadcast}
		for i := 0; i < 2000; i++ {
			r.Route(sender.Peer.ID, env)
		}
	}()
	for _, c := range conns {
		r.Remove(c.Peer.ID)
	}
	<-done

	// The survivor still routes normally.
	r.Route(sender.Peer.ID, transport.Envelope{Tag: "after", To: transport.Broadcast})
	assert.NotPanics(t, func() { sender.Write(quietLogger(), transport.Envelope{Tag: "x"}) })
}

func TestRoomConnWriteAfterCloseIsDropped(t *testing.T) {
	c := conn("a", "alice")
	c.Close()
	c.Close() // idempotent
	assert.NotPanics(t, func() {
		c.Write(quietLogger(), transport.Envelope{Tag: "late"})
	})
}

func TestRoomConnWriteDropsWhenFull(t *testing.T) {
	c := &RoomConn{
		Peer:    transport.Peer{ID: "a"},
		OutChan: make(chan transport.Envelope, 1),
	}
	c.Write(quietLogger(), transport.Envelope{Tag: "one"})
	c.Write(quietLogger(), transport.Envelope{Tag: "two"})
	envs := drain(c)
	require.Len(t, envs, 1, "second write dropped, room never blocks")
	assert.Equal(t, "one", envs[0].Tag)
}
