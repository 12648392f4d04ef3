// internal/transport/memory_test.go
package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Text string `json:"text"`
}

func TestHubJoinAnnouncesToExistingMembers(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer("a")
	b := hub.NewPeer("b")

	var joined []Peer
	a.OnPeerJoin(func(p Peer) { joined = append(joined, p) })

	require.NoError(t, a.Join(context.Background(), "r"))
	require.NoError(t, b.Join(context.Background(), "r"))

	require.Len(t, joined, 1)
	assert.Equal(t, b.Self().ID, joined[0].ID)
	assert.Len(t, a.Peers(), 1)
	assert.Len(t, b.Peers(), 1)
}

func TestHubDirectedAndBroadcastSend(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer("a")
	b := hub.NewPeer("b")
	c := hub.NewPeer("c")

	got := make(map[PeerID][]string)
	recorder := func(self *MemTransport) Handler {
		return func(from Peer, payload []byte) {
			var n note
			require.NoError(t, json.Unmarshal(payload, &n))
			got[self.Self().ID] = append(got[self.Self().ID], n.Text)
		}
	}
	a.Handle("note", recorder(a))
	b.Handle("note", recorder(b))
	c.Handle("note", recorder(c))

	require.NoError(t, a.Join(context.Background(), "r"))
	require.NoError(t, b.Join(context.Background(), "r"))
	require.NoError(t, c.Join(context.Background(), "r"))

	require.NoError(t, a.Send("note", Broadcast, note{Text: "hello"}))
	assert.Equal(t, []string{"hello"}, got[b.Self().ID])
	assert.Equal(t, []string{"hello"}, got[c.Self().ID])
	assert.Empty(t, got[a.Self().ID], "sender does not hear its own broadcast")

	require.NoError(t, b.Send("note", c.Self().ID, note{Text: "psst"}))
	assert.Equal(t, []string{"hello", "psst"}, got[c.Self().ID])
	assert.Empty(t, got[a.Self().ID], "directed send stays directed")
}

func TestHubDropsUnknownTagsAndTargets(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer("a")
	b := hub.NewPeer("b")
	require.NoError(t, a.Join(context.Background(), "r"))
	require.NoError(t, b.Join(context.Background(), "r"))

	assert.NoError(t, a.Send("nobody-listens", Broadcast, note{Text: "x"}))
	assert.NoError(t, a.Send("note", PeerID("ghost"), note{Text: "x"}))
}

func TestHubLeaveAnnouncesAndRequiresJoin(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer("a")
	b := hub.NewPeer("b")

	var left []PeerID
	a.OnPeerLeave(func(id PeerID) { left = append(left, id) })

	require.NoError(t, a.Join(context.Background(), "r"))
	require.NoError(t, b.Join(context.Background(), "r"))
	require.NoError(t, b.Leave())

	require.Len(t, left, 1)
	assert.Equal(t, b.Self().ID, left[0])
	assert.Empty(t, a.Peers())

	assert.ErrorIs(t, b.Leave(), ErrNotJoined)
	assert.ErrorIs(t, b.Send("note", Broadcast, note{Text: "x"}), ErrNotJoined)
}
