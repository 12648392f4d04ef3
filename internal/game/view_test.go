// internal/game/view_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectHidesOtherHands(t *testing.T) {
	g := NewGame()
	g.Mu.Lock()
	defer g.Mu.Unlock()
	require.NoError(t, g.Start())

	for viewer := 0; viewer < 3; viewer++ {
		v := Project(g, viewer)
		for i, sv := range v.Seats {
			assert.Equal(t, len(g.Seats[i].Hand), sv.CardCount)
			if i == viewer {
				assert.Len(t, sv.Cards, len(g.Seats[i].Hand), "own hand visible")
			} else {
				assert.Empty(t, sv.Cards, "viewer %d must not see seat %d's cards", viewer, i)
			}
		}
	}
}

func TestProjectObserverSeesNoHand(t *testing.T) {
	g := NewGame()
	g.Mu.Lock()
	defer g.Mu.Unlock()
	require.NoError(t, g.Start())

	v := Project(g, -1)
	for _, sv := range v.Seats {
		assert.Empty(t, sv.Cards)
		assert.Equal(t, 17, sv.CardCount)
	}
}

func TestProjectHidesBottomUntilBidResolves(t *testing.T) {
	g := NewGame()
	g.Mu.Lock()
	defer g.Mu.Unlock()
	require.NoError(t, g.Start())

	v := Project(g, 0)
	assert.Empty(t, v.Bottom, "bottom stays hidden during bidding")

	require.NoError(t, g.HandleBid(g.Bidder, true))
	v = Project(g, (g.Landlord+1)%3)
	assert.Len(t, v.Bottom, 3, "revealed to everyone once claimed")
}

func TestProjectCopiesAreIndependent(t *testing.T) {
	g := NewGame()
	g.Mu.Lock()
	defer g.Mu.Unlock()
	require.NoError(t, g.Start())

	v := Project(g, 0)
	original := g.Seats[0].Hand[0]
	v.Seats[0].Cards[0].ID = "mutated"
	assert.Equal(t, original.ID, g.Seats[0].Hand[0].ID, "projection must not alias state")
}
