// internal/session/local_test.go
package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doudizhu/internal/deck"
	"doudizhu/internal/game"
)

// cardsOf builds a hand from rank tokens, drawing copies from a fresh deck.
func cardsOf(t *testing.T, ranks ...string) []deck.Card {
	t.Helper()
	pool := deck.NewDeck()
	used := make(map[string]bool)
	out := make([]deck.Card, 0, len(ranks))
	for _, r := range ranks {
		found := false
		for _, c := range pool {
			if c.Rank == r && !used[c.ID] {
				used[c.ID] = true
				out = append(out, c)
				found = true
				break
			}
		}
		require.True(t, found, "no copy of rank %q left", r)
	}
	deck.SortDesc(out)
	return out
}

// midGame puts a local session straight into the playing phase with fixed
// hands and the human on an open lead.
func midGame(t *testing.T, s *LocalSession, human, east, west []deck.Card) {
	t.Helper()
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	s.g.Phase = game.PhasePlaying
	s.g.Landlord = 0
	s.g.Turn = 0
	s.g.Seats[0].Hand = human
	s.g.Seats[0].Role = game.RoleLandlord
	s.g.Seats[1].Hand = east
	s.g.Seats[1].Role = game.RoleFarmer
	s.g.Seats[2].Hand = west
	s.g.Seats[2].Role = game.RoleFarmer
}

func TestLocalSessionSeatsTwoBots(t *testing.T) {
	s := NewLocalSession("me", testLogger())
	defer s.Close()
	s.SetThinkDelay(time.Hour)

	require.NoError(t, s.StartGame())
	assert.Equal(t, game.PhaseBidding, s.Phase())
	assert.Equal(t, 0, s.MySeat())
	assert.Len(t, s.Hand(), 17)

	v := s.View()
	assert.False(t, v.Seats[0].Bot)
	assert.True(t, v.Seats[1].Bot)
	assert.True(t, v.Seats[2].Bot)
	for i := 1; i < 3; i++ {
		assert.Empty(t, v.Seats[i].Cards, "bot hands stay hidden from the player")
	}
}

func TestLocalSessionSelectionAndPlay(t *testing.T) {
	s := NewLocalSession("me", testLogger())
	defer s.Close()
	s.SetThinkDelay(time.Hour) // keep the bots frozen for the assertions
	midGame(t, s,
		cardsOf(t, "9", "5", "3"),
		cardsOf(t, "K", "8", "4"),
		cardsOf(t, "A", "10", "6"),
	)

	assert.ErrorIs(t, s.PlaySelected(), game.ErrInvalidCombo, "empty selection")

	hand := s.Hand()
	low := hand[len(hand)-1]
	s.ToggleCard(low.ID)
	assert.True(t, s.Selected(low.ID))
	s.ToggleCard(low.ID)
	assert.False(t, s.Selected(low.ID))

	s.ToggleCard(low.ID)
	require.NoError(t, s.PlaySelected())
	assert.Len(t, s.Hand(), 2)
	assert.False(t, s.Selected(low.ID), "selection clears after a play")
}

func TestLocalSessionHint(t *testing.T) {
	s := NewLocalSession("me", testLogger())
	defer s.Close()
	s.SetThinkDelay(time.Hour)
	midGame(t, s,
		cardsOf(t, "9", "5", "3"),
		cardsOf(t, "K", "8", "4"),
		cardsOf(t, "A", "10", "6"),
	)

	ids := s.Hint()
	require.NotEmpty(t, ids, "the leader always has a hint")
	require.NoError(t, s.PlayCards(ids), "hints must be legal plays")
}

func TestLocalSessionStatus(t *testing.T) {
	s := NewLocalSession("me", testLogger())
	defer s.Close()
	assert.Equal(t, "waiting for a new deal", s.Status())

	s.SetThinkDelay(time.Hour)
	midGame(t, s,
		cardsOf(t, "9", "5", "3"),
		cardsOf(t, "K", "8", "4"),
		cardsOf(t, "A", "10", "6"),
	)
	assert.Equal(t, "your turn", s.Status())
}

func TestLocalSessionBotsAnswerThePlayer(t *testing.T) {
	s := NewLocalSession("me", testLogger())
	defer s.Close()
	s.SetThinkDelay(2 * time.Millisecond)
	midGame(t, s,
		cardsOf(t, "9", "5", "3"),
		cardsOf(t, "K", "8", "4"),
		cardsOf(t, "A", "10", "6"),
	)

	hand := s.Hand()
	require.NoError(t, s.PlayCards([]string{hand[len(hand)-1].ID}))

	// Both bots respond in turn; the lead comes back around to the player
	// or somebody finishes first.
	assert.Eventually(t, func() bool {
		v := s.View()
		return v.Phase == game.PhaseFinished || v.Turn == 0
	}, time.Second, 2*time.Millisecond)
}
