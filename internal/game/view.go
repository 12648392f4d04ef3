// internal/game/view.go
package game

import (
	"doudizhu/internal/combo"
	"doudizhu/internal/deck"
)

// SeatView is one seat as a given viewer may see it: the viewer's own hand
// in full, every other hand only as a count.
type SeatView struct {
	Index     int         `json:"index"`
	Name      string      `json:"name"`
	Role      Role        `json:"role,omitempty"`
	CardCount int         `json:"cardCount"`
	Cards     []deck.Card `json:"cards,omitempty"`
	LastPlay  []deck.Card `json:"lastPlay,omitempty"`
	Bot       bool        `json:"bot,omitempty"`
}

// View is a pure projection of the authoritative state for one viewer. A
// remote client replaces its whole View on every sync; it is never merged.
type View struct {
	Phase      Phase        `json:"phase"`
	Seats      [3]SeatView  `json:"seats"`
	Turn       int          `json:"turn"`
	Bidder     int          `json:"bidder"`
	Bids       [3]BidMark   `json:"bids"`
	Landlord   int          `json:"landlord"`
	LastCombo  *combo.Combo `json:"lastCombo,omitempty"`
	LastPlayer int          `json:"lastPlayer"`
	PassCount  int          `json:"passCount"`
	Bottom     []deck.Card  `json:"bottom,omitempty"` // only once revealed
	BombCount  int          `json:"bombCount"`
	Winner     Role         `json:"winner,omitempty"`
}

// Project builds the filtered view of g for the given viewer seat. A viewer
// of -1 (observer) sees no hand at all. Pure: no side effects, and the
// returned slices are copies. Assumes g.Mu is held by the caller.
func Project(g *Game, viewer int) View {
	v := View{
		Phase:      g.Phase,
		Turn:       g.Turn,
		Bidder:     g.Bidder,
		Bids:       g.Bids,
		Landlord:   g.Landlord,
		LastPlayer: g.LastPlayer,
		PassCount:  g.PassCount,
		BombCount:  g.BombCount,
		Winner:     g.Winner,
	}
	if g.LastCombo != nil {
		c := *g.LastCombo
		c.Cards = copyCards(c.Cards)
		v.LastCombo = &c
	}
	// The bottom is hidden until the bid resolves.
	if g.Landlord >= 0 {
		v.Bottom = copyCards(g.Bottom)
	}
	for i, s := range g.Seats {
		sv := SeatView{
			Index:     i,
			Name:      s.Name,
			Role:      s.Role,
			CardCount: len(s.Hand),
			LastPlay:  copyCards(s.LastPlay),
			Bot:       s.Bot,
		}
		if i == viewer {
			sv.Cards = copyCards(s.Hand)
		}
		v.Seats[i] = sv
	}
	return v
}

func copyCards(cards []deck.Card) []deck.Card {
	if cards == nil {
		return nil
	}
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	return out
}
