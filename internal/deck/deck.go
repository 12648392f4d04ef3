// internal/deck/deck.go
package deck

import (
	"fmt"
	"math/rand"
	"sort"
)

const (
	// DeckSize is the full Dou Dizhu deck: 4x13 ranked cards plus 2 jokers.
	DeckSize = 54
	// HandSize is the number of cards dealt to each of the three seats.
	HandSize = 17
	// BottomSize is the number of cards set aside for the winning bidder.
	BottomSize = 3
)

var suits = []Suit{SuitSpade, SuitHeart, SuitDiamond, SuitClub}

var ranks = []string{"3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A", "2"}

// NewDeck returns the 54 unique card identities in canonical order.
func NewDeck() []Card {
	cards := make([]Card, 0, DeckSize)
	for _, s := range suits {
		for _, r := range ranks {
			cards = append(cards, newCard(r, s))
		}
	}
	cards = append(cards,
		Card{ID: RankSmallJoker, Suit: SuitNone, Rank: RankSmallJoker, Value: rankValues[RankSmallJoker]},
		Card{ID: RankBigJoker, Suit: SuitNone, Rank: RankBigJoker, Value: rankValues[RankBigJoker]},
	)
	return cards
}

// Shuffle returns a uniformly permuted copy of the given cards (Fisher-Yates).
func Shuffle(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Deal shuffles a fresh deck once and slices it into three 17-card hands and
// the 3-card bottom. Hands come back sorted descending; the bottom keeps its
// dealt order until it is claimed.
func Deal() (hands [3][]Card, bottom []Card) {
	shuffled := Shuffle(NewDeck())
	for i := 0; i < 3; i++ {
		hand := make([]Card, HandSize)
		copy(hand, shuffled[i*HandSize:(i+1)*HandSize])
		SortDesc(hand)
		hands[i] = hand
	}
	bottom = make([]Card, BottomSize)
	copy(bottom, shuffled[3*HandSize:])
	return hands, bottom
}

// SortDesc orders cards in place by descending value, suit as the stable
// secondary key so equal-value cards keep a deterministic order.
func SortDesc(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Value != cards[j].Value {
			return cards[i].Value > cards[j].Value
		}
		return suitOrder[cards[i].Suit] < suitOrder[cards[j].Suit]
	})
}

// Remove returns hand minus the identity-matched played cards. The input
// slices are left untouched; this is the only way cards leave a hand.
func Remove(hand, played []Card) []Card {
	drop := make(map[string]bool, len(played))
	for _, c := range played {
		drop[c.ID] = true
	}
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if drop[c.ID] {
			delete(drop, c.ID)
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindByIDs resolves card IDs against a hand, failing if any ID is missing
// or duplicated. The returned cards are copies in the requested order.
func FindByIDs(hand []Card, ids []string) ([]Card, error) {
	byID := make(map[string]Card, len(hand))
	for _, c := range hand {
		byID[c.ID] = c
	}
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("card %q not in hand", id)
		}
		delete(byID, id)
		out = append(out, c)
	}
	return out, nil
}
