// internal/deck/card.go
package deck

// Suit identifies one of the four French suits. Jokers carry SuitNone.
type Suit string

const (
	SuitSpade   Suit = "S"
	SuitHeart   Suit = "H"
	SuitDiamond Suit = "D"
	SuitClub    Suit = "C"
	SuitNone    Suit = ""
)

// Rank constants for the two jokers. Ranked cards use "3".."10", "J", "Q",
// "K", "A", "2" as their rank string.
const (
	RankSmallJoker = "BJ"
	RankBigJoker   = "RJ"
)

// Card is a single immutable card identity. ID is deterministic (rank+suit,
// or the bare joker rank), so the 54 identities are stable across processes
// and a play can reference cards by ID alone.
type Card struct {
	ID    string `json:"id"`
	Suit  Suit   `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"` // 3..15 for ranked cards, 16/17 for jokers
}

// Joker reports whether the card is one of the two jokers.
func (c Card) Joker() bool {
	return c.Suit == SuitNone
}

var rankValues = map[string]int{
	"3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9, "10": 10,
	"J": 11, "Q": 12, "K": 13, "A": 14, "2": 15,
	RankSmallJoker: 16,
	RankBigJoker:   17,
}

// suitOrder is the stable secondary sort key. Value is always compared first.
var suitOrder = map[Suit]int{
	SuitSpade:   0,
	SuitHeart:   1,
	SuitDiamond: 2,
	SuitClub:    3,
	SuitNone:    4,
}

// newCard builds a ranked card. Jokers are constructed directly in NewDeck.
func newCard(rank string, suit Suit) Card {
	return Card{
		ID:    rank + string(suit),
		Suit:  suit,
		Rank:  rank,
		Value: rankValues[rank],
	}
}
