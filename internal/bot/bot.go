// internal/bot/bot.go
package bot

import (
	"doudizhu/internal/combo"
	"doudizhu/internal/deck"
)

// Context carries the table information the play heuristics use for endgame
// decisions. All fields are optional in the sense that a nil Context still
// yields a legal decision.
type Context struct {
	MySeat       int
	LandlordSeat int    // -1 before the bid resolves
	Counts       [3]int // remaining card counts per seat
}

// bid scoring weights, tuned on raw hand strength only. No search.
const (
	bidScoreRocket   = 8
	bidScoreBomb     = 5
	bidScoreBigJoker = 3
	bidScoreSmall    = 2
	bidScoreTwo      = 2
	bidScoreAce      = 1
	bidThreshold     = 6
)

// SuggestBid decides whether a hand is worth bidding for the landlord role.
// Deterministic given the hand.
func SuggestBid(hand []deck.Card) bool {
	counts := make(map[int]int, len(hand))
	score := 0
	for _, c := range hand {
		counts[c.Value]++
		switch {
		case c.Rank == deck.RankBigJoker:
			score += bidScoreBigJoker
		case c.Rank == deck.RankSmallJoker:
			score += bidScoreSmall
		case c.Value == 15: // "2"
			score += bidScoreTwo
		case c.Value == 14: // ace
			score += bidScoreAce
		}
	}
	if counts[16] > 0 && counts[17] > 0 {
		score += bidScoreRocket
	}
	for _, n := range counts {
		if n == 4 {
			score += bidScoreBomb
		}
	}
	return score >= bidThreshold
}

// SuggestPlay picks the cards to play, or nil to pass. With no combo to beat
// the bot leads; otherwise it searches its legal answers for the smallest one
// that wins, spending bombs and the rocket only as a last resort.
func SuggestPlay(hand []deck.Card, mustBeat *combo.Combo, ctx *Context) []deck.Card {
	if len(hand) == 0 {
		return nil
	}
	if mustBeat == nil {
		return lead(hand)
	}
	return beat(hand, mustBeat, ctx)
}

// lead picks a free-lead combo: the whole hand if it classifies as one combo,
// otherwise the cheapest non-bomb shape, preferring to shed more cards at the
// same value.
func lead(hand []deck.Card) []deck.Card {
	if c := combo.Detect(hand); c != nil {
		return hand
	}
	var best []deck.Card
	bestScore := 0
	for _, move := range leadMoves(hand) {
		c := combo.Detect(move)
		if c == nil || c.Type == combo.Bomb || c.Type == combo.Rocket {
			continue
		}
		score := c.Value*100 - len(move)
		if best == nil || score < bestScore {
			best = move
			bestScore = score
		}
	}
	if best == nil {
		// Nothing but bombs left; lead the smallest one.
		if bombs := bombMoves(hand); len(bombs) > 0 {
			return bombs[0]
		}
		best = []deck.Card{hand[len(hand)-1]}
	}
	return best
}

// beat finds the smallest same-shape answer, then falls back to bombs and
// finally the rocket. With table context it holds bombs back unless somebody
// is close to going out or the bot itself is nearly done.
func beat(hand []deck.Card, must *combo.Combo, ctx *Context) []deck.Card {
	var best *combo.Combo
	for _, move := range shapeMoves(hand, must) {
		c := combo.Detect(move)
		if c == nil || !combo.CanBeat(c, must) {
			continue
		}
		if c.Type == must.Type && (best == nil || c.Value < best.Value) {
			best = c
		}
	}
	if best != nil {
		return best.Cards
	}
	if !bombWorthwhile(hand, ctx) {
		return nil
	}
	for _, move := range bombMoves(hand) {
		if c := combo.Detect(move); combo.CanBeat(c, must) {
			return move
		}
	}
	if r := rocketMove(hand); r != nil && combo.CanBeat(combo.Detect(r), must) {
		return r
	}
	return nil
}

// bombWorthwhile gates bomb/rocket spending: without context always allow,
// otherwise only when some seat (this one included) is within reach of
// emptying its hand.
func bombWorthwhile(hand []deck.Card, ctx *Context) bool {
	if ctx == nil {
		return true
	}
	if len(hand) <= 6 {
		return true
	}
	for seat, n := range ctx.Counts {
		if seat == ctx.MySeat {
			continue
		}
		if n > 0 && n <= 5 {
			return true
		}
	}
	return false
}

// leadMoves enumerates candidate free leads: one single per distinct value,
// pairs, triples with their cheapest attachment, and the longest runs.
func leadMoves(hand []deck.Card) [][]deck.Card {
	groups, order := groupByValue(hand)
	var moves [][]deck.Card

	for _, v := range order {
		cards := groups[v]
		moves = append(moves, cards[:1])
		if len(cards) >= 2 {
			moves = append(moves, cards[:2])
		}
		if len(cards) >= 3 {
			triple := cards[:3]
			moves = append(moves, triple)
			if single := cheapestAttachment(hand, v, 1); single != nil {
				moves = append(moves, append(append([]deck.Card{}, triple...), single...))
			}
			if pair := cheapestAttachment(hand, v, 2); pair != nil {
				moves = append(moves, append(append([]deck.Card{}, triple...), pair...))
			}
		}
	}
	moves = append(moves, runMoves(groups, order, 1, 5)...)
	moves = append(moves, runMoves(groups, order, 2, 3)...)
	return moves
}

// shapeMoves enumerates candidates matching the shape that must be beaten.
func shapeMoves(hand []deck.Card, must *combo.Combo) [][]deck.Card {
	groups, order := groupByValue(hand)
	var moves [][]deck.Card

	pick := func(copies int) {
		for _, v := range order {
			if len(groups[v]) >= copies {
				moves = append(moves, groups[v][:copies])
			}
		}
	}

	switch must.Type {
	case combo.Single:
		pick(1)
	case combo.Pair:
		pick(2)
	case combo.Triple:
		pick(3)
	case combo.TripleSingle, combo.TriplePair:
		attach := 1
		if must.Type == combo.TriplePair {
			attach = 2
		}
		for _, v := range order {
			if len(groups[v]) < 3 {
				continue
			}
			extra := cheapestAttachment(hand, v, attach)
			if extra == nil {
				continue
			}
			moves = append(moves, append(append([]deck.Card{}, groups[v][:3]...), extra...))
		}
	case combo.Straight:
		moves = append(moves, fixedRunMoves(groups, order, 1, must.Length)...)
	case combo.PairStraight:
		moves = append(moves, fixedRunMoves(groups, order, 2, must.Length)...)
	case combo.Plane, combo.PlaneWings:
		// Planes answer planes of the same length; wings reuse the cheapest
		// singles. Rare enough that bombs cover the rest.
		moves = append(moves, planeMoves(hand, groups, order, must)...)
	case combo.FourTwo:
		for _, v := range order {
			if len(groups[v]) != 4 {
				continue
			}
			extra := cheapestWings(hand, v, 2)
			if extra == nil {
				continue
			}
			moves = append(moves, append(append([]deck.Card{}, groups[v]...), extra...))
		}
	}
	return moves
}

// bombMoves lists four-of-a-kind plays, smallest first.
func bombMoves(hand []deck.Card) [][]deck.Card {
	groups, order := groupByValue(hand)
	var moves [][]deck.Card
	for _, v := range order {
		if len(groups[v]) == 4 {
			moves = append(moves, groups[v])
		}
	}
	return moves
}

// rocketMove returns both jokers when held.
func rocketMove(hand []deck.Card) []deck.Card {
	var small, big *deck.Card
	for i := range hand {
		switch hand[i].Rank {
		case deck.RankSmallJoker:
			small = &hand[i]
		case deck.RankBigJoker:
			big = &hand[i]
		}
	}
	if small == nil || big == nil {
		return nil
	}
	return []deck.Card{*small, *big}
}

// groupByValue buckets the hand by card value; order lists the distinct
// values ascending so iteration prefers cheap cards.
func groupByValue(hand []deck.Card) (map[int][]deck.Card, []int) {
	groups := make(map[int][]deck.Card)
	for _, c := range hand {
		groups[c.Value] = append(groups[c.Value], c)
	}
	var order []int
	for v := range groups {
		order = append(order, v)
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j] < order[j-1]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return groups, order
}

// cheapestAttachment finds the lowest-value group of exactly the wanted
// copies outside the excluded value, splitting a bigger group if needed.
func cheapestAttachment(hand []deck.Card, exclude, copies int) []deck.Card {
	groups, order := groupByValue(hand)
	for _, v := range order {
		if v == exclude || len(groups[v]) < copies {
			continue
		}
		// Don't break a bomb for an attachment.
		if len(groups[v]) == 4 && copies < 4 {
			continue
		}
		return groups[v][:copies]
	}
	return nil
}

// cheapestWings gathers n loose cards outside the excluded value, cheapest
// first, without breaking a bomb.
func cheapestWings(hand []deck.Card, exclude, n int) []deck.Card {
	groups, order := groupByValue(hand)
	var out []deck.Card
	for _, v := range order {
		if v == exclude || len(groups[v]) == 4 {
			continue
		}
		for _, c := range groups[v] {
			out = append(out, c)
			if len(out) == n {
				return out
			}
		}
	}
	return nil
}

// runMoves emits the maximal consecutive runs of values holding at least
// `copies` cards each, of at least minLen groups. Used for free leads.
func runMoves(groups map[int][]deck.Card, order []int, copies, minLen int) [][]deck.Card {
	var moves [][]deck.Card
	var run []int
	flush := func() {
		if len(run) >= minLen {
			var cards []deck.Card
			for _, v := range run {
				cards = append(cards, groups[v][:copies]...)
			}
			moves = append(moves, cards)
		}
		run = nil
	}
	for _, v := range order {
		if v >= 15 || len(groups[v]) < copies {
			flush()
			continue
		}
		if len(run) > 0 && v != run[len(run)-1]+1 {
			flush()
		}
		run = append(run, v)
	}
	flush()
	return moves
}

// fixedRunMoves emits every run window of exactly length groups, for
// answering straights and pair straights.
func fixedRunMoves(groups map[int][]deck.Card, order []int, copies, length int) [][]deck.Card {
	var moves [][]deck.Card
	for _, full := range runMoves(groups, order, copies, length) {
		// Slide a window of `length` groups over the maximal run.
		total := len(full) / copies
		for start := 0; start+length <= total; start++ {
			window := full[start*copies : (start+length)*copies]
			moves = append(moves, window)
		}
	}
	return moves
}

// planeMoves answers a plane (with or without wings) of matching length.
func planeMoves(hand []deck.Card, groups map[int][]deck.Card, order []int, must *combo.Combo) [][]deck.Card {
	var tripleVals []int
	for _, v := range order {
		if v < 15 && len(groups[v]) >= 3 {
			tripleVals = append(tripleVals, v)
		}
	}
	var moves [][]deck.Card
	for start := 0; start+must.Length <= len(tripleVals); start++ {
		run := tripleVals[start : start+must.Length]
		ok := true
		for i := 1; i < len(run); i++ {
			if run[i] != run[i-1]+1 {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		var cards []deck.Card
		used := make(map[int]bool, len(run))
		for _, v := range run {
			cards = append(cards, groups[v][:3]...)
			used[v] = true
		}
		if must.Type == combo.PlaneWings {
			wingsPer := (len(must.Cards) - 3*must.Length) / must.Length
			var wings []deck.Card
			for _, v := range order {
				if used[v] || len(groups[v]) == 4 {
					continue
				}
				for _, c := range groups[v] {
					wings = append(wings, c)
					if len(wings) == wingsPer*must.Length {
						break
					}
				}
				if len(wings) == wingsPer*must.Length {
					break
				}
			}
			if len(wings) < wingsPer*must.Length {
				continue
			}
			cards = append(cards, wings...)
		}
		moves = append(moves, cards)
	}
	return moves
}
