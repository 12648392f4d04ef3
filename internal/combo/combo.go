// internal/combo/combo.go
package combo

import (
	"sort"

	"doudizhu/internal/deck"
)

// Type tags the recognized Dou Dizhu combination shapes.
type Type string

const (
	Single       Type = "single"
	Pair         Type = "pair"
	Triple       Type = "triple"
	TripleSingle Type = "triple_single"
	TriplePair   Type = "triple_pair"
	Straight     Type = "straight"      // >=5 consecutive singles
	PairStraight Type = "pair_straight" // >=3 consecutive pairs
	Plane        Type = "plane"         // >=2 consecutive triples
	PlaneWings   Type = "plane_wings"   // plane plus one single or one pair per triple
	FourTwo      Type = "four_two"      // four of a kind plus two extra cards
	Bomb         Type = "bomb"
	Rocket       Type = "rocket"
)

// runExclusion is the lowest value barred from straights, pair straights and
// plane chains: the rank "2" (15) and both jokers never extend a run.
const runExclusion = 15

// Combo is a classified combination. Value is the primary comparison key
// (for run shapes, the lowest value in the run); Length is the run length in
// groups and zero for non-run shapes. Combos are produced only by Detect.
type Combo struct {
	Type   Type        `json:"type"`
	Cards  []deck.Card `json:"cards"`
	Value  int         `json:"value"`
	Length int         `json:"length,omitempty"`
}

// Detect classifies an arbitrary card set, returning nil when the cards
// match no recognized shape. The input slice is not mutated.
func Detect(cards []deck.Card) *Combo {
	n := len(cards)
	if n == 0 {
		return nil
	}

	sorted := make([]deck.Card, n)
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	if n == 2 && sorted[0].Joker() && sorted[1].Joker() {
		return &Combo{Type: Rocket, Cards: sorted, Value: sorted[1].Value}
	}

	counts := countByValue(sorted)

	switch n {
	case 1:
		return &Combo{Type: Single, Cards: sorted, Value: sorted[0].Value}
	case 2:
		if len(counts) == 1 {
			return &Combo{Type: Pair, Cards: sorted, Value: sorted[0].Value}
		}
	case 3:
		if len(counts) == 1 {
			return &Combo{Type: Triple, Cards: sorted, Value: sorted[0].Value}
		}
	}

	ones, twos, threes, fours := bucketValues(counts)

	if n == 4 {
		if len(fours) == 1 {
			return &Combo{Type: Bomb, Cards: sorted, Value: fours[0]}
		}
		if len(threes) == 1 && len(ones) == 1 {
			return &Combo{Type: TripleSingle, Cards: sorted, Value: threes[0]}
		}
	}
	if n == 5 && len(threes) == 1 && len(twos) == 1 {
		return &Combo{Type: TriplePair, Cards: sorted, Value: threes[0]}
	}
	if n == 6 && len(fours) == 1 {
		// The two extras may be two loose singles or one pair.
		if len(ones) == 2 || len(twos) == 1 {
			return &Combo{Type: FourTwo, Cards: sorted, Value: fours[0]}
		}
	}

	if n >= 5 && len(counts) == n && consecutiveBelow(ones, runExclusion) {
		return &Combo{Type: Straight, Cards: sorted, Value: ones[0], Length: n}
	}
	if n >= 6 && n%2 == 0 && len(twos) == n/2 && len(twos) >= 3 &&
		len(ones)+len(threes)+len(fours) == 0 && consecutiveBelow(twos, runExclusion) {
		return &Combo{Type: PairStraight, Cards: sorted, Value: twos[0], Length: len(twos)}
	}

	if c := detectPlane(sorted, counts, threes); c != nil {
		return c
	}

	return nil
}

// CanBeat reports whether a beats b. A nil b means the table is open, so any
// classified combo leads. Rockets beat everything, bombs beat any non-bomb;
// otherwise types and run lengths must match exactly and the higher primary
// value wins. Combos of unequal card count never compare.
func CanBeat(a, b *Combo) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if b.Type == Rocket {
		return false
	}
	if a.Type == Rocket {
		return true
	}
	if a.Type == Bomb {
		if b.Type != Bomb {
			return true
		}
		return a.Value > b.Value
	}
	if b.Type == Bomb {
		return false
	}
	if a.Type != b.Type || a.Length != b.Length || len(a.Cards) != len(b.Cards) {
		return false
	}
	return a.Value > b.Value
}

// countByValue tallies how many copies of each value the set holds.
func countByValue(cards []deck.Card) map[int]int {
	counts := make(map[int]int, len(cards))
	for _, c := range cards {
		counts[c.Value]++
	}
	return counts
}

// bucketValues splits values by copy count. Each returned slice is sorted
// ascending.
func bucketValues(counts map[int]int) (ones, twos, threes, fours []int) {
	for v, c := range counts {
		switch c {
		case 1:
			ones = append(ones, v)
		case 2:
			twos = append(twos, v)
		case 3:
			threes = append(threes, v)
		case 4:
			fours = append(fours, v)
		}
	}
	sort.Ints(ones)
	sort.Ints(twos)
	sort.Ints(threes)
	sort.Ints(fours)
	return ones, twos, threes, fours
}

// consecutiveBelow reports whether vals form a strictly consecutive run with
// every value under the given bound.
func consecutiveBelow(vals []int, bound int) bool {
	if len(vals) == 0 {
		return false
	}
	for i, v := range vals {
		if v >= bound {
			return false
		}
		if i > 0 && v != vals[i-1]+1 {
			return false
		}
	}
	return true
}

// detectPlane looks for >=2 consecutive triple groups, bare (plane) or with
// exactly one single or one pair riding along per triple (plane with wings).
// Longer chains are preferred so a pure run of triples is never misread as a
// shorter plane with triple wings.
func detectPlane(cards []deck.Card, counts map[int]int, threes []int) *Combo {
	if len(threes) < 2 {
		return nil
	}
	// Enumerate consecutive sub-runs of triple values, longest first.
	for length := len(threes); length >= 2; length-- {
		for start := 0; start+length <= len(threes); start++ {
			run := threes[start : start+length]
			if !consecutiveBelow(run, runExclusion) {
				continue
			}
			inRun := make(map[int]bool, length)
			for _, v := range run {
				inRun[v] = true
			}
			var wings []deck.Card
			for _, c := range cards {
				if !inRun[c.Value] {
					wings = append(wings, c)
				}
			}
			switch {
			case len(wings) == 0:
				return &Combo{Type: Plane, Cards: cards, Value: run[0], Length: length}
			case len(wings) == length:
				return &Combo{Type: PlaneWings, Cards: cards, Value: run[0], Length: length}
			case len(wings) == 2*length && allPairs(wings):
				return &Combo{Type: PlaneWings, Cards: cards, Value: run[0], Length: length}
			}
		}
	}
	return nil
}

// allPairs reports whether the cards group exactly into same-value pairs.
func allPairs(cards []deck.Card) bool {
	if len(cards)%2 != 0 {
		return false
	}
	for _, c := range countByValue(cards) {
		if c != 2 {
			return false
		}
	}
	return true
}
