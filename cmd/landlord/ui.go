// cmd/landlord/ui.go
package main

import (
	"fmt"
	"strings"

	"doudizhu/internal/bot"
	"doudizhu/internal/deck"
	"doudizhu/internal/game"
	"doudizhu/internal/session"
)

// player is the command surface shared by the offline and online sessions.
type player interface {
	Bid(take bool) error
	PlayCards(ids []string) error
	Pass() error
	Hand() []deck.Card
	View() *game.View
	MySeat() int
	Phase() game.Phase
}

type ui struct {
	p       player
	updates <-chan struct{}
	lines   <-chan string
}

func newUI(p player, updates <-chan struct{}) *ui {
	return &ui{p: p, updates: updates, lines: readLines()}
}

func (u *ui) run() {
	u.render()
	for {
		select {
		case <-u.updates:
			if n, ok := u.p.(*session.NetSession); ok && n.Closed() {
				fmt.Println("\nHost left; room closed.")
				return
			}
			u.render()
		case line, ok := <-u.lines:
			if !ok {
				return
			}
			if !u.handle(line) {
				return
			}
		}
	}
}

// handle executes one input line; false means quit.
func (u *ui) handle(line string) bool {
	if line == "" {
		u.render()
		return true
	}
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return false
	case "b", "bid":
		u.report(u.p.Bid(true))
	case "n", "no":
		u.report(u.p.Bid(false))
	case "p", "pass":
		u.report(u.p.Pass())
	case "h", "hint":
		u.hint()
	case "r", "ready":
		switch s := u.p.(type) {
		case *session.NetSession:
			if s.IsHost() && s.Phase() == game.PhaseFinished {
				u.report(s.StartNewRound())
			}
			u.report(s.ToggleReady())
		case *session.LocalSession:
			u.report(s.StartGame())
		}
	default:
		idx, err := parseIndexes(fields)
		if err != nil {
			fmt.Println(err)
			return true
		}
		u.play(idx)
	}
	return true
}

// play maps hand indexes to card IDs and submits them.
func (u *ui) play(idx []int) {
	hand := u.p.Hand()
	ids := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(hand) {
			fmt.Printf("no card numbered %d\n", i)
			return
		}
		ids = append(ids, hand[i].ID)
	}
	u.report(u.p.PlayCards(ids))
}

// hint runs the bot strategy over our own view. Works the same offline and
// online since the view carries everything the bot needs.
func (u *ui) hint() {
	v := u.p.View()
	seat := u.p.MySeat()
	if v == nil || seat < 0 {
		fmt.Println("nothing to hint yet")
		return
	}
	hand := u.p.Hand()
	switch v.Phase {
	case game.PhaseBidding:
		if bot.SuggestBid(hand) {
			fmt.Println("hint: bid for landlord (b)")
		} else {
			fmt.Println("hint: decline the bid (n)")
		}
	case game.PhasePlaying:
		must := v.LastCombo
		if v.LastPlayer == seat {
			must = nil
		}
		ctx := &bot.Context{MySeat: seat, LandlordSeat: v.Landlord}
		for i, sv := range v.Seats {
			ctx.Counts[i] = sv.CardCount
		}
		move := bot.SuggestPlay(hand, must, ctx)
		if len(move) == 0 {
			fmt.Println("hint: pass (p)")
			return
		}
		var nums []string
		for _, mc := range move {
			for i, hc := range hand {
				if hc.ID == mc.ID {
					nums = append(nums, fmt.Sprintf("%d", i))
				}
			}
		}
		fmt.Printf("hint: play %s  (%s)\n", labelCards(move), strings.Join(nums, " "))
	default:
		fmt.Println("nothing to hint yet")
	}
}

func (u *ui) report(err error) {
	if err != nil {
		fmt.Println("rejected:", err)
	}
}

// ---- rendering ----

func (u *ui) render() {
	v := u.p.View()
	if v == nil {
		fmt.Println("(waiting for the host...)")
		return
	}
	seat := u.p.MySeat()

	fmt.Println()
	fmt.Printf("--- %s ---\n", v.Phase)
	for i, sv := range v.Seats {
		marker := " "
		if v.Phase == game.PhasePlaying && v.Turn == i {
			marker = "*"
		}
		if v.Phase == game.PhaseBidding && v.Bidder == i {
			marker = "*"
		}
		role := ""
		if sv.Role != "" {
			role = " [" + string(sv.Role) + "]"
		}
		you := ""
		if i == seat {
			you = " (you)"
		}
		fmt.Printf("%s seat %d %s%s%s: %d cards", marker, i, nameOr(sv.Name, i), role, you, sv.CardCount)
		if len(sv.LastPlay) > 0 {
			fmt.Printf("  last: %s", labelCards(sv.LastPlay))
		}
		fmt.Println()
	}
	if v.LastCombo != nil && v.Phase == game.PhasePlaying {
		fmt.Printf("table: %s %s (seat %d)\n", v.LastCombo.Type, labelCards(v.LastCombo.Cards), v.LastPlayer)
	}
	if len(v.Bottom) > 0 {
		fmt.Printf("bottom: %s\n", labelCards(v.Bottom))
	}

	if seat >= 0 {
		hand := v.Seats[seat].Cards
		fmt.Print("your hand: ")
		for i, c := range hand {
			fmt.Printf("[%d]%s ", i, label(c))
		}
		fmt.Println()
	}

	switch v.Phase {
	case game.PhaseIdle:
		fmt.Println("nobody took the bid; (r) to deal again")
	case game.PhaseBidding:
		if v.Bidder == seat {
			fmt.Println("your bid: (b) take landlord / (n) decline")
		}
	case game.PhasePlaying:
		if v.Turn == seat {
			fmt.Println("your turn: card numbers to play, (p) pass, (h) hint")
		}
	case game.PhaseFinished:
		fmt.Printf("round over: %s side wins! bombs played: %d\n", v.Winner, v.BombCount)
		fmt.Println("(r) to go again, (q) to quit")
	}
	if n, ok := u.p.(*session.NetSession); ok {
		if msg := n.Notice(); msg != "" {
			fmt.Println("!", msg)
		}
	}
}

func nameOr(name string, seat int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("(empty %d)", seat)
}

var suitGlyphs = map[deck.Suit]string{
	deck.SuitSpade:   "♠",
	deck.SuitHeart:   "♥",
	deck.SuitDiamond: "♦",
	deck.SuitClub:    "♣",
}

func label(c deck.Card) string {
	if c.Joker() {
		if c.Rank == deck.RankBigJoker {
			return "JOKER"
		}
		return "joker"
	}
	return c.Rank + suitGlyphs[c.Suit]
}

func labelCards(cc []deck.Card) string {
	parts := make([]string, len(cc))
	for i, c := range cc {
		parts[i] = label(c)
	}
	return strings.Join(parts, " ")
}
