// internal/game/game.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"doudizhu/internal/bot"
	"doudizhu/internal/combo"
	"doudizhu/internal/deck"
)

// Phase is the round lifecycle: idle -> bidding -> playing -> finished, and
// back to idle on replay (or straight from bidding when all three pass).
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseBidding  Phase = "bidding"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Role is unassigned until the bid resolves, then fixed for the round.
type Role string

const (
	RoleNone     Role = ""
	RoleLandlord Role = "landlord"
	RoleFarmer   Role = "farmer"
)

// BidMark records one slot of the bidding sub-state.
type BidMark int

const (
	BidUnset BidMark = iota
	BidPassed
	BidTaken
)

// Seat is one of the three positions at the table. Played accumulates every
// card the seat has shed this round, so the 54 identities always partition
// across hands, bottom and played piles; LastPlay is only the most recent
// combo, for display.
type Seat struct {
	Index    int
	Name     string
	Role     Role
	Hand     []deck.Card
	Played   []deck.Card
	LastPlay []deck.Card
	Bot      bool
}

// Game holds the entire authoritative state for one table in memory. In
// local mode it is the whole engine; in network mode exactly one process
// (the host) owns one and everyone else sees projections of it.
//
// All exported mutators assume g.Mu is held by the caller. The bot timer
// callback re-acquires the lock itself and validates the state generation
// before acting, so a stale timer can never touch a state that moved on.
type Game struct {
	ID uuid.UUID
	Mu sync.Mutex

	Phase      Phase
	Seats      [3]*Seat
	Bottom     []deck.Card
	Turn       int // acting seat while playing; -1 otherwise
	LastCombo  *combo.Combo
	LastPlayer int // seat that owns LastCombo; -1 when the table is open
	PassCount  int

	Bidder   int // acting seat while bidding; -1 otherwise
	Bids     [3]BidMark
	Landlord int // -1 until the bid resolves

	BombCount int
	Winner    Role

	// ThinkDelay simulates bot "thinking" before a scheduled decision.
	ThinkDelay time.Duration

	// OnChange fires after every accepted mutation, lock held. The network
	// host uses it to re-project and push per-seat views.
	OnChange func()

	// Logf, when set, receives diagnostics. The engine itself never logs.
	Logf func(format string, v ...interface{})

	stateID  int // generation counter; bumped on every mutation
	botTimer *time.Timer
}

// NewGame builds an idle table with three unnamed human seats.
func NewGame() *Game {
	id, _ := uuid.NewRandom()
	g := &Game{
		ID:         id,
		Phase:      PhaseIdle,
		Turn:       -1,
		LastPlayer: -1,
		Bidder:     -1,
		Landlord:   -1,
		ThinkDelay: 1200 * time.Millisecond,
	}
	for i := range g.Seats {
		g.Seats[i] = &Seat{Index: i}
	}
	return g
}

// Start deals a fresh round and enters bidding with a uniformly random first
// bidder. Allowed from idle or finished.
func (g *Game) Start() error {
	if g.Phase != PhaseIdle && g.Phase != PhaseFinished {
		return ErrBadPhase
	}
	hands, bottom := deck.Deal()
	for i, s := range g.Seats {
		s.Hand = hands[i]
		s.Played = nil
		s.LastPlay = nil
		s.Role = RoleNone
	}
	g.Bottom = bottom
	g.Phase = PhaseBidding
	g.Bidder = rand.Intn(3)
	g.Bids = [3]BidMark{}
	g.Landlord = -1
	g.Turn = -1
	g.LastCombo = nil
	g.LastPlayer = -1
	g.PassCount = 0
	g.BombCount = 0
	g.Winner = RoleNone
	g.commit()
	return nil
}

// HandleBid resolves one bidding decision by the current bidder. A bid ends
// bidding immediately: the bidder becomes landlord, claims the bottom and
// leads. Three consecutive passes return the table to idle for a re-deal.
func (g *Game) HandleBid(seat int, take bool) error {
	if g.Phase != PhaseBidding {
		return ErrBadPhase
	}
	if seat != g.Bidder {
		return ErrOutOfTurn
	}
	if take {
		g.Bids[seat] = BidTaken
		g.Landlord = seat
		for i, s := range g.Seats {
			if i == seat {
				s.Role = RoleLandlord
				s.Hand = append(s.Hand, g.Bottom...)
				deck.SortDesc(s.Hand)
			} else {
				s.Role = RoleFarmer
			}
		}
		g.Phase = PhasePlaying
		g.Turn = seat
		g.Bidder = -1
		g.LastCombo = nil
		g.LastPlayer = -1
		g.PassCount = 0
		g.commit()
		return nil
	}
	g.Bids[seat] = BidPassed
	if g.Bids[0] != BidUnset && g.Bids[1] != BidUnset && g.Bids[2] != BidUnset {
		// Nobody wants the hand; a fresh Start re-deals.
		g.Phase = PhaseIdle
		g.Bidder = -1
		g.commit()
		return nil
	}
	g.Bidder = (seat + 1) % 3
	g.commit()
	return nil
}

// HandlePlay validates and applies a play by the acting seat. Unless the
// table is open or the seat owns the outstanding combo, the play must beat
// it. Emptying the hand finishes the round.
func (g *Game) HandlePlay(seat int, cardIDs []string) error {
	if g.Phase != PhasePlaying {
		return ErrBadPhase
	}
	if seat != g.Turn {
		return ErrOutOfTurn
	}
	s := g.Seats[seat]
	played, err := deck.FindByIDs(s.Hand, cardIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCombo, err)
	}
	c := combo.Detect(played)
	if c == nil {
		return ErrInvalidCombo
	}
	if g.LastCombo != nil && g.LastPlayer != seat && !combo.CanBeat(c, g.LastCombo) {
		return ErrIllegalBeat
	}

	s.Hand = deck.Remove(s.Hand, played)
	s.Played = append(s.Played, c.Cards...)
	s.LastPlay = c.Cards
	g.LastCombo = c
	g.LastPlayer = seat
	g.PassCount = 0
	if c.Type == combo.Bomb || c.Type == combo.Rocket {
		g.BombCount++
	}
	if len(s.Hand) == 0 {
		g.Phase = PhaseFinished
		g.Turn = -1
		g.Winner = s.Role
		g.commit()
		return nil
	}
	g.Turn = (seat + 1) % 3
	g.commit()
	return nil
}

// HandlePass advances the turn past the acting seat. Passing is illegal on
// an open table and for the seat that owns the outstanding combo. The second
// consecutive pass clears the table for a free lead.
func (g *Game) HandlePass(seat int) error {
	if g.Phase != PhasePlaying {
		return ErrBadPhase
	}
	if seat != g.Turn {
		return ErrOutOfTurn
	}
	if g.LastCombo == nil || g.LastPlayer == seat {
		return ErrBadPass
	}
	g.Seats[seat].LastPlay = nil
	g.PassCount++
	g.Turn = (seat + 1) % 3
	if g.PassCount >= 2 {
		g.LastCombo = nil
		g.LastPlayer = -1
		g.PassCount = 0
	}
	g.commit()
	return nil
}

// SetSeatBot flips bot control for a seat (local bots, or a disconnected
// remote seat the host takes over) and immediately reconsiders whether a
// bot decision is due.
func (g *Game) SetSeatBot(seat int, isBot bool) {
	if g.Seats[seat].Bot == isBot {
		return
	}
	g.Seats[seat].Bot = isBot
	g.commit()
}

// ActingSeat returns the seat expected to move, or -1.
func (g *Game) ActingSeat() int {
	switch g.Phase {
	case PhaseBidding:
		return g.Bidder
	case PhasePlaying:
		return g.Turn
	default:
		return -1
	}
}

// commit bumps the state generation, cancels any pending bot timer for the
// superseded state, notifies the observer and schedules the next bot check.
func (g *Game) commit() {
	g.stateID++
	if g.botTimer != nil {
		g.botTimer.Stop()
		g.botTimer = nil
	}
	if g.OnChange != nil {
		g.OnChange()
	}
	g.scheduleBotCheck()
}

// scheduleBotCheck arms the single thinking timer when the acting seat is
// bot-controlled. The fired callback re-locks and verifies the generation
// it was armed for is still current before acting.
func (g *Game) scheduleBotCheck() {
	acting := g.ActingSeat()
	if acting < 0 || !g.Seats[acting].Bot {
		return
	}
	armedID := g.stateID
	g.botTimer = time.AfterFunc(g.ThinkDelay, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.stateID != armedID {
			g.logf("stale bot timer for game %s (armed %d, now %d); ignoring", g.ID, armedID, g.stateID)
			return
		}
		g.runBotAction()
	})
}

// runBotAction executes one bot decision for the acting seat. Lock held.
func (g *Game) runBotAction() {
	acting := g.ActingSeat()
	if acting < 0 || !g.Seats[acting].Bot {
		return
	}
	s := g.Seats[acting]
	switch g.Phase {
	case PhaseBidding:
		if err := g.HandleBid(acting, bot.SuggestBid(s.Hand)); err != nil {
			g.logf("bot bid failed for seat %d: %v", acting, err)
		}
	case PhasePlaying:
		var mustBeat *combo.Combo
		if g.LastCombo != nil && g.LastPlayer != acting {
			mustBeat = g.LastCombo
		}
		ctx := &bot.Context{MySeat: acting, LandlordSeat: g.Landlord}
		for i, seat := range g.Seats {
			ctx.Counts[i] = len(seat.Hand)
		}
		cards := bot.SuggestPlay(s.Hand, mustBeat, ctx)
		if cards == nil {
			if err := g.HandlePass(acting); err != nil {
				g.logf("bot pass failed for seat %d: %v", acting, err)
			}
			return
		}
		ids := make([]string, len(cards))
		for i, c := range cards {
			ids[i] = c.ID
		}
		if err := g.HandlePlay(acting, ids); err != nil {
			g.logf("bot play failed for seat %d: %v; passing", acting, err)
			if err := g.HandlePass(acting); err != nil {
				g.logf("bot fallback pass failed for seat %d: %v", acting, err)
			}
		}
	}
}

// StopTimers cancels any pending bot timer, for session teardown.
func (g *Game) StopTimers() {
	if g.botTimer != nil {
		g.botTimer.Stop()
		g.botTimer = nil
	}
}

func (g *Game) logf(format string, v ...interface{}) {
	if g.Logf != nil {
		g.Logf(format, v...)
	}
}
