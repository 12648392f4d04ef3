// internal/session/local.go
package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"doudizhu/internal/bot"
	"doudizhu/internal/deck"
	"doudizhu/internal/game"
)

const humanSeat = 0

// LocalSession runs a single-process game: the player in seat 0, bots in
// the other two. It shares the command surface of NetSession so the
// terminal client renders both the same way.
type LocalSession struct {
	g      *game.Game
	logger *logrus.Logger

	// selection is guarded by the game mutex along with everything else.
	selected map[string]bool

	// OnUpdate fires after any state change, including bot moves. Same
	// contract as NetSession.OnUpdate.
	OnUpdate func()
}

// NewLocalSession seats the named player against two bots.
func NewLocalSession(name string, logger *logrus.Logger) *LocalSession {
	s := &LocalSession{
		g:        game.NewGame(),
		logger:   logger,
		selected: make(map[string]bool),
	}
	s.g.Logf = logger.Debugf
	s.g.OnChange = s.changed
	s.g.Seats[humanSeat].Name = name
	s.g.Seats[1].Name = "Bot East"
	s.g.Seats[1].Bot = true
	s.g.Seats[2].Name = "Bot West"
	s.g.Seats[2].Bot = true
	return s
}

// SetThinkDelay tunes bot pacing.
func (s *LocalSession) SetThinkDelay(d time.Duration) {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	s.g.ThinkDelay = d
}

// StartGame deals a fresh round.
func (s *LocalSession) StartGame() error {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	s.selected = make(map[string]bool)
	return s.g.Start()
}

// Bid claims or declines the landlord role for the player.
func (s *LocalSession) Bid(take bool) error {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return s.g.HandleBid(humanSeat, take)
}

// ToggleCard flips a card in or out of the pending selection.
func (s *LocalSession) ToggleCard(id string) {
	s.g.Mu.Lock()
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	s.g.Mu.Unlock()
	s.changed()
}

// Selected reports whether a card is in the pending selection.
func (s *LocalSession) Selected(id string) bool {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return s.selected[id]
}

// PlaySelected submits the pending selection and clears it on success.
func (s *LocalSession) PlaySelected() error {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return game.ErrInvalidCombo
	}
	if err := s.g.HandlePlay(humanSeat, ids); err != nil {
		return err
	}
	s.selected = make(map[string]bool)
	return nil
}

// PlayCards submits explicit card IDs, bypassing the selection.
func (s *LocalSession) PlayCards(ids []string) error {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return s.g.HandlePlay(humanSeat, ids)
}

// Pass declines to beat the table combo.
func (s *LocalSession) Pass() error {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	s.selected = make(map[string]bool)
	return s.g.HandlePass(humanSeat)
}

// Hint runs the bot strategy over the player's own hand and returns the
// suggested card IDs, or nil when passing (or bidding no) is the advice.
func (s *LocalSession) Hint() []string {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	seat := s.g.Seats[humanSeat]
	switch s.g.Phase {
	case game.PhasePlaying:
		if s.g.Turn != humanSeat {
			return nil
		}
		var must = s.g.LastCombo
		if s.g.LastPlayer == humanSeat {
			must = nil
		}
		ctx := &bot.Context{MySeat: humanSeat, LandlordSeat: s.g.Landlord}
		for i, st := range s.g.Seats {
			ctx.Counts[i] = len(st.Hand)
		}
		move := bot.SuggestPlay(seat.Hand, must, ctx)
		ids := make([]string, len(move))
		for i, c := range move {
			ids[i] = c.ID
		}
		if len(ids) == 0 {
			return nil
		}
		return ids
	default:
		return nil
	}
}

// HintBid returns the bot's landlord-bid advice for the player's hand.
func (s *LocalSession) HintBid() bool {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return bot.SuggestBid(s.g.Seats[humanSeat].Hand)
}

// View projects the player's filtered view.
func (s *LocalSession) View() *game.View {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	v := game.Project(s.g, humanSeat)
	return &v
}

// MySeat is fixed at 0 offline.
func (s *LocalSession) MySeat() int {
	return humanSeat
}

// Hand returns the player's current cards.
func (s *LocalSession) Hand() []deck.Card {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return append([]deck.Card(nil), s.g.Seats[humanSeat].Hand...)
}

// Phase returns the game phase.
func (s *LocalSession) Phase() game.Phase {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	return s.g.Phase
}

// Status renders a one-line human-readable summary of where the game is.
func (s *LocalSession) Status() string {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	switch s.g.Phase {
	case game.PhaseIdle:
		return "waiting for a new deal"
	case game.PhaseBidding:
		if s.g.Bidder == humanSeat {
			return "your bid"
		}
		return s.g.Seats[s.g.Bidder].Name + " is deciding on the bid"
	case game.PhasePlaying:
		if s.g.Turn == humanSeat {
			return "your turn"
		}
		return s.g.Seats[s.g.Turn].Name + " is thinking"
	case game.PhaseFinished:
		return string(s.g.Winner) + " side wins"
	}
	return ""
}

// Close cancels any pending bot timer.
func (s *LocalSession) Close() {
	s.g.Mu.Lock()
	defer s.g.Mu.Unlock()
	s.g.StopTimers()
}

func (s *LocalSession) changed() {
	if s.OnUpdate != nil {
		s.OnUpdate()
	}
}
