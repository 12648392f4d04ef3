// internal/session/session_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doudizhu/internal/game"
	"doudizhu/internal/history"
	"doudizhu/internal/transport"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func join(t *testing.T, hub *transport.Hub, room, name string) *NetSession {
	t.Helper()
	n, err := JoinRoom(context.Background(), hub.NewPeer(name), room, name, testLogger())
	require.NoError(t, err)
	return n
}

// table spins up a full three-seat room: the first session hosts.
func table(t *testing.T) (host, bob, carol *NetSession) {
	t.Helper()
	hub := transport.NewHub()
	host = join(t, hub, "t1", "alice")
	bob = join(t, hub, "t1", "bob")
	carol = join(t, hub, "t1", "carol")
	host.SetThinkDelay(5 * time.Millisecond)
	t.Cleanup(func() {
		host.host.Shutdown()
	})
	return host, bob, carol
}

func readyAll(t *testing.T, ss ...*NetSession) {
	t.Helper()
	for _, s := range ss {
		require.NoError(t, s.ToggleReady())
	}
}

// driveToFinish plays the host seat with a trivial policy (lead the lowest
// single, otherwise pass) until the round ends. Bot seats do the rest.
func driveToFinish(t *testing.T, host *NetSession) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		v := host.View()
		if v.Phase == game.PhaseFinished {
			return
		}
		if v.Phase == game.PhasePlaying && v.Turn == host.MySeat() {
			if v.LastCombo == nil || v.LastPlayer == host.MySeat() {
				hand := host.Hand()
				require.NotEmpty(t, hand)
				require.NoError(t, host.PlayCards([]string{hand[len(hand)-1].ID}))
			} else {
				require.NoError(t, host.Pass())
			}
			continue
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("round never finished")
}

// bySeat finds the session holding the given seat.
func bySeat(t *testing.T, seat int, ss ...*NetSession) *NetSession {
	t.Helper()
	for _, s := range ss {
		if s.MySeat() == seat {
			return s
		}
	}
	t.Fatalf("no session holds seat %d", seat)
	return nil
}

func TestFirstJoinerHostsAndSeatsFill(t *testing.T) {
	host, bob, carol := table(t)

	assert.True(t, host.IsHost())
	assert.False(t, bob.IsHost())
	assert.False(t, carol.IsHost())

	assert.Equal(t, 0, host.MySeat())
	assert.Equal(t, 1, bob.MySeat())
	assert.Equal(t, 2, carol.MySeat())

	seats := carol.Seats()
	for i := range seats {
		assert.True(t, seats[i].Occupied(), "seat %d", i)
		assert.True(t, seats[i].Connected, "seat %d", i)
	}
}

func TestFourthJoinerObserves(t *testing.T) {
	hub := transport.NewHub()
	host := join(t, hub, "t2", "alice")
	join(t, hub, "t2", "bob")
	join(t, hub, "t2", "carol")
	dave := join(t, hub, "t2", "dave")
	t.Cleanup(func() { host.host.Shutdown() })

	assert.Equal(t, -1, dave.MySeat())
	assert.Equal(t, "all seats are taken", dave.Notice())

	// The observer still gets a projection on request, with no hand.
	require.NoError(t, dave.RequestSync())
	v := dave.View()
	require.NotNil(t, v)
	for _, sv := range v.Seats {
		assert.Empty(t, sv.Cards)
	}
}

func TestAllReadyDealsAndHidesHands(t *testing.T) {
	host, bob, carol := table(t)
	readyAll(t, host, bob, carol)

	for _, s := range []*NetSession{host, bob, carol} {
		assert.Equal(t, game.PhaseBidding, s.Phase())
		v := s.View()
		require.NotNil(t, v)
		assert.Len(t, s.Hand(), 17)
		for i, sv := range v.Seats {
			assert.Equal(t, 17, sv.CardCount)
			if i != s.MySeat() {
				assert.Empty(t, sv.Cards, "seat %d leaked its hand to seat %d", i, s.MySeat())
			}
		}
		assert.Empty(t, v.Bottom, "bottom hidden during bidding")
	}
}

func TestBidResolvesAndLandlordLeads(t *testing.T) {
	host, bob, carol := table(t)
	readyAll(t, host, bob, carol)

	bidderSeat := host.View().Bidder
	bidder := bySeat(t, bidderSeat, host, bob, carol)

	// A bid from the wrong seat is silently dropped.
	other := bySeat(t, (bidderSeat+1)%3, host, bob, carol)
	require.NoError(t, other.Bid(true))
	assert.Equal(t, game.PhaseBidding, host.Phase())

	require.NoError(t, bidder.Bid(true))
	for _, s := range []*NetSession{host, bob, carol} {
		v := s.View()
		require.NotNil(t, v)
		assert.Equal(t, game.PhasePlaying, v.Phase)
		assert.Equal(t, bidderSeat, v.Landlord)
		assert.Equal(t, bidderSeat, v.Turn)
		assert.Equal(t, 20, v.Seats[bidderSeat].CardCount)
		assert.Len(t, v.Bottom, 3, "bottom revealed once claimed")
	}
	assert.Len(t, bidder.Hand(), 20)

	// Landlord leads its lowest card as a single.
	hand := bidder.Hand()
	low := hand[len(hand)-1]
	require.NoError(t, bidder.PlayCards([]string{low.ID}))
	v := carol.View()
	assert.Equal(t, (bidderSeat+1)%3, v.Turn)
	assert.Equal(t, 19, v.Seats[bidderSeat].CardCount)
	require.NotNil(t, v.LastCombo)
	assert.Equal(t, low.Value, v.LastCombo.Value)
}

func TestRejectedPlayGetsDirectedError(t *testing.T) {
	host, bob, carol := table(t)
	readyAll(t, host, bob, carol)

	bidderSeat := host.View().Bidder
	bidder := bySeat(t, bidderSeat, host, bob, carol)
	require.NoError(t, bidder.Bid(true))

	// Two arbitrary distinct-value cards are not a shape.
	hand := bidder.Hand()
	bad := []string{hand[0].ID, hand[len(hand)-1].ID}
	require.NoError(t, bidder.PlayCards(bad))
	assert.NotEmpty(t, bidder.Notice(), "the offender is told its play was rejected")
	// State unchanged either way.
	assert.Equal(t, 20, len(bidder.Hand()))
	for _, s := range []*NetSession{host, bob, carol} {
		if s != bidder {
			assert.Empty(t, s.Notice(), "bystanders hear nothing about it")
		}
	}
}

func TestSelection(t *testing.T) {
	host, bob, carol := table(t)
	readyAll(t, host, bob, carol)

	bidderSeat := host.View().Bidder
	bidder := bySeat(t, bidderSeat, host, bob, carol)
	require.NoError(t, bidder.Bid(true))

	hand := bidder.Hand()
	low := hand[len(hand)-1]
	bidder.ToggleCard(low.ID)
	assert.True(t, bidder.Selected(low.ID))
	bidder.ToggleCard(low.ID)
	assert.False(t, bidder.Selected(low.ID))

	bidder.ToggleCard(low.ID)
	require.NoError(t, bidder.PlaySelected())
	assert.False(t, bidder.Selected(low.ID), "selection clears after play")
	assert.Len(t, bidder.Hand(), 19)
}

func TestDisconnectMidRoundHandsSeatToBot(t *testing.T) {
	host, bob, carol := table(t)
	readyAll(t, host, bob, carol)

	bidderSeat := host.View().Bidder
	bidder := bySeat(t, bidderSeat, host, bob, carol)
	require.NoError(t, bidder.Bid(true))

	// Both clients drop mid-round; their seats flip to bots and keep the
	// round alive.
	require.NoError(t, bob.Leave())
	require.NoError(t, carol.Leave())

	seats := host.Seats()
	assert.False(t, seats[1].Connected)
	assert.False(t, seats[2].Connected)
	assert.True(t, seats[1].Occupied(), "mid-round seats stay occupied")
	v := host.View()
	assert.True(t, v.Seats[1].Bot)
	assert.True(t, v.Seats[2].Bot)

	// The bots keep the round alive until it ends.
	driveToFinish(t, host)
	assert.Equal(t, game.PhaseFinished, host.Phase(), "round finishes with bots in the empty seats")
	winner := host.View().Winner
	assert.Contains(t, []game.Role{game.RoleLandlord, game.RoleFarmer}, winner)
}

func TestFinishedRoundFreesDisconnectedSeats(t *testing.T) {
	hub := transport.NewHub()
	host := join(t, hub, "t5", "alice")
	bob := join(t, hub, "t5", "bob")
	carol := join(t, hub, "t5", "carol")
	host.SetThinkDelay(5 * time.Millisecond)
	t.Cleanup(func() { host.host.Shutdown() })

	readyAll(t, host, bob, carol)
	bidderSeat := host.View().Bidder
	require.NoError(t, bySeat(t, bidderSeat, host, bob, carol).Bid(true))
	require.NoError(t, bob.Leave())
	require.NoError(t, carol.Leave())
	driveToFinish(t, host)

	// The departed seats are free again and nobody is left ready, so the
	// room can fill up and deal a fresh round.
	seats := host.Seats()
	assert.False(t, seats[1].Occupied(), "disconnected seat freed once the round ends")
	assert.False(t, seats[2].Occupied())
	assert.False(t, seats[0].Ready, "readiness resets at round end")
	v := host.View()
	assert.False(t, v.Seats[1].Bot, "bot control ends with the round")
	assert.False(t, v.Seats[2].Bot)

	dave := join(t, hub, "t5", "dave")
	assert.Equal(t, 1, dave.MySeat(), "freed seat is reassigned")
	require.NoError(t, host.StartNewRound())
}

func TestPreGameLeaveFreesSeat(t *testing.T) {
	hub := transport.NewHub()
	host := join(t, hub, "t3", "alice")
	bob := join(t, hub, "t3", "bob")
	t.Cleanup(func() { host.host.Shutdown() })

	require.NoError(t, bob.Leave())
	seats := host.Seats()
	assert.False(t, seats[1].Occupied(), "pre-round leave frees the seat")

	carol := join(t, hub, "t3", "carol")
	assert.Equal(t, 1, carol.MySeat(), "freed seat is reassigned")
}

func TestHostLeaveClosesRoomForClients(t *testing.T) {
	hub := transport.NewHub()
	host := join(t, hub, "t4", "alice")
	bob := join(t, hub, "t4", "bob")

	require.NoError(t, host.Leave())
	assert.True(t, bob.Closed())
	assert.ErrorIs(t, bob.ToggleReady(), ErrRoomClosed)
}

func TestOnlyHostStartsNewRound(t *testing.T) {
	host, bob, _ := table(t)
	assert.Error(t, bob.StartNewRound())
	assert.NoError(t, host.StartNewRound())
}

// scriptedRoom puts a three-player room straight into the playing phase
// with fixed hands, so two rooms can be driven through identical scripts.
func scriptedRoom(t *testing.T, room string) (players [3]*NetSession) {
	t.Helper()
	hub := transport.NewHub()
	host := join(t, hub, room, "alice")
	bob := join(t, hub, room, "bob")
	carol := join(t, hub, room, "carol")
	t.Cleanup(func() { host.host.Shutdown() })

	g := host.host.g
	g.Mu.Lock()
	g.Phase = game.PhasePlaying
	g.Landlord = 0
	g.Turn = 0
	g.Seats[0].Hand = cardsOf(t, "9", "8", "3")
	g.Seats[0].Role = game.RoleLandlord
	g.Seats[1].Hand = cardsOf(t, "K", "10", "4")
	g.Seats[1].Role = game.RoleFarmer
	g.Seats[2].Hand = cardsOf(t, "A", "J", "6")
	g.Seats[2].Role = game.RoleFarmer
	host.host.pushState()
	g.Mu.Unlock()

	for i := range players {
		players[i] = bySeat(t, i, host, bob, carol)
	}
	return players
}

// playRank plays the first card of the given rank from the session's hand.
func playRank(t *testing.T, s *NetSession, rank string) {
	t.Helper()
	for _, c := range s.Hand() {
		if c.Rank == rank {
			require.NoError(t, s.PlayCards([]string{c.ID}))
			return
		}
	}
	t.Fatalf("no %s in hand", rank)
}

// Dropped intents must leave no trace: the same accepted script yields the
// same final state no matter how much out-of-turn traffic surrounds it.
func TestRejectedIntentInterleavingsDoNotChangeOutcome(t *testing.T) {
	actors := []int{0, 1, 2, 0, 1, 2, 0, 1, 2}
	run := func(room string, noise func(step int, players [3]*NetSession)) [3]*game.View {
		players := scriptedRoom(t, room)
		script := []func(){
			func() { playRank(t, players[0], "3") },
			func() { playRank(t, players[1], "4") },
			func() { playRank(t, players[2], "6") },
			func() { playRank(t, players[0], "8") },
			func() { playRank(t, players[1], "10") },
			func() { playRank(t, players[2], "J") },
			func() { require.NoError(t, players[0].Pass()) },
			func() { require.NoError(t, players[1].Pass()) },
			func() { playRank(t, players[2], "A") }, // empties the hand
		}
		for i, step := range script {
			noise(i, players)
			step()
		}
		var views [3]*game.View
		for i := range players {
			views[i] = players[i].View()
		}
		return views
	}

	quiet := func(int, [3]*NetSession) {}
	noisy := func(step int, players [3]*NetSession) {
		// The non-acting seats hammer plays and passes they are not
		// entitled to, in a pattern that differs step to step.
		actor := actors[step]
		for off := 1; off <= 2; off++ {
			s := players[(actor+off)%3]
			if hand := s.Hand(); len(hand) > 0 && step%2 == off%2 {
				require.NoError(t, s.PlayCards([]string{hand[0].ID}))
			}
			require.NoError(t, s.Pass())
		}
	}

	a := run("da", quiet)
	b := run("db", noisy)
	require.Equal(t, game.PhaseFinished, a[0].Phase)
	assert.Equal(t, game.RoleFarmer, a[0].Winner)
	for i := range a {
		assert.Equal(t, a[i], b[i], "seat %d view diverged under noise", i)
	}
}

// recorderStub collects finished rounds in memory.
type recorderStub struct {
	recs chan history.RoundRecord
}

func (r *recorderStub) RecordRound(ctx context.Context, rec history.RoundRecord) error {
	r.recs <- rec
	return nil
}

func TestFinishedRoundIsRecorded(t *testing.T) {
	host, bob, carol := table(t)
	rec := &recorderStub{recs: make(chan history.RoundRecord, 1)}
	host.SetRecorder(rec)
	readyAll(t, host, bob, carol)

	bidderSeat := host.View().Bidder
	bidder := bySeat(t, bidderSeat, host, bob, carol)
	require.NoError(t, bidder.Bid(true))

	// Let bots finish the round for everyone.
	require.NoError(t, bob.Leave())
	require.NoError(t, carol.Leave())
	driveToFinish(t, host)
	require.Equal(t, game.PhaseFinished, host.Phase())

	select {
	case got := <-rec.recs:
		assert.Equal(t, "t1", got.Room)
		assert.Equal(t, bidderSeat, got.Landlord)
		assert.NotEmpty(t, got.Winner)
	case <-time.After(2 * time.Second):
		t.Fatal("round was never recorded")
	}
}
