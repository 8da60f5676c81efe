package euchre

import (
	"math/rand"
	"testing"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
	"github.com/decred/slog"
)

func newTestGame(seed int64) *game {
	g := newGame(games.Config{
		Seats:    4,
		Settings: games.DefaultSettings(games.Euchre),
		Rng:      rand.New(rand.NewSource(seed)),
		Log:      slog.Disabled,
	})
	return g
}

func bid(action, suit string, alone bool) games.Action {
	return games.Action{
		Type: wire.MsgMakeBid,
		Payload: games.EncodePayload(wire.EuchreBid{
			Action: action, Suit: suit, GoingAlone: alone,
		}),
	}
}

func play(id string) games.Action {
	return games.Action{
		Type:    wire.MsgPlayCard,
		Payload: games.EncodePayload(wire.PlayCard{CardID: id}),
	}
}

func discard(id string) games.Action {
	return games.Action{
		Type:    wire.MsgDiscardCard,
		Payload: games.EncodePayload(wire.DiscardCard{CardID: id}),
	}
}

func mustApply(t *testing.T, g *game, seat int, action games.Action) []games.Event {
	t.Helper()
	evs, err := g.Apply(seat, action)
	if err != nil {
		t.Fatalf("seat %d %s failed: %v", seat, action.Type, err)
	}
	return evs
}

func TestDealFirstHand(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	if g.phase != PhaseBiddingRound1 {
		t.Errorf("Expected phase %s, got %s", PhaseBiddingRound1, g.phase)
	}
	if g.current != 1 {
		t.Errorf("Expected seat 1 to open bidding, got %d", g.current)
	}
	for seat := 0; seat < 4; seat++ {
		if len(g.hands[seat]) != 5 {
			t.Errorf("Seat %d: expected 5 cards, got %d", seat, len(g.hands[seat]))
		}
	}
	if g.turnUp.IsZero() {
		t.Error("Expected a turned up card")
	}
	if len(g.kitty) != 3 {
		t.Errorf("Expected 3 cards left in the kitty, got %d", len(g.kitty))
	}
}

func TestOrderUpPickupAndDiscard(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	evs := mustApply(t, g, 1, bid(BidOrderUp, "", false))

	if g.phase != PhaseDealerDiscard {
		t.Fatalf("Expected phase %s, got %s", PhaseDealerDiscard, g.phase)
	}
	if g.current != 0 {
		t.Errorf("Expected dealer (seat 0) to discard, got seat %d", g.current)
	}
	if len(g.hands[0]) != 6 {
		t.Errorf("Expected dealer to hold 6 cards after pickup, got %d", len(g.hands[0]))
	}
	if g.trump != g.turnUp.Suit() {
		t.Errorf("Expected trump %s, got %s", g.turnUp.Suit(), g.trump)
	}
	if g.maker != 1 {
		t.Errorf("Expected maker seat 1, got %d", g.maker)
	}

	var sawBid, sawTrump bool
	for _, ev := range evs {
		switch ev.Type {
		case wire.MsgBidMade:
			sawBid = true
		case wire.MsgTrumpSelected:
			sawTrump = true
		}
	}
	if !sawBid || !sawTrump {
		t.Errorf("Expected bid_made and trump_selected events, got %v", evs)
	}

	mustApply(t, g, 0, discard(g.hands[0][0].ID()))

	if g.phase != PhasePlaying {
		t.Errorf("Expected phase %s after discard, got %s", PhasePlaying, g.phase)
	}
	if len(g.hands[0]) != 5 {
		t.Errorf("Expected dealer back to 5 cards, got %d", len(g.hands[0]))
	}
	if g.current != 1 {
		t.Errorf("Expected seat left of dealer to lead, got %d", g.current)
	}
}

func TestAllPassMovesToRoundTwo(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	for _, seat := range []int{1, 2, 3, 0} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}

	if g.phase != PhaseBiddingRound2 {
		t.Fatalf("Expected phase %s, got %s", PhaseBiddingRound2, g.phase)
	}
	if g.current != 1 {
		t.Errorf("Expected seat 1 to open round two, got %d", g.current)
	}

	view := g.SnapshotFor(1)
	st := view.Game.(wire.EuchreState)
	if st.BidRound != 2 {
		t.Errorf("Expected bid round 2 in snapshot, got %d", st.BidRound)
	}
	if st.TurnedDown != string(g.turnUp.Suit()) {
		t.Errorf("Expected turned down suit %s, got %s", g.turnUp.Suit(), st.TurnedDown)
	}
	if st.TurnUp != nil {
		t.Error("Turn up card should be hidden in round two")
	}
}

func TestCannotCallTurnedDownSuit(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	for _, seat := range []int{1, 2, 3, 0} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}

	_, err := g.Apply(1, bid(BidCallSuit, string(g.turnUp.Suit()), false))
	if !games.IsValidation(err) {
		t.Fatalf("Expected validation error naming the turned down suit, got %v", err)
	}
}

func TestStickTheDealerForcesCall(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	for _, seat := range []int{1, 2, 3, 0} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}
	for _, seat := range []int{1, 2, 3} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}

	// The dealer may not throw the hand in under stick the dealer.
	_, err := g.Apply(0, bid(BidPass, "", false))
	if !games.IsValidation(err) {
		t.Fatalf("Expected validation error for dealer pass, got %v", err)
	}

	suit := cards.Hearts
	if g.turnUp.Suit() == cards.Hearts {
		suit = cards.Spades
	}
	mustApply(t, g, 0, bid(BidCallSuit, string(suit), false))
	if g.phase != PhasePlaying {
		t.Errorf("Expected play to start, got phase %s", g.phase)
	}
	if g.trump != suit {
		t.Errorf("Expected trump %s, got %s", suit, g.trump)
	}
}

func TestThrowInRedealsWithoutStickTheDealer(t *testing.T) {
	g := newTestGame(42)
	g.settings.StickTheDealer = false
	g.Deal(0)

	for _, seat := range []int{1, 2, 3, 0} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}
	for _, seat := range []int{1, 2, 3, 0} {
		mustApply(t, g, seat, bid(BidPass, "", false))
	}

	if g.phase != PhaseBiddingRound1 {
		t.Fatalf("Expected a fresh deal, got phase %s", g.phase)
	}
	if g.dealer != 1 {
		t.Errorf("Expected deal to pass to seat 1, got %d", g.dealer)
	}
	if g.handNum != 2 {
		t.Errorf("Expected hand number 2, got %d", g.handNum)
	}
	if g.current != 2 {
		t.Errorf("Expected seat 2 to open bidding, got %d", g.current)
	}
}

// setHands replaces all hands for scripted trick tests and jumps straight to
// the playing phase.
func setHands(g *game, trump cards.Suit, leader int, hands [4][]string) {
	for seat, ids := range hands {
		g.hands[seat] = g.hands[seat][:0]
		for _, id := range ids {
			c, err := cards.ParseID(id)
			if err != nil {
				panic(err)
			}
			g.hands[seat] = append(g.hands[seat], c)
		}
	}
	g.trump = trump
	g.maker = leader
	g.alone = false
	g.skipped = -1
	g.phase = PhasePlaying
	g.trickLeader = leader
	g.current = leader
	g.trick = nil
	g.ledSuit = ""
	g.tricksWon = [4]int{}
}

func TestLeftBowerCountsAsTrump(t *testing.T) {
	g := newTestGame(1)
	g.Deal(0)
	setHands(g, cards.Spades, 0, [4][]string{
		{"JC"}, // left bower, effectively a spade
		{"9S"},
		{"AH"},
		{"KS"},
	})

	mustApply(t, g, 0, play("JC"))
	if g.ledSuit != cards.Spades {
		t.Fatalf("Expected left bower to lead spades, got %s", g.ledSuit)
	}

	mustApply(t, g, 1, play("9S"))
	mustApply(t, g, 2, play("AH")) // void in spades
	mustApply(t, g, 3, play("KS"))

	if g.tricksWon[0] != 1 {
		t.Errorf("Expected the left bower to take the trick, tricks: %v", g.tricksWon)
	}
}

func TestRightBowerBeatsLeftBower(t *testing.T) {
	g := newTestGame(1)
	g.Deal(0)
	setHands(g, cards.Hearts, 0, [4][]string{
		{"JD"}, // left bower
		{"JH"}, // right bower
		{"AH"},
		{"9H"},
	})

	mustApply(t, g, 0, play("JD"))
	mustApply(t, g, 1, play("JH"))
	mustApply(t, g, 2, play("AH"))
	mustApply(t, g, 3, play("9H"))

	if g.tricksWon[1] != 1 {
		t.Errorf("Expected right bower to win, tricks: %v", g.tricksWon)
	}
}

func TestMustFollowSuit(t *testing.T) {
	g := newTestGame(1)
	g.Deal(0)
	setHands(g, cards.Spades, 0, [4][]string{
		{"AD"},
		{"KD", "AC"},
		{"QD"},
		{"TD"},
	})

	mustApply(t, g, 0, play("AD"))

	if _, err := g.Apply(1, play("AC")); !games.IsValidation(err) {
		t.Fatalf("Expected follow suit violation, got %v", err)
	}

	legal := g.ValidCards(1)
	if len(legal) != 1 || legal[0].ID() != "KD" {
		t.Errorf("Expected only KD to be legal, got %v", cards.IDs(legal))
	}
}

func TestGoingAloneSkipsPartner(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	// Seat 1 orders up alone; seat 3 is sidelined.
	mustApply(t, g, 1, bid(BidOrderUp, "", true))
	if g.skipped != 3 {
		t.Fatalf("Expected seat 3 sidelined, got %d", g.skipped)
	}
	mustApply(t, g, 0, discard(g.hands[0][0].ID()))

	if g.playersInTrick() != 3 {
		t.Errorf("Expected 3 players per trick, got %d", g.playersInTrick())
	}

	// Play one full trick with seats 1, 2 and 0 only.
	for i := 0; i < 3; i++ {
		seat := g.current
		if seat == 3 {
			t.Fatal("Sidelined seat was given the turn")
		}
		mustApply(t, g, seat, play(g.ValidCards(seat)[0].ID()))
	}
	if g.trickCount() != 1 {
		t.Errorf("Expected one completed trick, got %d", g.trickCount())
	}
}

func TestHandScoring(t *testing.T) {
	tests := []struct {
		name        string
		maker       int
		alone       bool
		makerTricks int
		wantTeam    int
		wantPoints  int
	}{
		{"made it", 0, false, 3, 0, 1},
		{"all five", 0, false, 5, 0, 2},
		{"alone march", 0, true, 5, 0, 4},
		{"euchred", 0, false, 2, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(1)
			g.Deal(0)
			g.maker = tt.maker
			g.alone = tt.alone
			g.tricksWon = [4]int{tt.makerTricks, 5 - tt.makerTricks, 0, 0}

			stateHandScore(g)

			if g.teamScores[tt.wantTeam] != tt.wantPoints {
				t.Errorf("Expected team %d at %d points, got %v",
					tt.wantTeam, tt.wantPoints, g.teamScores)
			}
		})
	}
}

func TestGameOverAtTargetScore(t *testing.T) {
	g := newTestGame(1)
	g.Deal(0)
	g.teamScores = [2]int{9, 7}
	g.maker = 0
	g.tricksWon = [4]int{3, 1, 1, 0}

	g.machine.Set(stateHandScore)
	g.machine.Run(8)

	if !g.over {
		t.Fatal("Expected the game to end at 10 points")
	}
	if g.teamScores[0] != 10 {
		t.Errorf("Expected team 0 at 10, got %d", g.teamScores[0])
	}
	winners := g.Winners()
	if len(winners) != 2 || winners[0] != 0 || winners[1] != 2 {
		t.Errorf("Expected seats 0 and 2 to win, got %v", winners)
	}
	if g.phase != PhaseGameOver {
		t.Errorf("Expected phase %s, got %s", PhaseGameOver, g.phase)
	}
}

func TestNotYourTurn(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	_, err := g.Apply(2, bid(BidPass, "", false))
	if err != games.ErrNotYourTurn {
		t.Fatalf("Expected ErrNotYourTurn, got %v", err)
	}
}

func TestSnapshotHidesOtherHands(t *testing.T) {
	g := newTestGame(42)
	g.Deal(0)

	view := g.SnapshotFor(2)
	if len(view.Hand) != 5 {
		t.Errorf("Expected own hand in view, got %d cards", len(view.Hand))
	}
	for seat, n := range view.HandCounts {
		if n != 5 {
			t.Errorf("Seat %d: expected count 5, got %d", seat, n)
		}
	}

	public := g.SnapshotFor(-1)
	if len(public.Hand) != 0 {
		t.Errorf("Public view must not include a hand, got %d cards", len(public.Hand))
	}
}

func TestAIPlaysCompleteGame(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		g := newTestGame(seed)
		g.Deal(int(seed % 4))

		for turns := 0; !g.GameOver(); turns++ {
			if turns > 5000 {
				t.Fatalf("seed %d: game did not finish", seed)
			}
			seat := g.CurrentSeat()
			action, ok := g.AIAction(seat)
			if !ok {
				t.Fatalf("seed %d: AI had no action in phase %s", seed, g.Phase())
			}
			if _, err := g.Apply(seat, action); err != nil {
				t.Fatalf("seed %d: AI played an illegal action: %v", seed, err)
			}
		}

		winners := g.Winners()
		if len(winners) != 2 {
			t.Errorf("seed %d: expected two winning seats, got %v", seed, winners)
		}
		if g.Summary() == "" {
			t.Errorf("seed %d: expected a result summary", seed)
		}
	}
}

func TestEasyAIPlaysCompleteGame(t *testing.T) {
	g := newTestGame(9)
	g.settings.Difficulty = games.DifficultyEasy
	g.Deal(0)

	for turns := 0; !g.GameOver(); turns++ {
		if turns > 5000 {
			t.Fatal("easy game did not finish")
		}
		seat := g.CurrentSeat()
		action, ok := g.AIAction(seat)
		if !ok {
			t.Fatalf("AI had no action in phase %s", g.Phase())
		}
		if _, err := g.Apply(seat, action); err != nil {
			t.Fatalf("easy AI played an illegal action: %v", err)
		}
	}
}

func TestHintsFollowSuit(t *testing.T) {
	hand, err := cards.FromIDs([]string{"KD", "AC", "9S"})
	if err != nil {
		t.Fatal(err)
	}
	trick := []wire.SeatCard{{Seat: 0, Card: cards.New(cards.Diamonds, cards.Ace)}}

	gs := &wire.GameState{
		Kind:        "euchre",
		Phase:       PhasePlaying,
		CurrentSeat: 1,
		YourSeat:    1,
		Hand:        hand,
		Game: games.EncodePayload(wire.EuchreState{
			Trump:   string(cards.Spades),
			LedSuit: string(cards.Diamonds),
			Trick:   trick,
		}),
	}

	yt := Hints(gs)
	if yt == nil {
		t.Fatal("Expected a fallback prompt")
	}
	if len(yt.ValidActions) != 1 || yt.ValidActions[0] != string(wire.MsgPlayCard) {
		t.Fatalf("Expected play_card hint, got %v", yt.ValidActions)
	}
	if len(yt.ValidCards) != 1 || yt.ValidCards[0] != "KD" {
		t.Errorf("Expected only KD playable, got %v", yt.ValidCards)
	}
}

func TestHintsNotYourTurn(t *testing.T) {
	gs := &wire.GameState{
		Kind:        "euchre",
		Phase:       PhasePlaying,
		CurrentSeat: 2,
		YourSeat:    1,
	}
	if yt := Hints(gs); yt != nil {
		t.Errorf("Expected no hints off turn, got %v", yt)
	}
}
