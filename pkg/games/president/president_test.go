package president

import (
	"math/rand"
	"testing"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
	"github.com/decred/slog"
)

func newTestGame(seed int64, seats int) *game {
	settings := games.DefaultSettings(games.President)
	if seats >= 6 {
		settings.ExchangeCount = 2
	}
	return newGame(games.Config{
		Seats:    seats,
		Settings: settings,
		Rng:      rand.New(rand.NewSource(seed)),
		Log:      slog.Disabled,
	})
}

func playCards(ids ...string) games.Action {
	return games.Action{
		Type:    wire.MsgPlayCards,
		Payload: games.EncodePayload(wire.PlayCards{CardIDs: ids}),
	}
}

func pass() games.Action {
	return games.Action{Type: wire.MsgPass}
}

func giveCards(ids ...string) games.Action {
	return games.Action{
		Type:    wire.MsgGiveCards,
		Payload: games.EncodePayload(wire.GiveCards{CardIDs: ids}),
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

// setHands replaces all hands for scripted tests and puts the game in the
// playing phase with a fresh pile.
func setHands(g *game, leader int, hands ...[]string) {
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
	g.phase = PhasePlaying
	g.current = leader
	g.lastPlay = nil
	g.pileSize = 0
	g.finished = nil
	for i := range g.passed {
		g.passed[i] = false
	}
}

func TestDealFirstHand(t *testing.T) {
	g := newTestGame(42, 4)
	g.Deal(0)

	if g.phase != PhasePlaying {
		t.Fatalf("Expected phase %s on the first hand, got %s", PhasePlaying, g.phase)
	}
	for seat := 0; seat < 4; seat++ {
		if len(g.hands[seat]) != 13 {
			t.Errorf("Seat %d: expected 13 cards, got %d", seat, len(g.hands[seat]))
		}
	}

	threeClubs := cards.New(cards.Clubs, cards.Three)
	if !cards.Contains(g.hands[g.current], threeClubs) {
		t.Errorf("Expected the 3%s holder to lead, seat %d does not hold it",
			cards.Clubs, g.current)
	}
}

func TestUnevenDealAcrossFiveSeats(t *testing.T) {
	g := newTestGame(7, 5)
	g.Deal(0)

	total := 0
	for seat := 0; seat < 5; seat++ {
		n := len(g.hands[seat])
		total += n
		if n < 10 || n > 11 {
			t.Errorf("Seat %d: expected 10 or 11 cards, got %d", seat, n)
		}
	}
	if total != 52 {
		t.Errorf("Expected all 52 cards dealt, got %d", total)
	}
}

func TestClimbingPlays(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"3C", "3D", "9H"},
		[]string{"5C", "5D", "KH"},
		[]string{"7C", "7D", "QH"},
		[]string{"2C", "4D", "JH"},
	)

	mustApply(t, g, 0, playCards("3C", "3D"))

	// Matching count, higher rank.
	mustApply(t, g, 1, playCards("5C", "5D"))

	// Wrong count.
	if _, err := g.Apply(2, playCards("7C")); !games.IsValidation(err) {
		t.Fatalf("Expected count mismatch rejection, got %v", err)
	}
	// Mixed ranks.
	if _, err := g.Apply(2, playCards("7C", "QH")); !games.IsValidation(err) {
		t.Fatalf("Expected mixed rank rejection, got %v", err)
	}
	mustApply(t, g, 2, playCards("7C", "7D"))

	// Lower rank.
	if _, err := g.Apply(3, playCards("2C", "4D")); !games.IsValidation(err) {
		t.Fatalf("Expected mixed rank rejection, got %v", err)
	}
	mustApply(t, g, 3, pass())

	if g.current != 0 {
		t.Errorf("Expected the turn to continue to seat 0, got %d", g.current)
	}
	if g.lastPlay == nil || g.lastPlay.Seat != 2 {
		t.Errorf("Expected the sevens to still top the pile, got %+v", g.lastPlay)
	}
}

func TestTwoBeatsAce(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"AC", "9H"},
		[]string{"2D", "4H"},
		[]string{"5C", "6C"},
		[]string{"7C", "8C"},
	)

	mustApply(t, g, 0, playCards("AC"))
	mustApply(t, g, 1, playCards("2D"))

	if g.lastPlay == nil || g.lastPlay.Seat != 1 {
		t.Fatalf("Expected the two to take the pile top, lastPlay %+v", g.lastPlay)
	}
}

func TestLeaderMustPlay(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"3C"},
		[]string{"5C"},
		[]string{"7C"},
		[]string{"9C"},
	)

	if _, err := g.Apply(0, pass()); !games.IsValidation(err) {
		t.Fatalf("Expected pass rejection for the leader, got %v", err)
	}
}

func TestPileClearsWhenAllPass(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"KC", "3H"},
		[]string{"5C", "5H"},
		[]string{"7C", "7H"},
		[]string{"9C", "9H"},
	)

	mustApply(t, g, 0, playCards("KC"))
	mustApply(t, g, 1, pass())
	mustApply(t, g, 2, pass())
	evs := mustApply(t, g, 3, pass())

	var cleared *wire.PileCleared
	for _, ev := range evs {
		if ev.Type == wire.MsgPileCleared {
			pc := ev.Payload.(wire.PileCleared)
			cleared = &pc
		}
	}
	if cleared == nil {
		t.Fatal("Expected a pile_cleared event")
	}
	if cleared.Leader != 0 {
		t.Errorf("Expected seat 0 to lead the fresh pile, got %d", cleared.Leader)
	}
	if g.lastPlay != nil || g.pileSize != 0 {
		t.Errorf("Expected an empty pile, lastPlay %+v size %d", g.lastPlay, g.pileSize)
	}
	if g.current != 0 {
		t.Errorf("Expected seat 0 on turn, got %d", g.current)
	}
	if g.passed[1] || g.passed[2] || g.passed[3] {
		t.Error("Expected pass flags reset after the pile cleared")
	}
}

func TestLeadFallsToNextLiveSeatWhenOwnerFinished(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"KC"},
		[]string{"5C", "5H"},
		[]string{"7C", "7H"},
		[]string{"9C", "9H"},
	)

	// Seat 0 goes out on its own lead; everyone passes on it.
	mustApply(t, g, 0, playCards("KC"))
	mustApply(t, g, 1, pass())
	mustApply(t, g, 2, pass())
	evs := mustApply(t, g, 3, pass())

	var cleared *wire.PileCleared
	for _, ev := range evs {
		if ev.Type == wire.MsgPileCleared {
			pc := ev.Payload.(wire.PileCleared)
			cleared = &pc
		}
	}
	if cleared == nil {
		t.Fatal("Expected a pile_cleared event")
	}
	if cleared.Leader != 1 {
		t.Errorf("Expected the lead to fall to seat 1, got %d", cleared.Leader)
	}
}

func TestHandEndAssignsTitlesAndPoints(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	setHands(g, 0,
		[]string{"3C"},
		[]string{"4C", "5C"},
		[]string{"6C"},
		[]string{"7C", "8C"},
	)

	mustApply(t, g, 0, playCards("3C")) // seat 0 out, place 1
	mustApply(t, g, 1, playCards("4C"))
	mustApply(t, g, 2, playCards("6C")) // seat 2 out, place 2
	mustApply(t, g, 3, playCards("8C"))
	mustApply(t, g, 1, pass())
	// Pile clears back to seat 3, which plays its last card: hand over,
	// seat 1 is scum.
	evs := mustApply(t, g, 3, playCards("7C"))

	var scored bool
	for _, ev := range evs {
		if ev.Type == wire.MsgHandScored {
			scored = true
		}
	}
	if !scored {
		t.Fatal("Expected a hand_scored event")
	}

	if g.titles[0] != TitlePresident {
		t.Errorf("Expected seat 0 president, got %q", g.titles[0])
	}
	if g.titles[2] != TitleVicePresident {
		t.Errorf("Expected seat 2 vice president, got %q", g.titles[2])
	}
	if g.titles[3] != TitleViceScum {
		t.Errorf("Expected seat 3 vice scum, got %q", g.titles[3])
	}
	if g.titles[1] != TitleScum {
		t.Errorf("Expected seat 1 scum, got %q", g.titles[1])
	}
	if g.points[0] != 2 || g.points[2] != 1 {
		t.Errorf("Expected points 2/1 for the top two, got %v", g.points)
	}

	// The next hand opens with the exchange.
	if g.phase != PhaseExchange {
		t.Fatalf("Expected phase %s, got %s", PhaseExchange, g.phase)
	}
	if g.current != 1 {
		t.Errorf("Expected scum (seat 1) to give first, got seat %d", g.current)
	}
	if g.handNum != 2 {
		t.Errorf("Expected hand 2, got %d", g.handNum)
	}
}

// playOutHand drives a scripted first hand so that seat 0 finishes first and
// seat 1 last, leaving the game in the exchange of hand two.
func playOutHand(t *testing.T, g *game) {
	t.Helper()
	setHands(g, 0,
		[]string{"3C"},
		[]string{"4C", "5C"},
		[]string{"6C"},
		[]string{"7C", "8C"},
	)
	mustApply(t, g, 0, playCards("3C"))
	mustApply(t, g, 1, playCards("4C"))
	mustApply(t, g, 2, playCards("6C"))
	mustApply(t, g, 3, playCards("8C"))
	mustApply(t, g, 1, pass())
	mustApply(t, g, 3, playCards("7C"))
}

func TestExchangeScumMustGiveBest(t *testing.T) {
	g := newTestGame(3, 4)
	g.Deal(0)
	playOutHand(t, g)

	scum, president := 1, 0
	if g.current != scum {
		t.Fatalf("Expected scum on turn, got seat %d", g.current)
	}

	best := bestCards(g.hands[scum], 1)
	var lower cards.Card
	for _, c := range g.hands[scum] {
		if order(c.Rank()) < order(best[0].Rank()) {
			lower = c
			break
		}
	}
	if lower.IsZero() {
		t.Fatal("scum hand has a single rank, cannot exercise the hold back path")
	}

	if _, err := g.Apply(scum, giveCards(lower.ID())); !games.IsValidation(err) {
		t.Fatalf("Expected rejection of a held back card, got %v", err)
	}

	evs := mustApply(t, g, scum, giveCards(best[0].ID()))
	var exchanged bool
	for _, ev := range evs {
		if ev.Type == wire.MsgCardsExchanged {
			exchanged = true
		}
	}
	if !exchanged {
		t.Error("Expected a cards_exchanged event")
	}
	if g.current != president {
		t.Fatalf("Expected president on turn, got seat %d", g.current)
	}

	// The president may return anything.
	giveBack := g.hands[president][0]
	mustApply(t, g, president, giveCards(giveBack.ID()))

	if g.phase != PhasePlaying {
		t.Fatalf("Expected play to resume, got phase %s", g.phase)
	}
	if g.current != scum {
		t.Errorf("Expected scum to lead, got seat %d", g.current)
	}
	if len(g.hands[scum]) != 13 || len(g.hands[president]) != 13 {
		t.Errorf("Expected 13 cards each after the swap, got %d and %d",
			len(g.hands[scum]), len(g.hands[president]))
	}
}

func TestGameOverAtTargetScore(t *testing.T) {
	g := newTestGame(1, 4)
	g.Deal(0)
	g.points = []int{9, 4, 0, 0}
	g.finished = []int{0, 2, 3, 1}

	g.machine.Set(stateHandScore)
	g.machine.Run(8)

	if !g.over {
		t.Fatal("Expected the game to end at the target score")
	}
	winners := g.Winners()
	if len(winners) != 1 || winners[0] != 0 {
		t.Errorf("Expected seat 0 to win, got %v", winners)
	}
	if g.phase != PhaseGameOver {
		t.Errorf("Expected phase %s, got %s", PhaseGameOver, g.phase)
	}
}

func TestSnapshotHidesOtherHands(t *testing.T) {
	g := newTestGame(42, 4)
	g.Deal(0)

	view := g.SnapshotFor(1)
	if len(view.Hand) != 13 {
		t.Errorf("Expected own hand in view, got %d cards", len(view.Hand))
	}

	public := g.SnapshotFor(-1)
	if len(public.Hand) != 0 {
		t.Errorf("Public view must not include a hand, got %d cards", len(public.Hand))
	}

	st := view.Game.(wire.PresidentState)
	if st.HandNumber != 1 {
		t.Errorf("Expected hand 1 in snapshot, got %d", st.HandNumber)
	}
}

func TestAIPlaysCompleteGame(t *testing.T) {
	for _, seats := range []int{4, 6} {
		for seed := int64(0); seed < 3; seed++ {
			g := newTestGame(seed, seats)
			g.Deal(int(seed) % seats)

			for turns := 0; !g.GameOver(); turns++ {
				if turns > 20000 {
					t.Fatalf("%d seats seed %d: game did not finish", seats, seed)
				}
				seat := g.CurrentSeat()
				action, ok := g.AIAction(seat)
				if !ok {
					t.Fatalf("%d seats seed %d: AI had no action in phase %s",
						seats, seed, g.Phase())
				}
				if _, err := g.Apply(seat, action); err != nil {
					t.Fatalf("%d seats seed %d: AI played an illegal action: %v",
						seats, seed, err)
				}
			}

			if len(g.Winners()) == 0 {
				t.Errorf("%d seats seed %d: expected winners", seats, seed)
			}
		}
	}
}

func TestHintsFollowPile(t *testing.T) {
	hand, err := cards.FromIDs([]string{"5C", "5D", "9H", "2S"})
	if err != nil {
		t.Fatal(err)
	}
	last := &wire.PlaySet{Seat: 0, Cards: []cards.Card{
		cards.New(cards.Hearts, cards.Four),
		cards.New(cards.Spades, cards.Four),
	}}

	gs := &wire.GameState{
		Kind:        "president",
		Phase:       PhasePlaying,
		CurrentSeat: 1,
		YourSeat:    1,
		Hand:        hand,
		Game:        games.EncodePayload(wire.PresidentState{LastPlay: last, PileSize: 2}),
	}

	yt := Hints(gs)
	if yt == nil {
		t.Fatal("Expected a fallback prompt")
	}
	if len(yt.ValidActions) != 2 {
		t.Errorf("Expected play_cards and pass, got %v", yt.ValidActions)
	}
	// Only the pair of fives matches the pile; the lone two cannot.
	if len(yt.ValidPlays) != 1 || len(yt.ValidPlays[0]) != 2 {
		t.Fatalf("Expected one playable pair, got %v", yt.ValidPlays)
	}
}
