// Package president implements the president rule module: four to eight
// seats, the full deck dealt out, climbing sets of equal rank, a card
// exchange between president and scum, and points by finishing order.
package president

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/statemachine"
	"github.com/cardroom/cardroom/pkg/wire"
	"github.com/decred/slog"
)

// Game phases.
const (
	PhaseExchange = "exchange"
	PhasePlaying  = "playing"
	PhaseGameOver = "game_over"
)

// Titles assigned by finishing order.
const (
	TitlePresident     = "president"
	TitleVicePresident = "vice_president"
	TitleCitizen       = "citizen"
	TitleViceScum      = "vice_scum"
	TitleScum          = "scum"
)

func init() {
	games.Register(games.President, func(cfg games.Config) (games.Module, error) {
		return newGame(cfg), nil
	})
}

// game holds one president game. Not safe for concurrent use; the room
// runtime serializes all access.
type game struct {
	log      slog.Logger
	rng      *rand.Rand
	settings games.Settings
	seats    int

	phase   string
	dealer  int
	current int
	handNum int

	hands    [][]cards.Card
	lastPlay *wire.PlaySet
	pileSize int
	passed   []bool
	finished []int

	titles []string
	points []int

	// exchange bookkeeping, valid while phase == PhaseExchange
	president int
	scum      int
	scumGave  bool

	over    bool
	winners []int
	summary string

	machine *statemachine.StateMachine[game]
	events  []games.Event
}

func newGame(cfg games.Config) *game {
	g := &game{
		log:      cfg.Log,
		rng:      cfg.Rng,
		settings: cfg.Settings,
		seats:    cfg.Seats,
		hands:    make([][]cards.Card, cfg.Seats),
		passed:   make([]bool, cfg.Seats),
		titles:   make([]string, cfg.Seats),
		points:   make([]int, cfg.Seats),
	}
	g.machine = statemachine.New(g, nil)
	return g
}

func (g *game) Kind() games.Kind { return games.President }
func (g *game) SeatCount() int   { return g.seats }
func (g *game) CurrentSeat() int { return g.current }
func (g *game) Dealer() int      { return g.dealer }
func (g *game) Phase() string    { return g.phase }
func (g *game) GameOver() bool   { return g.over }
func (g *game) Winners() []int   { return g.winners }
func (g *game) Summary() string  { return g.summary }

func (g *game) emit(typ wire.Type, payload any) {
	g.events = append(g.events, games.Event{Type: typ, Payload: payload})
}

func (g *game) drain() []games.Event {
	evs := g.events
	g.events = nil
	return evs
}

// Deal starts the first hand with the given dealer.
func (g *game) Deal(dealer int) []games.Event {
	g.dealer = dealer
	g.machine.Set(stateDeal)
	g.machine.Run(8)
	return g.drain()
}

// ---------- state machine ----------

// stateDeal distributes the whole deck and opens either the exchange (hands
// after the first) or play led by the holder of the three of clubs.
func stateDeal(g *game) statemachine.StateFn[game] {
	g.handNum++
	deck := cards.NewDeck(g.rng)
	dealt := deck.DealAll(g.seats, (g.dealer+1)%g.seats)
	for seat, hand := range dealt {
		sortByOrder(hand)
		g.hands[seat] = hand
	}

	prevFinish := g.finished
	g.lastPlay = nil
	g.pileSize = 0
	g.finished = nil
	for i := range g.passed {
		g.passed[i] = false
	}

	if g.handNum == 1 {
		g.phase = PhasePlaying
		g.current = g.holderOf(cards.New(cards.Clubs, cards.Three))
		g.log.Debugf("hand 1 dealt, seat %d holds 3%s and leads", g.current, cards.Clubs)
		return stateAwaitAction
	}

	g.president = prevFinish[0]
	g.scum = prevFinish[len(prevFinish)-1]
	g.scumGave = false
	g.phase = PhaseExchange
	g.current = g.scum
	g.log.Debugf("hand %d dealt, exchange: scum seat %d, president seat %d",
		g.handNum, g.scum, g.president)
	return stateAwaitAction
}

func stateAwaitAction(g *game) statemachine.StateFn[game] {
	return stateAwaitAction
}

// stateHandScore awards points by finishing order, assigns titles and either
// ends the game or deals the next hand.
func stateHandScore(g *game) statemachine.StateFn[game] {
	for i := range g.titles {
		g.titles[i] = TitleCitizen
	}
	last := len(g.finished) - 1
	g.titles[g.finished[0]] = TitlePresident
	g.titles[g.finished[1]] = TitleVicePresident
	g.titles[g.finished[last-1]] = TitleViceScum
	g.titles[g.finished[last]] = TitleScum

	g.points[g.finished[0]] += 2
	g.points[g.finished[1]] += 1

	g.emit(wire.MsgHandScored, wire.HandScored{
		Scores:  append([]int(nil), g.points...),
		Summary: fmt.Sprintf("seat %d is president", g.finished[0]),
	})
	g.log.Debugf("hand %d finished: order %v, points %v", g.handNum, g.finished, g.points)

	best, bestSeat := -1, -1
	for seat, pts := range g.points {
		if pts > best {
			best, bestSeat = pts, seat
		}
	}
	if best >= g.settings.TargetScore {
		for seat, pts := range g.points {
			if pts == best {
				g.winners = append(g.winners, seat)
			}
		}
		g.summary = fmt.Sprintf("seat %d wins with %d points", bestSeat, best)
		return stateGameOver
	}

	g.dealer = (g.dealer + 1) % g.seats
	return stateDeal
}

func stateGameOver(g *game) statemachine.StateFn[game] {
	g.over = true
	g.phase = PhaseGameOver
	g.current = -1
	return nil
}

// ---------- actions ----------

// Apply validates and applies one action for seat.
func (g *game) Apply(seat int, action games.Action) ([]games.Event, error) {
	if g.over {
		return nil, games.Invalidf("game is over")
	}
	if seat != g.current {
		return nil, games.ErrNotYourTurn
	}

	var err error
	switch action.Type {
	case wire.MsgPlayCards:
		err = g.applyPlay(seat, action)
	case wire.MsgPass:
		err = g.applyPass(seat)
	case wire.MsgGiveCards:
		err = g.applyGive(seat, action)
	default:
		err = games.Invalidf("president does not accept %s", action.Type)
	}
	if err != nil {
		g.events = nil
		return nil, err
	}

	g.machine.Run(8)
	return g.drain(), nil
}

func (g *game) applyPlay(seat int, action games.Action) error {
	if g.phase != PhasePlaying {
		return games.Invalidf("no card play in phase %s", g.phase)
	}
	var pc wire.PlayCards
	if err := action.DecodePayload(&pc); err != nil {
		return err
	}
	set, err := g.takeSet(seat, pc.CardIDs)
	if err != nil {
		return err
	}
	if g.lastPlay != nil {
		if len(set) != len(g.lastPlay.Cards) {
			return games.Invalidf("play %d cards to match the pile", len(g.lastPlay.Cards))
		}
		if order(set[0].Rank()) <= order(g.lastPlay.Cards[0].Rank()) {
			return games.Invalidf("%s does not beat %s", set[0].Rank(), g.lastPlay.Cards[0].Rank())
		}
	}

	g.hands[seat], _ = cards.RemoveAll(g.hands[seat], set)
	g.lastPlay = &wire.PlaySet{Seat: seat, Cards: set}
	g.pileSize += len(set)
	for i := range g.passed {
		g.passed[i] = false
	}
	g.emit(wire.MsgPlayMade, wire.PlayMade{Seat: seat, Cards: set})

	if len(g.hands[seat]) == 0 {
		g.finished = append(g.finished, seat)
		g.emit(wire.MsgPlayerFinished, wire.PlayerFinished{
			Seat: seat, Place: len(g.finished),
		})
		g.log.Debugf("seat %d finished in place %d", seat, len(g.finished))

		if len(g.finished) == g.seats-1 {
			// Last player standing is scum; the hand is over.
			g.finished = append(g.finished, g.soleRemaining())
			g.machine.Set(stateHandScore)
			return nil
		}
	}

	g.advanceTurn(seat)
	return nil
}

// takeSet resolves the played ids against the hand and checks they form a
// set of one rank.
func (g *game) takeSet(seat int, ids []string) ([]cards.Card, error) {
	if len(ids) == 0 {
		return nil, games.Invalidf("play at least one card")
	}
	set, err := cards.FromIDs(ids)
	if err != nil {
		return nil, games.Invalidf("bad card id: %v", err)
	}
	seen := make(map[cards.Card]bool, len(set))
	for _, c := range set {
		if seen[c] {
			return nil, games.Invalidf("duplicate card %s", c)
		}
		seen[c] = true
		if !cards.Contains(g.hands[seat], c) {
			return nil, games.Invalidf("you do not hold %s", c)
		}
		if c.Rank() != set[0].Rank() {
			return nil, games.Invalidf("all cards must share one rank")
		}
	}
	return set, nil
}

func (g *game) applyPass(seat int) error {
	if g.phase != PhasePlaying {
		return games.Invalidf("no passing in phase %s", g.phase)
	}
	if g.lastPlay == nil {
		return games.Invalidf("the leader must play")
	}
	g.passed[seat] = true
	g.advanceTurn(seat)
	return nil
}

func (g *game) applyGive(seat int, action games.Action) error {
	if g.phase != PhaseExchange {
		return games.Invalidf("no exchange in phase %s", g.phase)
	}
	var gc wire.GiveCards
	if err := action.DecodePayload(&gc); err != nil {
		return err
	}
	want := g.exchangeGives()
	if len(gc.CardIDs) != want {
		return games.Invalidf("give exactly %d cards", want)
	}
	give, err := cards.FromIDs(gc.CardIDs)
	if err != nil {
		return games.Invalidf("bad card id: %v", err)
	}
	for _, c := range give {
		if !cards.Contains(g.hands[seat], c) {
			return games.Invalidf("you do not hold %s", c)
		}
	}

	if !g.scumGave {
		// Scum owes its best cards, no holding back.
		best := bestCards(g.hands[g.scum], want)
		if !sameRanks(give, best) {
			return games.Invalidf("scum must give its highest cards")
		}
		g.transfer(g.scum, g.president, give)
		g.scumGave = true
		g.current = g.president
		g.emit(wire.MsgCardsExchanged, wire.CardsExchanged{
			From: g.scum, To: g.president, Count: want,
		})
		return nil
	}

	// President returns any cards of its choosing.
	g.transfer(g.president, g.scum, give)
	g.emit(wire.MsgCardsExchanged, wire.CardsExchanged{
		From: g.president, To: g.scum, Count: want,
	})
	g.phase = PhasePlaying
	g.current = g.scum
	g.log.Debugf("exchange complete, scum seat %d leads", g.scum)
	return nil
}

func (g *game) transfer(from, to int, set []cards.Card) {
	g.hands[from], _ = cards.RemoveAll(g.hands[from], set)
	g.hands[to] = append(g.hands[to], set...)
	sortByOrder(g.hands[to])
}

// ---------- turn order ----------

// advanceTurn hands the turn to the next live seat. When it would come back
// around to the owner of the pile, the pile clears and they lead; when the
// owner already finished, the lead falls to the next live seat after them.
func (g *game) advanceTurn(from int) {
	for i := 1; i <= g.seats; i++ {
		seat := (from + i) % g.seats
		if g.lastPlay != nil && seat == g.lastPlay.Seat && !g.isFinished(seat) {
			g.clearPile(seat)
			return
		}
		if g.isFinished(seat) || g.passed[seat] {
			continue
		}
		g.current = seat
		return
	}
	g.clearPile(g.nextLive(g.lastPlay.Seat))
}

func (g *game) clearPile(leader int) {
	g.lastPlay = nil
	g.pileSize = 0
	for i := range g.passed {
		g.passed[i] = false
	}
	g.current = leader
	g.emit(wire.MsgPileCleared, wire.PileCleared{Leader: leader})
}

func (g *game) isFinished(seat int) bool {
	for _, s := range g.finished {
		if s == seat {
			return true
		}
	}
	return false
}

func (g *game) nextLive(from int) int {
	for i := 1; i <= g.seats; i++ {
		seat := (from + i) % g.seats
		if !g.isFinished(seat) {
			return seat
		}
	}
	return from
}

func (g *game) soleRemaining() int {
	for seat := 0; seat < g.seats; seat++ {
		if !g.isFinished(seat) {
			return seat
		}
	}
	return -1
}

func (g *game) holderOf(card cards.Card) int {
	for seat, hand := range g.hands {
		if cards.Contains(hand, card) {
			return seat
		}
	}
	return 0
}

func (g *game) exchangeGives() int {
	if g.settings.ExchangeCount > 0 {
		return g.settings.ExchangeCount
	}
	return 1
}

// ---------- rank order ----------

// order maps ranks to the president climbing order where twos beat aces.
func order(r cards.Rank) int {
	if r == cards.Two {
		return 15
	}
	return r.Index()
}

func sortByOrder(hand []cards.Card) {
	sort.Slice(hand, func(i, j int) bool {
		oi, oj := order(hand[i].Rank()), order(hand[j].Rank())
		if oi != oj {
			return oi < oj
		}
		return hand[i].Suit() < hand[j].Suit()
	})
}

// bestCards returns the n highest cards by climbing order.
func bestCards(hand []cards.Card, n int) []cards.Card {
	sorted := cards.Clone(hand)
	sortByOrder(sorted)
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[len(sorted)-n:]
}

func sameRanks(a, b []cards.Card) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[cards.Rank]int, len(a))
	for _, c := range a {
		counts[c.Rank()]++
	}
	for _, c := range b {
		counts[c.Rank()]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// ---------- prompts and views ----------

func (g *game) ValidActions(seat int) []string {
	if g.over || seat != g.current {
		return nil
	}
	switch g.phase {
	case PhaseExchange:
		return []string{string(wire.MsgGiveCards)}
	case PhasePlaying:
		if g.lastPlay == nil {
			return []string{string(wire.MsgPlayCards)}
		}
		return []string{string(wire.MsgPlayCards), string(wire.MsgPass)}
	}
	return nil
}

func (g *game) ValidCards(seat int) []cards.Card {
	if g.over || seat != g.current || g.phase != PhaseExchange {
		return nil
	}
	if !g.scumGave {
		return bestCards(g.hands[seat], g.exchangeGives())
	}
	return cards.Clone(g.hands[seat])
}

func (g *game) ValidPlays(seat int) [][]cards.Card {
	if g.over || seat != g.current || g.phase != PhasePlaying {
		return nil
	}
	return legalSets(g.hands[seat], g.lastPlay)
}

// legalSets lists one playable set per rank: the full group when leading, or
// the needed number of cards from each rank that beats the pile. Shared with
// the client side fallback hints.
func legalSets(hand []cards.Card, last *wire.PlaySet) [][]cards.Card {
	byRank := make(map[cards.Rank][]cards.Card)
	var ranks []cards.Rank
	for _, c := range hand {
		if _, ok := byRank[c.Rank()]; !ok {
			ranks = append(ranks, c.Rank())
		}
		byRank[c.Rank()] = append(byRank[c.Rank()], c)
	}
	sort.Slice(ranks, func(i, j int) bool { return order(ranks[i]) < order(ranks[j]) })

	var sets [][]cards.Card
	for _, r := range ranks {
		group := byRank[r]
		if last == nil {
			sets = append(sets, group)
			continue
		}
		need := len(last.Cards)
		if len(group) >= need && order(r) > order(last.Cards[0].Rank()) {
			sets = append(sets, group[:need])
		}
	}
	return sets
}

// SnapshotFor builds the filtered view for one seat.
func (g *game) SnapshotFor(seat int) games.View {
	counts := make([]int, g.seats)
	for i := range g.hands {
		counts[i] = len(g.hands[i])
	}

	st := wire.PresidentState{
		PileSize:      g.pileSize,
		FinishedOrder: append([]int(nil), g.finished...),
		Titles:        append([]string(nil), g.titles...),
		Points:        append([]int(nil), g.points...),
		HandNumber:    g.handNum,
	}
	if g.lastPlay != nil {
		lp := *g.lastPlay
		lp.Cards = cards.Clone(g.lastPlay.Cards)
		st.LastPlay = &lp
	}
	if g.phase == PhaseExchange {
		st.ExchangeGives = g.exchangeGives()
	}

	view := games.View{
		Phase:       g.phase,
		CurrentSeat: g.current,
		Dealer:      g.dealer,
		GameOver:    g.over,
		HandCounts:  counts,
		Game:        st,
	}
	if seat >= 0 && seat < g.seats {
		view.Hand = cards.Clone(g.hands[seat])
	}
	return view
}
