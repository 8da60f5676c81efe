// Package euchre implements the euchre rule module: four seats in fixed
// partnerships, a 24 card deck, two bidding rounds over a turned up card,
// going alone, bowers and trick play to a target score.
package euchre

import (
	"fmt"
	"math/rand"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/statemachine"
	"github.com/cardroom/cardroom/pkg/wire"
	"github.com/decred/slog"
)

// Game phases.
const (
	PhaseBiddingRound1 = "bidding_round1"
	PhaseDealerDiscard = "dealer_discard"
	PhaseBiddingRound2 = "bidding_round2"
	PhasePlaying       = "playing"
	PhaseGameOver      = "game_over"
)

// Bid actions accepted inside a make_bid payload.
const (
	BidOrderUp  = "order_up"
	BidCallSuit = "call_suit"
	BidPass     = "pass"
)

const handSize = 5

func init() {
	games.Register(games.Euchre, func(cfg games.Config) (games.Module, error) {
		return newGame(cfg), nil
	})
}

// game holds one euchre game. Not safe for concurrent use; the room runtime
// serializes all access.
type game struct {
	log      slog.Logger
	rng      *rand.Rand
	settings games.Settings

	phase   string
	dealer  int
	current int
	handNum int

	hands  [4][]cards.Card
	kitty  []cards.Card
	turnUp cards.Card

	bidRound int
	bids     []wire.EuchreBidRecord
	trump    cards.Suit
	maker    int
	alone    bool
	skipped  int

	trickLeader int
	ledSuit     cards.Suit
	trick       []wire.SeatCard
	tricksWon   [4]int
	teamScores  [2]int

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
		maker:    -1,
		skipped:  -1,
	}
	g.machine = statemachine.New(g, nil)
	return g
}

func (g *game) Kind() games.Kind { return games.Euchre }
func (g *game) SeatCount() int   { return 4 }
func (g *game) CurrentSeat() int { return g.current }
func (g *game) Dealer() int      { return g.dealer }
func (g *game) Phase() string    { return g.phase }
func (g *game) GameOver() bool   { return g.over }
func (g *game) Winners() []int   { return g.winners }
func (g *game) Summary() string  { return g.summary }

// emit queues a domain event for the runtime to broadcast.
func (g *game) emit(typ wire.Type, payload any) {
	g.events = append(g.events, games.Event{Type: typ, Payload: payload})
}

// drain returns and clears the queued events.
func (g *game) drain() []games.Event {
	evs := g.events
	g.events = nil
	return evs
}

// Deal starts the first hand with the given dealer.
func (g *game) Deal(dealer int) []games.Event {
	g.dealer = dealer
	g.machine.Set(stateDeal)
	g.machine.Run(16)
	return g.drain()
}

// ---------- state machine ----------

// stateDeal shuffles a fresh euchre deck, deals five cards around and turns
// one up for the first bidding round.
func stateDeal(g *game) statemachine.StateFn[game] {
	g.handNum++
	deck := cards.NewEuchreDeck(g.rng)
	for seat := 0; seat < 4; seat++ {
		hand := deck.DrawN(handSize)
		cards.Sort(hand)
		g.hands[seat] = hand
	}
	g.kitty = deck.Remaining()
	g.turnUp = g.kitty[0]
	g.kitty = g.kitty[1:]

	g.bidRound = 1
	g.bids = nil
	g.trump = ""
	g.maker = -1
	g.alone = false
	g.skipped = -1
	g.trick = nil
	g.ledSuit = ""
	g.tricksWon = [4]int{}

	g.phase = PhaseBiddingRound1
	g.current = (g.dealer + 1) % 4
	g.log.Debugf("hand %d dealt, dealer seat %d, turn up %s", g.handNum, g.dealer, g.turnUp)
	return stateAwaitAction
}

// stateAwaitAction is the stable state between player actions.
func stateAwaitAction(g *game) statemachine.StateFn[game] {
	return stateAwaitAction
}

// stateTrickDone awards the completed trick and decides what comes next.
func stateTrickDone(g *game) statemachine.StateFn[game] {
	winner := g.trickWinner()
	g.tricksWon[winner]++

	played := make([]cards.Card, len(g.trick))
	for i, sc := range g.trick {
		played[i] = sc.Card
	}
	g.emit(wire.MsgTrickComplete, wire.TrickComplete{Winner: winner, Cards: played})
	g.log.Debugf("trick %d won by seat %d", g.trickCount(), winner)

	g.trick = nil
	g.ledSuit = ""
	g.trickLeader = winner
	g.current = winner

	if g.trickCount() == handSize {
		return stateHandScore
	}
	return stateAwaitAction
}

// stateHandScore scores the finished hand and either ends the game or deals
// the next hand.
func stateHandScore(g *game) statemachine.StateFn[game] {
	makerTeam := g.maker % 2
	makerTricks := g.tricksWon[makerTeam] + g.tricksWon[makerTeam+2]

	var points, team int
	var what string
	switch {
	case makerTricks < 3:
		team = 1 - makerTeam
		points = 2
		what = "euchred"
	case makerTricks == handSize && g.alone:
		team = makerTeam
		points = 4
		what = "alone march"
	case makerTricks == handSize:
		team = makerTeam
		points = 2
		what = "march"
	default:
		team = makerTeam
		points = 1
		what = "made it"
	}
	g.teamScores[team] += points

	g.emit(wire.MsgHandScored, wire.HandScored{
		Scores:  []int{g.teamScores[0], g.teamScores[1]},
		Summary: fmt.Sprintf("team %d %s for %d", team, what, points),
	})
	g.log.Debugf("hand %d scored: team %d %s, %d-%d", g.handNum, team, what,
		g.teamScores[0], g.teamScores[1])

	if g.teamScores[team] >= g.settings.TargetScore {
		g.winners = []int{team, team + 2}
		g.summary = fmt.Sprintf("team %d wins %d to %d", team,
			g.teamScores[team], g.teamScores[1-team])
		return stateGameOver
	}

	g.dealer = (g.dealer + 1) % 4
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
	case wire.MsgMakeBid:
		err = g.applyBid(seat, action)
	case wire.MsgDiscardCard:
		err = g.applyDiscard(seat, action)
	case wire.MsgPlayCard:
		err = g.applyPlay(seat, action)
	default:
		err = games.Invalidf("euchre does not accept %s", action.Type)
	}
	if err != nil {
		g.events = nil
		return nil, err
	}

	g.machine.Run(16)
	return g.drain(), nil
}

func (g *game) applyBid(seat int, action games.Action) error {
	var bid wire.EuchreBid
	if err := action.DecodePayload(&bid); err != nil {
		return err
	}

	switch g.phase {
	case PhaseBiddingRound1:
		return g.applyRound1Bid(seat, bid)
	case PhaseBiddingRound2:
		return g.applyRound2Bid(seat, bid)
	}
	return games.Invalidf("no bidding in phase %s", g.phase)
}

func (g *game) applyRound1Bid(seat int, bid wire.EuchreBid) error {
	switch bid.Action {
	case BidOrderUp:
		g.recordBid(seat, BidOrderUp, string(g.turnUp.Suit()), bid.GoingAlone)
		g.setTrump(seat, g.turnUp.Suit(), bid.GoingAlone)

		// The dealer picks up the turned card and discards, even when going
		// alone sidelines their hand.
		g.hands[g.dealer] = append(g.hands[g.dealer], g.turnUp)
		cards.Sort(g.hands[g.dealer])
		g.phase = PhaseDealerDiscard
		g.current = g.dealer
		return nil

	case BidPass:
		g.recordBid(seat, BidPass, "", false)
		if seat == g.dealer {
			// All four passed; turn the card down and bid again.
			g.bidRound = 2
			g.phase = PhaseBiddingRound2
			g.current = (g.dealer + 1) % 4
			return nil
		}
		g.current = (seat + 1) % 4
		return nil
	}
	return games.Invalidf("round one bids are %s or %s", BidOrderUp, BidPass)
}

func (g *game) applyRound2Bid(seat int, bid wire.EuchreBid) error {
	switch bid.Action {
	case BidCallSuit:
		suit, err := parseSuit(bid.Suit)
		if err != nil {
			return err
		}
		if suit == g.turnUp.Suit() {
			return games.Invalidf("%s was turned down and cannot be named", suit)
		}
		g.recordBid(seat, BidCallSuit, string(suit), bid.GoingAlone)
		g.setTrump(seat, suit, bid.GoingAlone)
		g.startPlay()
		return nil

	case BidPass:
		if seat == g.dealer && g.settings.StickTheDealer {
			return games.Invalidf("dealer must name trump")
		}
		g.recordBid(seat, BidPass, "", false)
		if seat == g.dealer {
			// Thrown in; next dealer deals a fresh hand.
			g.dealer = (g.dealer + 1) % 4
			g.machine.Set(stateDeal)
			return nil
		}
		g.current = (seat + 1) % 4
		return nil
	}
	return games.Invalidf("round two bids are %s or %s", BidCallSuit, BidPass)
}

func (g *game) recordBid(seat int, action, suit string, alone bool) {
	g.bids = append(g.bids, wire.EuchreBidRecord{
		Seat: seat, Action: action, Suit: suit, GoingAlone: alone,
	})
	g.emit(wire.MsgBidMade, wire.BidMade{
		Seat: seat, Action: action, Suit: suit, GoingAlone: alone,
	})
}

func (g *game) setTrump(seat int, suit cards.Suit, alone bool) {
	g.trump = suit
	g.maker = seat
	g.alone = alone
	g.skipped = -1
	if alone {
		g.skipped = (seat + 2) % 4
	}
	g.emit(wire.MsgTrumpSelected, wire.TrumpSelected{
		Seat: seat, Suit: string(suit), GoingAlone: alone,
	})
	g.log.Debugf("seat %d made %s trump (alone=%v)", seat, suit, alone)
}

// startPlay enters the playing phase with the seat left of the dealer
// leading.
func (g *game) startPlay() {
	g.phase = PhasePlaying
	g.trickLeader = g.nextActive(g.dealer)
	g.current = g.trickLeader
	g.trick = nil
	g.ledSuit = ""
}

func (g *game) applyDiscard(seat int, action games.Action) error {
	if g.phase != PhaseDealerDiscard {
		return games.Invalidf("no discard in phase %s", g.phase)
	}
	var dc wire.DiscardCard
	if err := action.DecodePayload(&dc); err != nil {
		return err
	}
	card, err := cards.ParseID(dc.CardID)
	if err != nil {
		return games.Invalidf("bad card id: %v", err)
	}
	rest, ok := cards.Remove(g.hands[seat], card)
	if !ok {
		return games.Invalidf("you do not hold %s", card)
	}
	g.hands[seat] = rest
	g.startPlay()
	return nil
}

func (g *game) applyPlay(seat int, action games.Action) error {
	if g.phase != PhasePlaying {
		return games.Invalidf("no card play in phase %s", g.phase)
	}
	var pc wire.PlayCard
	if err := action.DecodePayload(&pc); err != nil {
		return err
	}
	card, err := cards.ParseID(pc.CardID)
	if err != nil {
		return games.Invalidf("bad card id: %v", err)
	}
	if !cards.Contains(g.hands[seat], card) {
		return games.Invalidf("you do not hold %s", card)
	}
	if !g.isLegalPlay(seat, card) {
		return games.Invalidf("%s does not follow %s", card, g.ledSuit)
	}

	g.hands[seat], _ = cards.Remove(g.hands[seat], card)
	if len(g.trick) == 0 {
		g.ledSuit = g.effectiveSuit(card)
	}
	g.trick = append(g.trick, wire.SeatCard{Seat: seat, Card: card})
	g.emit(wire.MsgCardPlayed, wire.CardPlayed{Seat: seat, Card: card})

	if len(g.trick) == g.playersInTrick() {
		g.machine.Set(stateTrickDone)
		return nil
	}
	g.current = g.nextActive(seat)
	return nil
}

// ---------- rules ----------

// playersInTrick is four, or three when someone is going alone.
func (g *game) playersInTrick() int {
	if g.skipped >= 0 {
		return 3
	}
	return 4
}

// nextActive returns the next seat clockwise from seat, skipping the
// sidelined partner of a lone hand.
func (g *game) nextActive(seat int) int {
	next := (seat + 1) % 4
	if next == g.skipped {
		next = (next + 1) % 4
	}
	return next
}

// effectiveSuit is the suit a card counts as with trump in force: the left
// bower belongs to the trump suit.
func (g *game) effectiveSuit(c cards.Card) cards.Suit {
	if g.trump != "" && c.Rank() == cards.Jack &&
		c.Suit() != g.trump && cards.SameColor(c.Suit(), g.trump) {
		return g.trump
	}
	return c.Suit()
}

// isLegalPlay enforces following the led suit when possible.
func (g *game) isLegalPlay(seat int, card cards.Card) bool {
	if len(g.trick) == 0 {
		return true
	}
	if g.effectiveSuit(card) == g.ledSuit {
		return true
	}
	for _, held := range g.hands[seat] {
		if g.effectiveSuit(held) == g.ledSuit {
			return false
		}
	}
	return true
}

// power ranks a card within the current trick. Bowers beat all other trump;
// trump beats the led suit; anything else cannot win.
func (g *game) power(c cards.Card) int {
	es := g.effectiveSuit(c)
	if g.trump != "" && es == g.trump {
		if c.Rank() == cards.Jack {
			if c.Suit() == g.trump {
				return 500 // right bower
			}
			return 499 // left bower
		}
		return 400 + c.Rank().Index()
	}
	if es == g.ledSuit {
		return 300 + c.Rank().Index()
	}
	return c.Rank().Index()
}

func (g *game) trickWinner() int {
	best := g.trick[0]
	for _, sc := range g.trick[1:] {
		if g.power(sc.Card) > g.power(best.Card) {
			best = sc
		}
	}
	return best.Seat
}

func (g *game) trickCount() int {
	return g.tricksWon[0] + g.tricksWon[1] + g.tricksWon[2] + g.tricksWon[3]
}

// ---------- prompts and views ----------

func (g *game) ValidActions(seat int) []string {
	if g.over || seat != g.current {
		return nil
	}
	switch g.phase {
	case PhaseBiddingRound1, PhaseBiddingRound2:
		return []string{string(wire.MsgMakeBid)}
	case PhaseDealerDiscard:
		return []string{string(wire.MsgDiscardCard)}
	case PhasePlaying:
		return []string{string(wire.MsgPlayCard)}
	}
	return nil
}

func (g *game) ValidCards(seat int) []cards.Card {
	if g.over || seat != g.current {
		return nil
	}
	switch g.phase {
	case PhaseDealerDiscard:
		return cards.Clone(g.hands[seat])
	case PhasePlaying:
		return legalPlays(g.hands[seat], g.trick, g.ledSuit, g.trump)
	}
	return nil
}

func (g *game) ValidPlays(seat int) [][]cards.Card { return nil }

// legalPlays computes the playable subset of hand given the trick so far.
// Shared with the client side fallback hints.
func legalPlays(hand []cards.Card, trick []wire.SeatCard, led cards.Suit, trump cards.Suit) []cards.Card {
	eff := func(c cards.Card) cards.Suit {
		if trump != "" && c.Rank() == cards.Jack && c.Suit() != trump &&
			cards.SameColor(c.Suit(), trump) {
			return trump
		}
		return c.Suit()
	}
	if len(trick) == 0 || led == "" {
		return cards.Clone(hand)
	}
	var follows []cards.Card
	for _, c := range hand {
		if eff(c) == led {
			follows = append(follows, c)
		}
	}
	if len(follows) > 0 {
		return follows
	}
	return cards.Clone(hand)
}

// SnapshotFor builds the filtered view for one seat.
func (g *game) SnapshotFor(seat int) games.View {
	counts := make([]int, 4)
	for i := range g.hands {
		counts[i] = len(g.hands[i])
	}

	st := wire.EuchreState{
		Maker:       g.maker,
		GoingAlone:  g.alone,
		SkippedSeat: g.skipped,
		Bids:        append([]wire.EuchreBidRecord(nil), g.bids...),
		TrickLeader: g.trickLeader,
		LedSuit:     string(g.ledSuit),
		Trick:       append([]wire.SeatCard(nil), g.trick...),
		TricksWon:   append([]int(nil), g.tricksWon[:]...),
		TeamScores:  []int{g.teamScores[0], g.teamScores[1]},
		HandNumber:  g.handNum,
	}
	if g.trump != "" {
		st.Trump = string(g.trump)
	}
	switch g.phase {
	case PhaseBiddingRound1:
		st.BidRound = 1
		up := g.turnUp
		st.TurnUp = &up
	case PhaseBiddingRound2:
		st.BidRound = 2
		st.TurnedDown = string(g.turnUp.Suit())
	}

	view := games.View{
		Phase:       g.phase,
		CurrentSeat: g.current,
		Dealer:      g.dealer,
		GameOver:    g.over,
		HandCounts:  counts,
		Game:        st,
	}
	if seat >= 0 && seat < 4 {
		view.Hand = cards.Clone(g.hands[seat])
	}
	return view
}

func parseSuit(s string) (cards.Suit, error) {
	switch s {
	case "♠", "S", "s", "spades":
		return cards.Spades, nil
	case "♥", "H", "h", "hearts":
		return cards.Hearts, nil
	case "♦", "D", "d", "diamonds":
		return cards.Diamonds, nil
	case "♣", "C", "c", "clubs":
		return cards.Clubs, nil
	}
	return "", games.Invalidf("invalid suit %q", s)
}
