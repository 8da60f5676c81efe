// Package spades implements the spades rule module: four seats in fixed
// partnerships, a full 52 card deck, one bidding round with nil bids, and
// trick play where spades trump and cannot lead until broken.
package spades

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
	PhaseBidding  = "bidding"
	PhasePlaying  = "playing"
	PhaseGameOver = "game_over"
)

// Bid types accepted inside a make_bid payload.
const (
	BidNumber = "number"
	BidNil    = "nil"
)

const (
	handSize = 13
	maxBid   = 13

	nilBonus    = 100
	bagsPenalty = 100
	bagsPerSet  = 10
)

func init() {
	games.Register(games.Spades, func(cfg games.Config) (games.Module, error) {
		return newGame(cfg), nil
	})
}

// game holds one spades game. Not safe for concurrent use; the room runtime
// serializes all access.
type game struct {
	log      slog.Logger
	rng      *rand.Rand
	settings games.Settings

	phase   string
	dealer  int
	current int
	handNum int

	hands [4][]cards.Card
	bids  [4]wire.SpadesSeatBid

	trickLeader int
	ledSuit     cards.Suit
	trick       []wire.SeatCard
	broken      bool
	tricksWon   [4]int

	teamScores [2]int
	teamBags   [2]int

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
	}
	g.machine = statemachine.New(g, nil)
	return g
}

func (g *game) Kind() games.Kind { return games.Spades }
func (g *game) SeatCount() int   { return 4 }
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
	g.machine.Run(16)
	return g.drain()
}

// ---------- state machine ----------

// stateDeal shuffles a full deck, deals thirteen around and opens the bidding
// left of the dealer.
func stateDeal(g *game) statemachine.StateFn[game] {
	g.handNum++
	deck := cards.NewDeck(g.rng)
	for seat := 0; seat < 4; seat++ {
		hand := deck.DrawN(handSize)
		cards.Sort(hand)
		g.hands[seat] = hand
	}

	g.bids = [4]wire.SpadesSeatBid{}
	for seat := range g.bids {
		g.bids[seat].Seat = seat
	}
	g.trick = nil
	g.ledSuit = ""
	g.broken = false
	g.tricksWon = [4]int{}

	g.phase = PhaseBidding
	g.current = (g.dealer + 1) % 4
	g.log.Debugf("hand %d dealt, dealer seat %d", g.handNum, g.dealer)
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
	var lines []string
	for team := 0; team < 2; team++ {
		delta, bags, desc := g.scoreTeam(team)
		g.teamScores[team] += delta
		g.teamBags[team] += bags
		if g.teamBags[team] >= bagsPerSet {
			g.teamBags[team] -= bagsPerSet
			g.teamScores[team] -= bagsPenalty
			desc += ", bagged out"
		}
		lines = append(lines, fmt.Sprintf("team %d %s", team, desc))
	}

	g.emit(wire.MsgHandScored, wire.HandScored{
		Scores:  []int{g.teamScores[0], g.teamScores[1]},
		Summary: lines[0] + "; " + lines[1],
	})
	g.log.Debugf("hand %d scored: %d-%d (bags %d-%d)", g.handNum,
		g.teamScores[0], g.teamScores[1], g.teamBags[0], g.teamBags[1])

	best, other := 0, 1
	if g.teamScores[1] > g.teamScores[0] {
		best, other = 1, 0
	}
	if g.teamScores[best] >= g.settings.TargetScore && g.teamScores[best] > g.teamScores[other] {
		g.winners = []int{best, best + 2}
		g.summary = fmt.Sprintf("team %d wins %d to %d", best,
			g.teamScores[best], g.teamScores[other])
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

// scoreTeam computes one team's score movement for the finished hand. Nil
// bids are settled per seat; the contract is the sum of the numbered bids
// against the team's combined tricks.
func (g *game) scoreTeam(team int) (delta, bags int, desc string) {
	seats := []int{team, team + 2}

	contract, tricks := 0, 0
	for _, seat := range seats {
		if g.bids[seat].Nil {
			if g.tricksWon[seat] == 0 {
				delta += nilBonus
			} else {
				delta -= nilBonus
			}
		} else {
			contract += g.bids[seat].Count
		}
		tricks += g.tricksWon[seat]
	}

	if tricks >= contract {
		delta += contract * 10
		bags = tricks - contract
		desc = fmt.Sprintf("made %d with %d bags", contract, bags)
	} else {
		delta -= contract * 10
		desc = fmt.Sprintf("set on %d", contract)
	}
	return delta, bags, desc
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
	case wire.MsgPlayCard:
		err = g.applyPlay(seat, action)
	default:
		err = games.Invalidf("spades does not accept %s", action.Type)
	}
	if err != nil {
		g.events = nil
		return nil, err
	}

	g.machine.Run(16)
	return g.drain(), nil
}

func (g *game) applyBid(seat int, action games.Action) error {
	if g.phase != PhaseBidding {
		return games.Invalidf("no bidding in phase %s", g.phase)
	}
	var bid wire.SpadesBid
	if err := action.DecodePayload(&bid); err != nil {
		return err
	}

	switch bid.Type {
	case BidNil:
		g.bids[seat] = wire.SpadesSeatBid{Seat: seat, Made: true, Nil: true}
		g.emit(wire.MsgBidMade, wire.BidMade{Seat: seat, Nil: true})
	case BidNumber:
		if bid.Count < 0 || bid.Count > maxBid {
			return games.Invalidf("bid must be between 0 and %d", maxBid)
		}
		g.bids[seat] = wire.SpadesSeatBid{Seat: seat, Made: true, Count: bid.Count}
		g.emit(wire.MsgBidMade, wire.BidMade{Seat: seat, Number: bid.Count})
	default:
		return games.Invalidf("bid type is %s or %s", BidNumber, BidNil)
	}
	g.log.Debugf("seat %d bid %+v", seat, g.bids[seat])

	if seat == g.dealer {
		// Dealer bids last; play opens left of the dealer.
		g.phase = PhasePlaying
		g.trickLeader = (g.dealer + 1) % 4
		g.current = g.trickLeader
		return nil
	}
	g.current = (seat + 1) % 4
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
	if !legalPlay(g.hands[seat], g.trick, g.ledSuit, g.broken, card) {
		if len(g.trick) == 0 {
			return games.Invalidf("spades cannot lead until broken")
		}
		return games.Invalidf("%s does not follow %s", card, g.ledSuit)
	}

	g.hands[seat], _ = cards.Remove(g.hands[seat], card)
	if len(g.trick) == 0 {
		g.ledSuit = card.Suit()
	}
	if card.Suit() == cards.Spades {
		g.broken = true
	}
	g.trick = append(g.trick, wire.SeatCard{Seat: seat, Card: card})
	g.emit(wire.MsgCardPlayed, wire.CardPlayed{Seat: seat, Card: card})

	if len(g.trick) == 4 {
		g.machine.Set(stateTrickDone)
		return nil
	}
	g.current = (seat + 1) % 4
	return nil
}

// ---------- rules ----------

// legalPlay enforces following the led suit and the no-spade-lead rule.
// Shared with the client side fallback hints.
func legalPlay(hand []cards.Card, trick []wire.SeatCard, led cards.Suit, broken bool, card cards.Card) bool {
	if len(trick) == 0 {
		if card.Suit() != cards.Spades || broken {
			return true
		}
		// A hand of nothing but spades may lead them.
		for _, c := range hand {
			if c.Suit() != cards.Spades {
				return false
			}
		}
		return true
	}
	if card.Suit() == led {
		return true
	}
	for _, c := range hand {
		if c.Suit() == led {
			return false
		}
	}
	return true
}

// power ranks a card within the current trick: spades beat the led suit,
// anything else cannot win.
func (g *game) power(c cards.Card) int {
	if c.Suit() == cards.Spades {
		return 400 + c.Rank().Index()
	}
	if c.Suit() == g.ledSuit {
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
	case PhaseBidding:
		return []string{string(wire.MsgMakeBid)}
	case PhasePlaying:
		return []string{string(wire.MsgPlayCard)}
	}
	return nil
}

func (g *game) ValidCards(seat int) []cards.Card {
	if g.over || seat != g.current || g.phase != PhasePlaying {
		return nil
	}
	return legalPlays(g.hands[seat], g.trick, g.ledSuit, g.broken)
}

func (g *game) ValidPlays(seat int) [][]cards.Card { return nil }

// legalPlays computes the playable subset of hand given the trick so far.
func legalPlays(hand []cards.Card, trick []wire.SeatCard, led cards.Suit, broken bool) []cards.Card {
	var out []cards.Card
	for _, c := range hand {
		if legalPlay(hand, trick, led, broken, c) {
			out = append(out, c)
		}
	}
	return out
}

// SnapshotFor builds the filtered view for one seat.
func (g *game) SnapshotFor(seat int) games.View {
	counts := make([]int, 4)
	for i := range g.hands {
		counts[i] = len(g.hands[i])
	}

	bids := make([]wire.SpadesSeatBid, 4)
	copy(bids, g.bids[:])

	st := wire.SpadesState{
		Bids:         bids,
		TrickLeader:  g.trickLeader,
		LedSuit:      string(g.ledSuit),
		Trick:        append([]wire.SeatCard(nil), g.trick...),
		SpadesBroken: g.broken,
		TricksWon:    append([]int(nil), g.tricksWon[:]...),
		TeamScores:   []int{g.teamScores[0], g.teamScores[1]},
		TeamBags:     []int{g.teamBags[0], g.teamBags[1]},
		HandNumber:   g.handNum,
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
