package euchre

import (
	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// AIAction picks a move for an AI controlled seat. Easy bots take the first
// legal option; normal bots count trump before bidding and try to win tricks
// cheaply.
func (g *game) AIAction(seat int) (games.Action, bool) {
	if g.over || seat != g.current {
		return games.Action{}, false
	}
	easy := g.settings.Difficulty == games.DifficultyEasy

	switch g.phase {
	case PhaseBiddingRound1:
		if easy {
			return bidAction(wire.EuchreBid{Action: BidPass}), true
		}
		n := g.trumpCount(seat, g.turnUp.Suit())
		if seat == g.dealer {
			n++ // the turn up joins the dealer's hand
		}
		if n >= 3 {
			return bidAction(wire.EuchreBid{
				Action:     BidOrderUp,
				GoingAlone: n >= 4 && g.holdsRightBower(seat, g.turnUp.Suit()),
			}), true
		}
		return bidAction(wire.EuchreBid{Action: BidPass}), true

	case PhaseBiddingRound2:
		suit, n := g.bestSuit(seat)
		mustCall := seat == g.dealer && g.settings.StickTheDealer
		if easy && !mustCall {
			return bidAction(wire.EuchreBid{Action: BidPass}), true
		}
		if n >= 3 || mustCall {
			return bidAction(wire.EuchreBid{
				Action:     BidCallSuit,
				Suit:       string(suit),
				GoingAlone: n >= 4 && g.holdsRightBower(seat, suit),
			}), true
		}
		return bidAction(wire.EuchreBid{Action: BidPass}), true

	case PhaseDealerDiscard:
		return games.Action{
			Type:    wire.MsgDiscardCard,
			Payload: games.EncodePayload(wire.DiscardCard{CardID: g.discardChoice(seat).ID()}),
		}, true

	case PhasePlaying:
		return games.Action{
			Type:    wire.MsgPlayCard,
			Payload: games.EncodePayload(wire.PlayCard{CardID: g.playChoice(seat, easy).ID()}),
		}, true
	}
	return games.Action{}, false
}

func bidAction(bid wire.EuchreBid) games.Action {
	return games.Action{Type: wire.MsgMakeBid, Payload: games.EncodePayload(bid)}
}

// trumpCount counts cards that would be trump if suit were named, bowers
// included.
func (g *game) trumpCount(seat int, suit cards.Suit) int {
	n := 0
	for _, c := range g.hands[seat] {
		if c.Suit() == suit {
			n++
		} else if c.Rank() == cards.Jack && cards.SameColor(c.Suit(), suit) {
			n++
		}
	}
	return n
}

func (g *game) holdsRightBower(seat int, suit cards.Suit) bool {
	return cards.Contains(g.hands[seat], cards.New(suit, cards.Jack))
}

// bestSuit returns the callable suit the seat holds the most of.
func (g *game) bestSuit(seat int) (cards.Suit, int) {
	best, bestN := cards.Spades, -1
	for _, suit := range cards.Suits {
		if suit == g.turnUp.Suit() {
			continue
		}
		if n := g.trumpCount(seat, suit); n > bestN {
			best, bestN = suit, n
		}
	}
	return best, bestN
}

// discardChoice drops the lowest card outside trump, or the lowest trump
// when the hand is all trump.
func (g *game) discardChoice(seat int) cards.Card {
	hand := g.hands[seat]
	var pick cards.Card
	pickPower := -1
	for _, c := range hand {
		if g.effectiveSuit(c) == g.trump {
			continue
		}
		if p := c.Rank().Index(); pickPower == -1 || p < pickPower {
			pick, pickPower = c, p
		}
	}
	if pickPower >= 0 {
		return pick
	}
	pick = hand[0]
	for _, c := range hand[1:] {
		if g.power(c) < g.power(pick) {
			pick = c
		}
	}
	return pick
}

// playChoice picks a card for the current trick. Leading plays the strongest
// non trump first to force early; following wins as cheaply as possible or
// dumps the weakest card.
func (g *game) playChoice(seat int, easy bool) cards.Card {
	legal := legalPlays(g.hands[seat], g.trick, g.ledSuit, g.trump)
	if easy {
		return legal[0]
	}

	if len(g.trick) == 0 {
		var lead cards.Card
		leadIdx := -1
		for _, c := range legal {
			if g.effectiveSuit(c) == g.trump {
				continue
			}
			if p := c.Rank().Index(); p > leadIdx {
				lead, leadIdx = c, p
			}
		}
		if leadIdx >= 0 {
			return lead
		}
		return g.strongest(legal)
	}

	toBeat := 0
	for _, sc := range g.trick {
		if p := g.power(sc.Card); p > toBeat {
			toBeat = p
		}
	}
	var cheapWin cards.Card
	cheapPower := -1
	for _, c := range legal {
		if p := g.power(c); p > toBeat && (cheapPower == -1 || p < cheapPower) {
			cheapWin, cheapPower = c, p
		}
	}
	if cheapPower >= 0 {
		return cheapWin
	}
	return g.weakest(legal)
}

func (g *game) strongest(list []cards.Card) cards.Card {
	pick := list[0]
	for _, c := range list[1:] {
		if g.power(c) > g.power(pick) {
			pick = c
		}
	}
	return pick
}

func (g *game) weakest(list []cards.Card) cards.Card {
	pick := list[0]
	for _, c := range list[1:] {
		if g.power(c) < g.power(pick) {
			pick = c
		}
	}
	return pick
}
