package spades

import (
	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// AIAction picks a move for an AI controlled seat. Easy bots bid a flat
// count and play the first legal card; normal bots estimate tricks from
// honors and trump length and try to win tricks cheaply.
func (g *game) AIAction(seat int) (games.Action, bool) {
	if g.over || seat != g.current {
		return games.Action{}, false
	}
	easy := g.settings.Difficulty == games.DifficultyEasy

	switch g.phase {
	case PhaseBidding:
		if easy {
			return bidAction(wire.SpadesBid{Type: BidNumber, Count: 3}), true
		}
		n := g.estimateTricks(seat)
		if n == 0 {
			return bidAction(wire.SpadesBid{Type: BidNil}), true
		}
		return bidAction(wire.SpadesBid{Type: BidNumber, Count: n}), true

	case PhasePlaying:
		return games.Action{
			Type:    wire.MsgPlayCard,
			Payload: games.EncodePayload(wire.PlayCard{CardID: g.playChoice(seat, easy).ID()}),
		}, true
	}
	return games.Action{}, false
}

func bidAction(bid wire.SpadesBid) games.Action {
	return games.Action{Type: wire.MsgMakeBid, Payload: games.EncodePayload(bid)}
}

// estimateTricks counts aces and kings outside spades plus spade length
// beyond three as likely winners.
func (g *game) estimateTricks(seat int) int {
	n, spades := 0, 0
	for _, c := range g.hands[seat] {
		if c.Suit() == cards.Spades {
			spades++
			if c.Rank().Index() >= cards.Queen.Index() {
				n++
			}
			continue
		}
		switch c.Rank() {
		case cards.Ace:
			n++
		case cards.King:
			n++
		}
	}
	if spades > 3 {
		n += spades - 3
	}
	if n > maxBid {
		n = maxBid
	}
	return n
}

// playChoice picks a card for the current trick: lead low outside spades,
// win as cheaply as possible, otherwise dump the weakest legal card. The
// partner of a nil bidder leans high to cover.
func (g *game) playChoice(seat int, easy bool) cards.Card {
	legal := legalPlays(g.hands[seat], g.trick, g.ledSuit, g.broken)
	if easy {
		return legal[0]
	}

	if len(g.trick) == 0 {
		var lead cards.Card
		leadIdx := 100
		for _, c := range legal {
			if c.Suit() == cards.Spades {
				continue
			}
			if p := c.Rank().Index(); p < leadIdx {
				lead, leadIdx = c, p
			}
		}
		if leadIdx < 100 {
			return lead
		}
		return g.weakest(legal)
	}

	toBeat := 0
	for _, sc := range g.trick {
		if p := g.power(sc.Card); p > toBeat {
			toBeat = p
		}
	}

	// Never beat our own nil partner into a trick.
	partner := (seat + 2) % 4
	partnerNil := g.bids[partner].Nil
	partnerWinning := len(g.trick) >= 2 && g.currentTrickWinner() == partner

	var cheapWin cards.Card
	cheapPower := -1
	for _, c := range legal {
		if p := g.power(c); p > toBeat && (cheapPower == -1 || p < cheapPower) {
			cheapWin, cheapPower = c, p
		}
	}
	if cheapPower >= 0 && !(partnerWinning && !partnerNil) {
		return cheapWin
	}
	return g.weakest(legal)
}

func (g *game) currentTrickWinner() int {
	best := g.trick[0]
	for _, sc := range g.trick[1:] {
		if g.power(sc.Card) > g.power(best.Card) {
			best = sc
		}
	}
	return best.Seat
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
