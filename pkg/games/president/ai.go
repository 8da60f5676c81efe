package president

import (
	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// AIAction picks a move for an AI controlled seat. Normal bots shed low
// ranks first and hold twos back; easy bots play the first legal set.
func (g *game) AIAction(seat int) (games.Action, bool) {
	if g.over || seat != g.current {
		return games.Action{}, false
	}
	easy := g.settings.Difficulty == games.DifficultyEasy

	switch g.phase {
	case PhaseExchange:
		return g.giveChoice(seat), true
	case PhasePlaying:
		return g.playChoice(seat, easy)
	}
	return games.Action{}, false
}

func (g *game) giveChoice(seat int) games.Action {
	n := g.exchangeGives()
	var give []cards.Card
	if !g.scumGave {
		give = bestCards(g.hands[seat], n)
	} else {
		sorted := cards.Clone(g.hands[seat])
		sortByOrder(sorted)
		give = sorted[:n]
	}
	return games.Action{
		Type:    wire.MsgGiveCards,
		Payload: games.EncodePayload(wire.GiveCards{CardIDs: cards.IDs(give)}),
	}
}

func (g *game) playChoice(seat int, easy bool) (games.Action, bool) {
	sets := legalSets(g.hands[seat], g.lastPlay)
	if len(sets) == 0 {
		return games.Action{Type: wire.MsgPass}, true
	}

	// Lowest legal set first keeps twos and high pairs in reserve.
	pick := sets[0]
	if easy && g.lastPlay == nil {
		// Easy bots lead a single card even when holding a pair.
		pick = pick[:1]
	}

	return games.Action{
		Type:    wire.MsgPlayCards,
		Payload: games.EncodePayload(wire.PlayCards{CardIDs: cards.IDs(pick)}),
	}, true
}
