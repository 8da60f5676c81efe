package president

import (
	"encoding/json"

	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Hints derives the local player's turn prompt from a snapshot alone.
// Clients fall back to this when a your_turn prompt was lost or arrived
// stale. Nil when it is not the local player's turn.
func Hints(gs *wire.GameState) *wire.YourTurn {
	if gs == nil || gs.YourSeat < 0 || gs.CurrentSeat != gs.YourSeat || gs.GameOver {
		return nil
	}
	var st wire.PresidentState
	if len(gs.Game) > 0 {
		if err := json.Unmarshal(gs.Game, &st); err != nil {
			return nil
		}
	}

	yt := &wire.YourTurn{StateSeq: gs.StateSeq}
	switch gs.Phase {
	case PhaseExchange:
		yt.ValidActions = []string{string(wire.MsgGiveCards)}
		gives := st.ExchangeGives
		if gives == 0 {
			gives = 1
		}
		// The scum owes its best cards; the president picks freely.
		if gs.YourSeat < len(st.Titles) && st.Titles[gs.YourSeat] == TitleScum {
			yt.ValidCards = cards.IDs(bestCards(gs.Hand, gives))
		} else {
			yt.ValidCards = cards.IDs(gs.Hand)
		}
	case PhasePlaying:
		yt.ValidActions = []string{string(wire.MsgPlayCards)}
		if st.LastPlay != nil {
			yt.ValidActions = append(yt.ValidActions, string(wire.MsgPass))
		}
		for _, set := range legalSets(gs.Hand, st.LastPlay) {
			yt.ValidPlays = append(yt.ValidPlays, cards.IDs(set))
		}
	default:
		return nil
	}
	return yt
}
