package spades

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
	var st wire.SpadesState
	if len(gs.Game) > 0 {
		if err := json.Unmarshal(gs.Game, &st); err != nil {
			return nil
		}
	}

	yt := &wire.YourTurn{StateSeq: gs.StateSeq}
	switch gs.Phase {
	case PhaseBidding:
		yt.ValidActions = []string{string(wire.MsgMakeBid)}
	case PhasePlaying:
		yt.ValidActions = []string{string(wire.MsgPlayCard)}
		legal := legalPlays(gs.Hand, st.Trick, cards.Suit(st.LedSuit), st.SpadesBroken)
		yt.ValidCards = cards.IDs(legal)
	default:
		return nil
	}
	return yt
}
