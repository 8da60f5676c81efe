package client

import (
	"github.com/cardroom/cardroom/pkg/games/euchre"
	"github.com/cardroom/cardroom/pkg/games/president"
	"github.com/cardroom/cardroom/pkg/games/spades"
	"github.com/cardroom/cardroom/pkg/wire"
)

// hintFuncs maps a game kind to its public-rules prompt derivation. The store
// falls back to these when a snapshot shows our turn but no your_turn prompt
// has arrived for it, so the UI is never stuck without affordances. The
// server's next prompt overrides whatever the fallback produced.
var hintFuncs = map[string]func(*wire.GameState) *wire.YourTurn{
	"euchre":    euchre.Hints,
	"president": president.Hints,
	"spades":    spades.Hints,
}

// hintsFor derives a local turn prompt for the snapshot, or nil when the
// kind is unknown or it is not our turn.
func hintsFor(gs *wire.GameState) *wire.YourTurn {
	if gs == nil {
		return nil
	}
	fn, ok := hintFuncs[gs.Kind]
	if !ok {
		return nil
	}
	return fn(gs)
}
