// Package games defines the rule module contract the room runtime consumes
// and the registry through which concrete games (euchre, president, spades)
// plug in. Modules hold pure game state; all concurrency is the caller's
// problem.
package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
	"github.com/decred/slog"
)

// Kind selects a rule module.
type Kind string

const (
	Euchre    Kind = "euchre"
	President Kind = "president"
	Spades    Kind = "spades"
)

// ParseKind validates a wire kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Euchre, President, Spades:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown game kind %q", s)
}

// SeatRange returns the allowed seat counts for the kind.
func (k Kind) SeatRange() (min, max int) {
	if k == President {
		return 4, 8
	}
	return 4, 4
}

// DefaultSeats returns the seat count used when a table does not choose one.
func (k Kind) DefaultSeats() int {
	return 4
}

// Team returns the team index of a seat, or -1 for games without
// partnerships. Euchre and spades pair opposite seats.
func (k Kind) Team(seat int) int {
	if k == President {
		return -1
	}
	return seat % 2
}

// Difficulty scales the AI heuristics.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
)

// Settings are the per-room rule options. Zero values are replaced by the
// kind's defaults at construction.
type Settings struct {
	// TargetScore ends the game when reached (10 euchre, 10 president,
	// 500 spades).
	TargetScore int

	// StickTheDealer forces the dealer to name trump when every euchre bid
	// passes twice.
	StickTheDealer bool

	// ExchangeCount is how many cards scum hands to president between
	// president hands.
	ExchangeCount int

	// Difficulty selects the AI strategy.
	Difficulty Difficulty
}

// DefaultSettings returns the standard options for a kind.
func DefaultSettings(k Kind) Settings {
	s := Settings{Difficulty: DifficultyNormal}
	switch k {
	case Euchre:
		s.TargetScore = 10
		s.StickTheDealer = true
	case President:
		s.TargetScore = 10
		s.ExchangeCount = 1
	case Spades:
		s.TargetScore = 500
	}
	return s
}

// SettingsFromWire merges client chosen options over the kind defaults.
func SettingsFromWire(k Kind, ts wire.TableSettings, seats int) Settings {
	s := DefaultSettings(k)
	if ts.TargetScore > 0 {
		s.TargetScore = ts.TargetScore
	}
	if ts.StickTheDealer != nil {
		s.StickTheDealer = *ts.StickTheDealer
	}
	if ts.ExchangeCount > 0 {
		s.ExchangeCount = ts.ExchangeCount
	} else if k == President && seats >= 6 {
		s.ExchangeCount = 2
	}
	if ts.AIDifficulty == string(DifficultyEasy) {
		s.Difficulty = DifficultyEasy
	}
	return s
}

// Action is one kind specific command as received off the wire.
type Action struct {
	Type    wire.Type
	Payload json.RawMessage
}

// DecodePayload unmarshals the action payload into dst, reporting rule
// violations as validation errors so the runtime answers invalid_action
// rather than internal.
func (a Action) DecodePayload(dst any) error {
	if len(a.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(a.Payload, dst); err != nil {
		return Invalidf("malformed %s payload: %v", a.Type, err)
	}
	return nil
}

// EncodePayload marshals a payload for an Action built in process, such as
// an AI move. Marshaling wire payload structs cannot fail.
func EncodePayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("games: encode payload: %v", err))
	}
	return raw
}

// Event is a domain event produced by a module. The runtime broadcasts it to
// every connected human before the snapshot that advances past it.
type Event struct {
	Type    wire.Type
	Payload any
}

// ValidationError marks an action the rules rejected. The runtime converts
// it to error{invalid_action} for the submitter and leaves state untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a rule rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrNotYourTurn is returned when the acting seat does not hold the turn.
var ErrNotYourTurn = errors.New("not your turn")

// View is the filtered per-seat projection a module produces for snapshots.
// Hand holds only the viewing seat's cards; Game is the kind specific public
// state marshaled into the snapshot.
type View struct {
	Phase       string
	CurrentSeat int
	Dealer      int
	GameOver    bool
	Hand        []cards.Card
	HandCounts  []int
	Game        any
}

// Module is the rule module contract. Implementations are not safe for
// concurrent use; the room runtime serializes every call.
type Module interface {
	Kind() Kind
	SeatCount() int

	// Deal starts a fresh hand with the given dealer seat and returns the
	// domain events it produced.
	Deal(dealer int) []Event

	// Apply validates and applies one action for seat. On error the module
	// state is unchanged.
	Apply(seat int, action Action) ([]Event, error)

	// SnapshotFor returns the filtered view for one seat. Seat -1 yields a
	// fully hidden public view.
	SnapshotFor(seat int) View

	// ValidActions lists the action message types seat may submit now.
	ValidActions(seat int) []string

	// ValidCards lists legal single card picks for play_card, discard_card
	// or give_cards phases. Nil when the phase takes no card pick.
	ValidCards(seat int) []cards.Card

	// ValidPlays lists legal multi card sets for play_cards phases. Nil for
	// single card games.
	ValidPlays(seat int) [][]cards.Card

	// AIAction picks an action for an AI controlled seat. It reports false
	// when the seat has nothing to do.
	AIAction(seat int) (Action, bool)

	CurrentSeat() int
	Dealer() int
	Phase() string
	GameOver() bool

	// Winners lists winning seats once the game is over.
	Winners() []int

	// Summary is a one line game-over description.
	Summary() string
}

// Config carries everything a factory needs to build a module.
type Config struct {
	Seats    int
	Settings Settings
	Rng      *rand.Rand
	Log      slog.Logger
}

// Factory builds a module for one kind.
type Factory func(cfg Config) (Module, error)

var factories = make(map[Kind]Factory)

// Register installs a factory for kind. Each game package registers itself
// from init, so callers blank-import the kinds they serve.
func Register(kind Kind, f Factory) {
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("game kind %q registered twice", kind))
	}
	factories[kind] = f
}

// New constructs a module of the given kind.
func New(kind Kind, cfg Config) (Module, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("no rule module registered for kind %q", kind)
	}
	min, max := kind.SeatRange()
	if cfg.Seats == 0 {
		cfg.Seats = kind.DefaultSeats()
	}
	if cfg.Seats < min || cfg.Seats > max {
		return nil, fmt.Errorf("%s takes %d to %d seats, got %d", kind, min, max, cfg.Seats)
	}
	if cfg.Rng == nil {
		return nil, errors.New("rule module requires an rng")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	def := DefaultSettings(kind)
	if cfg.Settings.TargetScore == 0 {
		cfg.Settings.TargetScore = def.TargetScore
	}
	if cfg.Settings.Difficulty == "" {
		cfg.Settings.Difficulty = def.Difficulty
	}
	if kind == President && cfg.Settings.ExchangeCount == 0 {
		cfg.Settings.ExchangeCount = def.ExchangeCount
	}
	return f(cfg)
}

// Kinds lists the registered kinds.
func Kinds() []Kind {
	out := make([]Kind, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
