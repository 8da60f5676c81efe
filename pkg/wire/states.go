package wire

import "github.com/cardroom/cardroom/pkg/games/cards"

// Kind specific public game states. These are embedded in GameState.Game and
// contain only information every seat may see; private hands never appear
// here.

// EuchreState is the public euchre state.
type EuchreState struct {
	BidRound    int               `json:"bidRound,omitempty"`
	TurnUp      *cards.Card       `json:"turnUp,omitempty"`
	TurnedDown  string            `json:"turnedDown,omitempty"`
	Trump       string            `json:"trump,omitempty"`
	Maker       int               `json:"maker"`
	GoingAlone  bool              `json:"goingAlone,omitempty"`
	SkippedSeat int               `json:"skippedSeat"`
	Bids        []EuchreBidRecord `json:"bids,omitempty"`
	TrickLeader int               `json:"trickLeader"`
	LedSuit     string            `json:"ledSuit,omitempty"`
	Trick       []SeatCard        `json:"trick"`
	TricksWon   []int             `json:"tricksWon"`
	TeamScores  []int             `json:"teamScores"`
	HandNumber  int               `json:"handNumber"`
}

// EuchreBidRecord is one entry of the public bid history.
type EuchreBidRecord struct {
	Seat       int    `json:"seat"`
	Action     string `json:"action"`
	Suit       string `json:"suit,omitempty"`
	GoingAlone bool   `json:"goingAlone,omitempty"`
}

// PresidentState is the public president state.
type PresidentState struct {
	LastPlay      *PlaySet `json:"lastPlay,omitempty"`
	PileSize      int      `json:"pileSize"`
	FinishedOrder []int    `json:"finishedOrder"`
	Titles        []string `json:"titles"`
	Points        []int    `json:"points"`
	HandNumber    int      `json:"handNumber"`
	ExchangeGives int      `json:"exchangeGives,omitempty"`
}

// PlaySet is a set of equal ranked cards played by one seat.
type PlaySet struct {
	Seat  int          `json:"seat"`
	Cards []cards.Card `json:"cards"`
}

// SpadesState is the public spades state.
type SpadesState struct {
	Bids         []SpadesSeatBid `json:"bids"`
	TrickLeader  int             `json:"trickLeader"`
	LedSuit      string          `json:"ledSuit,omitempty"`
	Trick        []SeatCard      `json:"trick"`
	SpadesBroken bool            `json:"spadesBroken"`
	TricksWon    []int           `json:"tricksWon"`
	TeamScores   []int           `json:"teamScores"`
	TeamBags     []int           `json:"teamBags"`
	HandNumber   int             `json:"handNumber"`
}

// SpadesSeatBid is one seat's bid; Made is false until the seat has bid.
type SpadesSeatBid struct {
	Seat  int  `json:"seat"`
	Made  bool `json:"made"`
	Nil   bool `json:"nil,omitempty"`
	Count int  `json:"count"`
}
