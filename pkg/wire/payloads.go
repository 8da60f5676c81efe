package wire

import (
	"encoding/json"

	"github.com/cardroom/cardroom/pkg/games/cards"
)

// ---------- client to server ----------

// JoinLobby identifies the client. Identity is empty on first contact; the
// server answers with welcome{identity} and the client echoes it afterwards.
type JoinLobby struct {
	Nickname string `json:"nickname"`
	Identity string `json:"identity,omitempty"`
}

// TableSettings carries the per-kind options chosen at table creation.
// Zero values select the kind's defaults.
type TableSettings struct {
	TargetScore    int    `json:"targetScore,omitempty"`
	StickTheDealer *bool  `json:"stickTheDealer,omitempty"`
	ExchangeCount  int    `json:"exchangeCount,omitempty"`
	AIDifficulty   string `json:"aiDifficulty,omitempty"`
}

type CreateTable struct {
	Kind       string        `json:"kind"`
	Name       string        `json:"name,omitempty"`
	MaxPlayers int           `json:"maxPlayers,omitempty"`
	Settings   TableSettings `json:"settings,omitempty"`
}

type JoinTable struct {
	TableID   string `json:"tableId"`
	SeatIndex int    `json:"seatIndex"`
}

type BootPlayer struct {
	SeatIndex int `json:"seatIndex"`
}

// EuchreBid is the make_bid payload for euchre rooms. Action is one of
// "order_up", "call_suit" or "pass"; Suit applies to call_suit only.
type EuchreBid struct {
	Action     string `json:"action"`
	Suit       string `json:"suit,omitempty"`
	GoingAlone bool   `json:"goingAlone,omitempty"`
}

// SpadesBid is the make_bid payload for spades rooms. Type is "number" or
// "nil".
type SpadesBid struct {
	Type  string `json:"type"`
	Count int    `json:"count,omitempty"`
}

type PlayCard struct {
	CardID string `json:"cardId"`
}

type DiscardCard struct {
	CardID string `json:"cardId"`
}

type PlayCards struct {
	CardIDs []string `json:"cardIds"`
}

type GiveCards struct {
	CardIDs []string `json:"cardIds"`
}

// ---------- server to client ----------

type Welcome struct {
	Identity string `json:"identity"`
}

// TableInfo describes one lobby table.
type TableInfo struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Name       string      `json:"name"`
	HostName   string      `json:"hostName"`
	MaxPlayers int         `json:"maxPlayers"`
	Players    []TableSeat `json:"players"`
	Started    bool        `json:"started"`
	RoomID     string      `json:"roomId,omitempty"`
}

// TableSeat describes one occupied lobby seat.
type TableSeat struct {
	SeatIndex int    `json:"seatIndex"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
}

type LobbyState struct {
	Tables           []TableInfo `json:"tables"`
	ConnectedPlayers int         `json:"connectedPlayers"`
}

type TableUpdated struct {
	Table TableInfo `json:"table"`
}

type TableRemoved struct {
	TableID string `json:"tableId"`
}

type JoinedTable struct {
	Table     TableInfo `json:"table"`
	SeatIndex int       `json:"seatIndex"`
}

type LeftTable struct {
	TableID string `json:"tableId"`
}

type PlayerJoined struct {
	TableID   string `json:"tableId"`
	Name      string `json:"name"`
	SeatIndex int    `json:"seatIndex"`
}

type PlayerLeft struct {
	TableID   string `json:"tableId"`
	Name      string `json:"name"`
	SeatIndex int    `json:"seatIndex"`
}

type GameStarted struct {
	RoomID  string `json:"roomId"`
	TableID string `json:"tableId,omitempty"`
	Kind    string `json:"kind"`
}

type GameRestarting struct {
	TableID   string `json:"tableId,omitempty"`
	OldRoomID string `json:"oldRoomId"`
}

// SeatInfo is the public view of one room seat inside a snapshot.
type SeatInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	IsAI      bool   `json:"isAI"`
	Connected bool   `json:"connected"`
	HandCount int    `json:"handCount"`
	Team      int    `json:"team,omitempty"`
}

// GameState is the per-recipient filtered snapshot. Hand holds only the
// recipient's cards; everyone else is reduced to HandCount in Seats. Game
// holds the kind specific public state (EuchreState, PresidentState,
// SpadesState).
type GameState struct {
	Kind         string          `json:"kind"`
	StateSeq     uint64          `json:"stateSeq"`
	Phase        string          `json:"phase"`
	CurrentSeat  int             `json:"currentSeat"`
	Dealer       int             `json:"dealer"`
	TimedOutSeat int             `json:"timedOutSeat"`
	GameOver     bool            `json:"gameOver"`
	YourSeat     int             `json:"yourSeat"`
	Seats        []SeatInfo      `json:"seats"`
	Hand         []cards.Card    `json:"hand,omitempty"`
	Game         json.RawMessage `json:"game"`
}

// YourTurn prompts the acting seat. Exactly one of ValidCards or ValidPlays
// is populated depending on the kind and phase.
type YourTurn struct {
	StateSeq     uint64     `json:"stateSeq"`
	ValidActions []string   `json:"validActions"`
	ValidCards   []string   `json:"validCards,omitempty"`
	ValidPlays   [][]string `json:"validPlays,omitempty"`
}

type TurnReminder struct {
	ValidActions []string `json:"validActions"`
	Reminders    int      `json:"reminders"`
}

type PlayerBooted struct {
	SeatIndex int    `json:"seatIndex"`
	NewName   string `json:"newName"`
}

type PlayerTimedOut struct {
	SeatIndex  int    `json:"seatIndex"`
	PlayerName string `json:"playerName"`
}

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type GameOver struct {
	Winners []int    `json:"winners"`
	Names   []string `json:"names"`
	Summary string   `json:"summary,omitempty"`
}

// ---------- domain events ----------

// SeatCard pairs a seat with a publicly revealed card.
type SeatCard struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

// BidMade reports a bid in euchre (Action/Suit/GoingAlone) or spades
// (Number/Nil).
type BidMade struct {
	Seat       int    `json:"seat"`
	Action     string `json:"action,omitempty"`
	Suit       string `json:"suit,omitempty"`
	GoingAlone bool   `json:"goingAlone,omitempty"`
	Number     int    `json:"number,omitempty"`
	Nil        bool   `json:"nil,omitempty"`
}

type TrumpSelected struct {
	Seat       int    `json:"seat"`
	Suit       string `json:"suit"`
	GoingAlone bool   `json:"goingAlone,omitempty"`
}

type CardPlayed struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

type TrickComplete struct {
	Winner int          `json:"winner"`
	Cards  []cards.Card `json:"cards"`
}

type PlayMade struct {
	Seat  int          `json:"seat"`
	Cards []cards.Card `json:"cards"`
}

type PileCleared struct {
	Leader int `json:"leader"`
}

// CardsExchanged reports the exchange between president and scum without
// revealing the cards.
type CardsExchanged struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Count int `json:"count"`
}

type PlayerFinished struct {
	Seat  int `json:"seat"`
	Place int `json:"place"`
}

// HandScored reports the score movement after a hand. Scores is indexed by
// team for partnership games and by seat otherwise.
type HandScored struct {
	Scores  []int  `json:"scores"`
	Summary string `json:"summary"`
}
