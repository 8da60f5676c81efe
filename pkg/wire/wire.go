// Package wire defines the JSON message envelopes exchanged between the
// cardroom server and its clients. Both sides share these types; the server
// marshals snapshots into them and clients decode them back.
package wire

import (
	"encoding/json"
	"fmt"
)

// Type identifies a message within the envelope.
type Type string

// Client to server messages.
const (
	MsgJoinLobby    Type = "join_lobby"
	MsgCreateTable  Type = "create_table"
	MsgJoinTable    Type = "join_table"
	MsgLeaveTable   Type = "leave_table"
	MsgStartGame    Type = "start_game"
	MsgRestartGame  Type = "restart_game"
	MsgRequestState Type = "request_state"
	MsgLeaveGame    Type = "leave_game"
	MsgBootPlayer   Type = "boot_player"

	// Kind specific action commands. make_bid and play_card are shared by
	// euchre and spades; the room's rule module decodes the payload.
	MsgMakeBid     Type = "make_bid"
	MsgPlayCard    Type = "play_card"
	MsgDiscardCard Type = "discard_card"
	MsgPlayCards   Type = "play_cards"
	MsgPass        Type = "pass"
	MsgGiveCards   Type = "give_cards"
)

// Server to client messages.
const (
	MsgWelcome        Type = "welcome"
	MsgLobbyState     Type = "lobby_state"
	MsgTableUpdated   Type = "table_updated"
	MsgTableRemoved   Type = "table_removed"
	MsgJoinedTable    Type = "joined_table"
	MsgLeftTable      Type = "left_table"
	MsgPlayerJoined   Type = "player_joined"
	MsgPlayerLeft     Type = "player_left"
	MsgGameStarted    Type = "game_started"
	MsgGameRestarting Type = "game_restarting"
	MsgGameState      Type = "game_state"
	MsgYourTurn       Type = "your_turn"
	MsgTurnReminder   Type = "turn_reminder"
	MsgPlayerBooted   Type = "player_booted"
	MsgPlayerTimedOut Type = "player_timed_out"
	MsgError          Type = "error"
	MsgGameOver       Type = "game_over"
)

// Domain events. Optional animation triggers; never authoritative state.
const (
	MsgBidMade        Type = "bid_made"
	MsgTrumpSelected  Type = "trump_selected"
	MsgCardPlayed     Type = "card_played"
	MsgTrickComplete  Type = "trick_complete"
	MsgPlayMade       Type = "play_made"
	MsgPileCleared    Type = "pile_cleared"
	MsgCardsExchanged Type = "cards_exchanged"
	MsgPlayerFinished Type = "player_finished"
	MsgHandScored     Type = "hand_scored"
)

// actionTypes holds the commands that mutate game state and therefore must
// carry an expectedStateSeq.
var actionTypes = map[Type]bool{
	MsgMakeBid:     true,
	MsgPlayCard:    true,
	MsgDiscardCard: true,
	MsgPlayCards:   true,
	MsgPass:        true,
	MsgGiveCards:   true,
}

// IsAction reports whether t is a kind specific action command.
func IsAction(t Type) bool { return actionTypes[t] }

// domainEventTypes holds the animation-only event types.
var domainEventTypes = map[Type]bool{
	MsgBidMade:        true,
	MsgTrumpSelected:  true,
	MsgCardPlayed:     true,
	MsgTrickComplete:  true,
	MsgPlayMade:       true,
	MsgPileCleared:    true,
	MsgCardsExchanged: true,
	MsgPlayerFinished: true,
	MsgHandScored:     true,
}

// IsDomainEvent reports whether t is an animation-only domain event.
func IsDomainEvent(t Type) bool { return domainEventTypes[t] }

// ErrorCode classifies an error message.
type ErrorCode string

const (
	CodeSyncRequired  ErrorCode = "sync_required"
	CodeNotYourTurn   ErrorCode = "not_your_turn"
	CodeInvalidAction ErrorCode = "invalid_action"
	CodeGameLost      ErrorCode = "game_lost"
	CodeNotSeated     ErrorCode = "not_seated"
	CodeGameOver      ErrorCode = "game_over"
	CodeRateLimited   ErrorCode = "rate_limited"
	CodeInternal      ErrorCode = "internal"
)

// Message is the symmetric envelope carried over the socket.
type Message struct {
	Type             Type            `json:"type"`
	RoomID           string          `json:"roomId,omitempty"`
	ExpectedStateSeq *uint64         `json:"expectedStateSeq,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// Compose builds a message of the given type around payload. A nil payload
// yields an empty payload field.
func Compose(t Type, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// MustCompose is Compose for payloads that cannot fail to marshal.
func MustCompose(t Type, payload any) *Message {
	msg, err := Compose(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Decode unmarshals the payload into dst. A missing payload decodes into the
// zero value.
func (m *Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// WithRoom returns a shallow copy of the message addressed at roomID.
func (m *Message) WithRoom(roomID string) *Message {
	cp := *m
	cp.RoomID = roomID
	return &cp
}

// WithSeq returns a shallow copy of the message carrying seq as the expected
// state sequence.
func (m *Message) WithSeq(seq uint64) *Message {
	cp := *m
	cp.ExpectedStateSeq = &seq
	return &cp
}
