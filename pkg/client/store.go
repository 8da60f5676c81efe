package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/cardroom/cardroom/pkg/wire"
)

// maxStoredEvents caps the recent-events feed shown by UIs.
const maxStoredEvents = 32

// SeatView is one seat as the UI should render it: rotated so the local
// player always sits at visual index 0.
type SeatView struct {
	wire.SeatInfo

	// VisualIndex is the rotated position, clockwise from the local player.
	VisualIndex int
	IsYou       bool
	IsCurrent   bool
}

// Store holds the client's authoritative view of one room. It enforces the
// monotonic snapshot guard (stale snapshots and prompts are ignored), tracks
// the newest stateSeq seen on the wire for outbound commands, and projects
// seats rotated around the local player. All methods are safe for concurrent
// use.
type Store struct {
	mtx   sync.RWMutex
	ntfns *NotificationManager

	roomID string
	kind   string

	// serverSeq is the newest stateSeq observed on the wire, tracked even
	// while snapshots sit unapplied in the animation queue. Outbound
	// commands use it so a paused queue cannot make every action stale.
	serverSeq    uint64
	lastStateSeq uint64
	state        *wire.GameState
	snapshotAt   time.Time

	isMyTurn     bool
	promptSeq    uint64
	validActions []string
	validCards   []string
	validPlays   [][]string
	reminders    int

	events   []string
	gameOver *wire.GameOver
}

func newStore(ntfns *NotificationManager) *Store {
	return &Store{ntfns: ntfns}
}

// Reset rebinds the store to a fresh room, dropping all prior state.
func (s *Store) Reset(roomID, kind string) {
	s.mtx.Lock()
	s.roomID = roomID
	s.kind = kind
	s.serverSeq = 0
	s.lastStateSeq = 0
	s.state = nil
	s.snapshotAt = time.Time{}
	s.clearTurnLocked()
	s.reminders = 0
	s.events = nil
	s.gameOver = nil
	s.mtx.Unlock()
}

// NoteSeq records a stateSeq observed on the wire without applying anything.
// Called on arrival for every snapshot, before queueing.
func (s *Store) NoteSeq(seq uint64) {
	s.mtx.Lock()
	if seq > s.serverSeq {
		s.serverSeq = seq
	}
	s.mtx.Unlock()
}

// OutboundSeq is the expectedStateSeq outbound actions should carry: the
// newest seq the client has seen, applied or not.
func (s *Store) OutboundSeq() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.serverSeq > s.lastStateSeq {
		return s.serverSeq
	}
	return s.lastStateSeq
}

// ApplySnapshot runs the sync guard over an incoming snapshot. Snapshots at
// or below the applied seq are ignored. Reports whether the snapshot was
// accepted.
func (s *Store) ApplySnapshot(gs *wire.GameState, ts time.Time) bool {
	s.mtx.Lock()
	if gs.StateSeq <= s.lastStateSeq && s.state != nil {
		s.mtx.Unlock()
		return false
	}
	s.state = gs
	s.lastStateSeq = gs.StateSeq
	if gs.StateSeq > s.serverSeq {
		s.serverSeq = gs.StateSeq
	}
	s.snapshotAt = ts
	s.kind = gs.Kind

	if gs.GameOver || gs.YourSeat < 0 || gs.CurrentSeat != gs.YourSeat {
		// Not our turn anymore: clear affordances eagerly rather than
		// waiting for the next prompt.
		s.clearTurnLocked()
	} else if s.promptSeq != gs.StateSeq {
		// Our turn, but no prompt for this snapshot yet. Derive
		// affordances from public rules so the UI is never stuck; the
		// server's prompt overrides when it lands.
		if yt := hintsFor(gs); yt != nil {
			s.adoptPromptLocked(yt, gs.StateSeq)
		}
	}
	s.mtx.Unlock()

	if s.ntfns != nil {
		s.ntfns.notifyGameState(gs, ts)
	}
	return true
}

// ApplyPrompt runs the sync guard over a your_turn prompt. Prompts are stale
// when the applied snapshot does not show our turn, or when they reference an
// older seq than the applied one. Reports whether the prompt was adopted.
func (s *Store) ApplyPrompt(yt *wire.YourTurn, ts time.Time) bool {
	s.mtx.Lock()
	if !s.promptCurrentLocked() || yt.StateSeq < s.lastStateSeq {
		s.mtx.Unlock()
		return false
	}
	s.adoptPromptLocked(yt, yt.StateSeq)
	s.mtx.Unlock()

	if s.ntfns != nil {
		s.ntfns.notifyYourTurn(yt, ts)
	}
	return true
}

// ApplyReminder refreshes affordances from a turn_reminder. Subject to the
// same staleness gating as prompts.
func (s *Store) ApplyReminder(tr *wire.TurnReminder) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.promptCurrentLocked() {
		return false
	}
	s.isMyTurn = true
	if len(tr.ValidActions) > 0 {
		s.validActions = tr.ValidActions
	}
	s.reminders = tr.Reminders
	return true
}

// ApplyGameOver records the final result and drops turn affordances.
func (s *Store) ApplyGameOver(result *wire.GameOver, ts time.Time) {
	s.mtx.Lock()
	s.gameOver = result
	s.clearTurnLocked()
	roomID := s.roomID
	s.mtx.Unlock()

	if s.ntfns != nil {
		s.ntfns.notifyGameOver(roomID, result, ts)
	}
}

// DropTurn discards local turn affordances. Called on sync_required, before
// the resync request goes out.
func (s *Store) DropTurn() {
	s.mtx.Lock()
	s.clearTurnLocked()
	s.mtx.Unlock()
}

// RestoreTurn re-derives affordances from public rules after a rejected
// action, when the applied snapshot still shows our turn. Lets the player
// retry instead of leaving the UI stuck with nothing selectable.
func (s *Store) RestoreTurn() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.promptCurrentLocked() {
		return false
	}
	yt := hintsFor(s.state)
	if yt == nil {
		return false
	}
	s.adoptPromptLocked(yt, s.lastStateSeq)
	return true
}

// AddEvent appends one line to the recent-events feed.
func (s *Store) AddEvent(format string, args ...interface{}) {
	s.mtx.Lock()
	s.events = append(s.events, fmt.Sprintf(format, args...))
	if len(s.events) > maxStoredEvents {
		s.events = s.events[len(s.events)-maxStoredEvents:]
	}
	s.mtx.Unlock()
}

// promptCurrentLocked reports whether the applied snapshot shows the local
// player's turn.
func (s *Store) promptCurrentLocked() bool {
	gs := s.state
	return gs != nil && !gs.GameOver && gs.YourSeat >= 0 &&
		gs.CurrentSeat == gs.YourSeat
}

func (s *Store) adoptPromptLocked(yt *wire.YourTurn, seq uint64) {
	s.isMyTurn = true
	s.promptSeq = seq
	s.validActions = yt.ValidActions
	s.validCards = yt.ValidCards
	s.validPlays = yt.ValidPlays
}

func (s *Store) clearTurnLocked() {
	s.isMyTurn = false
	s.promptSeq = 0
	s.validActions = nil
	s.validCards = nil
	s.validPlays = nil
}

// ---------- read side ----------

func (s *Store) RoomID() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.roomID
}

func (s *Store) Kind() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.kind
}

// StateSeq is the seq of the last applied snapshot.
func (s *Store) StateSeq() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.lastStateSeq
}

// State returns the last applied snapshot. Callers must treat it as
// read-only.
func (s *Store) State() *wire.GameState {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state
}

func (s *Store) IsMyTurn() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.isMyTurn
}

func (s *Store) ValidActions() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return append([]string(nil), s.validActions...)
}

func (s *Store) ValidCards() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return append([]string(nil), s.validCards...)
}

func (s *Store) ValidPlays() [][]string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([][]string, len(s.validPlays))
	for i, p := range s.validPlays {
		out[i] = append([]string(nil), p...)
	}
	return out
}

func (s *Store) Reminders() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.reminders
}

func (s *Store) Events() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return append([]string(nil), s.events...)
}

func (s *Store) GameOver() *wire.GameOver {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.gameOver
}

// LastSnapshotAt reports when the last snapshot was applied. Zero before the
// first one.
func (s *Store) LastSnapshotAt() time.Time {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.snapshotAt
}

// Seats projects the seats rotated so the local player renders at visual
// index 0. Spectators (YourSeat < 0) see the table unrotated.
func (s *Store) Seats() []SeatView {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.state == nil {
		return nil
	}
	gs := s.state
	n := len(gs.Seats)
	out := make([]SeatView, 0, n)
	for _, si := range gs.Seats {
		out = append(out, SeatView{
			SeatInfo:    si,
			VisualIndex: s.visualSeatLocked(si.Index),
			IsYou:       si.Index == gs.YourSeat && gs.YourSeat >= 0,
			IsCurrent:   si.Index == gs.CurrentSeat,
		})
	}
	return out
}

// VisualSeat maps an absolute seat index to its rotated position.
func (s *Store) VisualSeat(seat int) int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.visualSeatLocked(seat)
}

func (s *Store) visualSeatLocked(seat int) int {
	gs := s.state
	if gs == nil || gs.YourSeat < 0 || len(gs.Seats) == 0 {
		return seat
	}
	n := len(gs.Seats)
	return ((seat-gs.YourSeat)%n + n) % n
}
