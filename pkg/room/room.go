// Package room implements the server side multiplayer runtime: a per-game
// actor that serializes commands, drives the seat lifecycle and turn timers,
// and emits filtered per-recipient snapshots, plus the registry that holds
// every live room behind one interface.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Default lifecycle knobs. Tests override them through Config.
const (
	DefaultReminderInterval = 15 * time.Second
	DefaultBootThreshold    = 4
	DefaultAutoBootDelay    = 15 * time.Second
	DefaultGraceWindow      = 30 * time.Second
	DefaultAIDelay          = 900 * time.Millisecond
)

// Sender delivers a message to one identity's socket. Implementations must
// not block; the gateway backs this with per-connection send buffers.
type Sender interface {
	Send(identity string, msg *wire.Message)
}

// Observer receives room side counters for the metrics surface. All methods
// may be called from the room executor and must not block.
type Observer interface {
	SnapshotEmitted()
	SeatBooted()
}

// Command is one client command addressed at this room.
type Command struct {
	Identity         string
	Type             wire.Type
	ExpectedStateSeq *uint64
	Payload          json.RawMessage
}

// Config carries everything needed to build a room.
type Config struct {
	ID       string
	Kind     games.Kind
	Seats    int
	Humans   []Human
	Settings games.Settings
	Rng      *rand.Rand
	Log      slog.Logger
	GameLog  slog.Logger
	Sender   Sender
	Observer Observer

	// OnEmpty is called (off the executor) when the last human has left
	// and the room should be torn down.
	OnEmpty func(roomID string)

	ReminderInterval time.Duration
	BootThreshold    int
	AutoBootDelay    time.Duration
	GraceWindow      time.Duration
	AIDelay          time.Duration
}

func (cfg *Config) setDefaults() {
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = DefaultReminderInterval
	}
	if cfg.BootThreshold <= 0 {
		cfg.BootThreshold = DefaultBootThreshold
	}
	if cfg.AutoBootDelay <= 0 {
		cfg.AutoBootDelay = DefaultAutoBootDelay
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultGraceWindow
	}
	if cfg.AIDelay <= 0 {
		cfg.AIDelay = DefaultAIDelay
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	if cfg.GameLog == nil {
		cfg.GameLog = cfg.Log
	}
}

// request is one unit of work for the room executor: either an external
// command or an internal callback (timers, AI moves).
type request struct {
	cmd  *Command
	fn   func()
	resp chan error
}

// Room owns one game instance. A single executor goroutine owns the rule
// module and all mutable state; commands, timer ticks and AI callbacks are
// serialized through cmdCh, so events from one command are fully dispatched
// before the next command starts.
type Room struct {
	id     string
	kind   games.Kind
	cfg    Config
	log    slog.Logger
	module games.Module
	seats  *seatManager
	sender Sender

	cmdCh    chan request
	done     chan struct{}
	stopOnce sync.Once

	seq      atomic.Uint64
	overFlag atomic.Bool

	// Executor owned state.
	timedOut int
	timer    *turnTimer
	grace    map[int]*time.Timer
}

// New builds and starts a room. The game is not dealt until Start.
func New(cfg Config) (*Room, error) {
	cfg.setDefaults()
	module, err := games.New(cfg.Kind, games.Config{
		Seats:    cfg.Seats,
		Settings: cfg.Settings,
		Rng:      cfg.Rng,
		Log:      cfg.GameLog,
	})
	if err != nil {
		return nil, err
	}
	seats, err := newSeatManager(cfg.Kind, module.SeatCount(), cfg.Humans)
	if err != nil {
		return nil, err
	}
	r := &Room{
		id:       cfg.ID,
		kind:     cfg.Kind,
		cfg:      cfg,
		log:      cfg.Log,
		module:   module,
		seats:    seats,
		sender:   cfg.Sender,
		cmdCh:    make(chan request, 64),
		done:     make(chan struct{}),
		timedOut: -1,
		grace:    make(map[int]*time.Timer),
	}
	r.timer = newTurnTimer(r)
	go r.loop()
	return r, nil
}

func (r *Room) ID() string        { return r.id }
func (r *Room) Kind() games.Kind  { return r.kind }
func (r *Room) StateSeq() uint64  { return r.seq.Load() }
func (r *Room) GameOver() bool    { return r.overFlag.Load() }
func (r *Room) SeatCount() int    { return len(r.seats.Seats()) }
func (r *Room) HumanCount() int   { return r.seats.HumanCount() }
func (r *Room) Seats() []Seat     { return r.seats.Seats() }
func (r *Room) SeatOf(identity string) (int, bool) {
	return r.seats.SeatOf(identity)
}

// Stop terminates the executor. Pending submissions fail.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Room) loop() {
	for {
		select {
		case <-r.done:
			r.timer.cancel()
			for _, t := range r.grace {
				t.Stop()
			}
			return
		case req := <-r.cmdCh:
			r.execute(req)
		}
	}
}

// execute runs one request with panic containment: a rule module fault is
// answered as an internal error and the room stays alive with state
// unchanged.
func (r *Room) execute(req request) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("room %s executor panic: %v\n%s", r.id, rec, debug.Stack())
			if req.cmd != nil {
				r.log.Debugf("offending command: %s", spew.Sdump(req.cmd))
			}
			if req.resp != nil {
				req.resp <- Errf(wire.CodeInternal, "internal server fault")
			}
		}
	}()
	if req.fn != nil {
		req.fn()
		if req.resp != nil {
			req.resp <- nil
		}
		return
	}
	err := r.handleCommand(req.cmd)
	if req.resp != nil {
		req.resp <- err
	}
}

// post schedules an internal callback on the executor. Used by timer and AI
// AfterFuncs; drops silently when the room has stopped.
func (r *Room) post(fn func()) {
	select {
	case r.cmdCh <- request{fn: fn}:
	case <-r.done:
	}
}

// call runs fn on the executor and waits for completion.
func (r *Room) call(ctx context.Context, fn func()) error {
	resp := make(chan error, 1)
	select {
	case r.cmdCh <- request{fn: fn, resp: resp}:
	case <-r.done:
		return Errf(wire.CodeGameLost, "room %s is gone", r.id)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start deals the first hand and emits the opening snapshot and turn prompt.
func (r *Room) Start(ctx context.Context) error {
	return r.call(ctx, func() {
		dealer := r.cfg.Rng.Intn(r.module.SeatCount())
		events := r.module.Deal(dealer)
		r.commit(events)
	})
}

// Submit enqueues one command and returns after it has been applied (or
// rejected) and every derived event has been dispatched. The returned error
// is for the submitter only; successful state transitions are broadcast by
// the executor before Submit returns.
func (r *Room) Submit(ctx context.Context, cmd *Command) error {
	resp := make(chan error, 1)
	select {
	case r.cmdCh <- request{cmd: cmd, resp: resp}:
	case <-r.done:
		return Errf(wire.CodeGameLost, "room %s is gone", r.id)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SnapshotFor returns a fresh filtered snapshot for identity without
// mutating anything.
func (r *Room) SnapshotFor(ctx context.Context, identity string) (*wire.Message, error) {
	var msg *wire.Message
	err := r.call(ctx, func() { msg = r.buildSnapshot(identity) })
	return msg, err
}

// Disconnect marks the identity's seat as disconnected and starts the grace
// window. The seat stays human until the window runs out.
func (r *Room) Disconnect(identity string) {
	r.post(func() {
		seat, ok := r.seats.markDisconnected(identity)
		if !ok {
			return
		}
		r.log.Debugf("room %s: seat %d (%s) disconnected, grace %s",
			r.id, seat, identity, r.cfg.GraceWindow)
		if t, ok := r.grace[seat]; ok {
			t.Stop()
		}
		r.grace[seat] = time.AfterFunc(r.cfg.GraceWindow, func() {
			r.post(func() { r.graceExpired(seat, identity) })
		})
	})
}

// Reattach rebinds a reconnecting identity to its seat and pushes a fresh
// snapshot. It reports false after AI substitution: the AI keeps the seat
// until the room ends.
func (r *Room) Reattach(ctx context.Context, identity string) (bool, error) {
	var ok bool
	err := r.call(ctx, func() {
		var seat int
		seat, ok = r.seats.markConnected(identity)
		if !ok {
			return
		}
		if t, found := r.grace[seat]; found {
			t.Stop()
			delete(r.grace, seat)
		}
		r.log.Debugf("room %s: seat %d (%s) reattached", r.id, seat, identity)
		r.send(identity, r.buildSnapshot(identity))
		if !r.overFlag.Load() && r.module.CurrentSeat() == seat {
			r.send(identity, r.promptFor(seat))
		}
	})
	return ok, err
}

// graceExpired substitutes a seat whose human never came back. Idempotent:
// the fingerprint check makes a second expiry a no-op.
func (r *Room) graceExpired(seat int, identity string) {
	s := r.seats.Seat(seat)
	if s.IsAI || s.Connected || s.Identity != identity {
		return
	}
	r.log.Infof("room %s: seat %d grace expired, substituting AI", r.id, seat)
	r.bootSeat(seat)
}

// ---------- command dispatch ----------

func (r *Room) handleCommand(cmd *Command) error {
	switch cmd.Type {
	case wire.MsgRequestState:
		return r.handleRequestState(cmd)
	case wire.MsgLeaveGame:
		return r.handleLeaveGame(cmd)
	case wire.MsgBootPlayer:
		return r.handleBootPlayer(cmd)
	}
	if wire.IsAction(cmd.Type) {
		return r.handleAction(cmd)
	}
	return Errf(wire.CodeInvalidAction, "room does not accept %s", cmd.Type)
}

// handleRequestState never mutates: a fresh snapshot, plus the turn prompt
// when the submitter holds the turn.
func (r *Room) handleRequestState(cmd *Command) error {
	r.send(cmd.Identity, r.buildSnapshot(cmd.Identity))
	if seat, ok := r.seats.SeatOf(cmd.Identity); ok &&
		!r.overFlag.Load() && r.module.CurrentSeat() == seat {
		r.send(cmd.Identity, r.promptFor(seat))
	}
	return nil
}

func (r *Room) handleLeaveGame(cmd *Command) error {
	seat, ok := r.seats.SeatOf(cmd.Identity)
	if !ok {
		return Errf(wire.CodeNotSeated, "you are not seated in this room")
	}
	name := r.seats.Seat(seat).Name
	r.log.Infof("room %s: seat %d (%s) left", r.id, seat, name)
	r.broadcast(wire.MustCompose(wire.MsgPlayerLeft, wire.PlayerLeft{
		SeatIndex: seat, Name: name,
	}))
	r.bootSeat(seat)
	return nil
}

// handleBootPlayer is the host escalation for a stalled seat; the gateway
// enforces that only the host submits it.
func (r *Room) handleBootPlayer(cmd *Command) error {
	if r.overFlag.Load() {
		return Errf(wire.CodeGameOver, "game is over")
	}
	var bp wire.BootPlayer
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &bp); err != nil {
			return Errf(wire.CodeInvalidAction, "malformed boot_player payload: %v", err)
		}
	}
	if r.timedOut < 0 || bp.SeatIndex != r.timedOut {
		return Errf(wire.CodeInvalidAction, "seat %d is not timed out", bp.SeatIndex)
	}
	r.bootSeat(bp.SeatIndex)
	return nil
}

func (r *Room) handleAction(cmd *Command) error {
	if r.overFlag.Load() {
		return Errf(wire.CodeGameOver, "game is over")
	}
	if cmd.ExpectedStateSeq != nil && *cmd.ExpectedStateSeq != r.seq.Load() {
		return Errf(wire.CodeSyncRequired,
			"expected state %d, server is at %d", *cmd.ExpectedStateSeq, r.seq.Load())
	}
	seat, ok := r.seats.SeatOf(cmd.Identity)
	if !ok {
		return Errf(wire.CodeNotSeated, "you are not seated in this room")
	}

	events, err := r.applyModule(seat, games.Action{Type: cmd.Type, Payload: cmd.Payload})
	if err != nil {
		return err
	}
	r.commit(events)
	return nil
}

// applyModule delegates to the rule module with panic containment. On any
// error the module state is unchanged.
func (r *Room) applyModule(seat int, action games.Action) (events []games.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("rule module panic in room %s: %v\n%s", r.id, rec, debug.Stack())
			r.log.Debugf("phase %s, offending action: %s",
				r.module.Phase(), spew.Sdump(action))
			events, err = nil, Errf(wire.CodeInternal, "rule module fault")
		}
	}()
	events, err = r.module.Apply(seat, action)
	if errors.Is(err, games.ErrNotYourTurn) {
		return nil, Errf(wire.CodeNotYourTurn, "seat %d does not hold the turn", seat)
	}
	if games.IsValidation(err) {
		return nil, Errf(wire.CodeInvalidAction, "%v", err)
	}
	if err != nil {
		return nil, Errf(wire.CodeInternal, "%v", err)
	}
	return events, nil
}

// ---------- state commit and emission ----------

// commit publishes one applied mutation: bump the sequence, dispatch the
// rule module's domain events, then the per-recipient snapshots, then the
// follow-up (turn prompt, AI schedule or game over). Domain events precede
// the snapshot that advances past them so clients can animate first and
// reconcile second.
func (r *Room) commit(events []games.Event) {
	seq := r.seq.Add(1)
	r.timedOut = -1

	for _, ev := range events {
		r.broadcast(wire.MustCompose(ev.Type, ev.Payload))
	}
	r.broadcastSnapshots()

	if r.module.GameOver() {
		r.finishGame()
		return
	}

	cur := r.module.CurrentSeat()
	if r.seats.isHuman(cur) {
		r.timer.arm(cur, seq)
		r.send(r.seats.Seat(cur).Identity, r.promptFor(cur))
		return
	}
	r.timer.cancel()
	r.scheduleAI(cur, seq)
}

func (r *Room) finishGame() {
	r.overFlag.Store(true)
	r.timer.cancel()
	for seat, t := range r.grace {
		t.Stop()
		delete(r.grace, seat)
	}

	winners := r.module.Winners()
	names := make([]string, 0, len(winners))
	for _, w := range winners {
		names = append(names, r.seats.Seat(w).Name)
	}
	r.log.Infof("room %s: game over, %s", r.id, r.module.Summary())
	r.broadcast(wire.MustCompose(wire.MsgGameOver, wire.GameOver{
		Winners: winners,
		Names:   names,
		Summary: r.module.Summary(),
	}))
}

// scheduleAI queues an AI move after a think delay. The {seat, seq}
// fingerprint makes a stale callback a no-op, so cancellation is implicit.
func (r *Room) scheduleAI(seat int, seq uint64) {
	delay := r.cfg.AIDelay + time.Duration(r.cfg.Rng.Intn(300))*time.Millisecond
	time.AfterFunc(delay, func() {
		r.post(func() { r.aiFire(seat, seq) })
	})
}

func (r *Room) aiFire(seat int, seq uint64) {
	if r.overFlag.Load() || seq != r.seq.Load() || r.module.CurrentSeat() != seat {
		return
	}
	if r.seats.isHuman(seat) {
		return
	}
	action, ok := r.module.AIAction(seat)
	if !ok {
		return
	}
	events, err := r.applyModule(seat, action)
	if err != nil {
		// An AI move the module rejects is a bug in the AI heuristics;
		// log it and leave the turn to the resync path.
		r.log.Errorf("room %s: AI action for seat %d rejected: %v", r.id, seat, err)
		return
	}
	r.commit(events)
}

// markTimedOut records the stalled seat and tells everyone. It does not
// advance the state sequence: like reminders, the timeout mark is realtime
// metadata, not a game mutation.
func (r *Room) markTimedOut(seat int) {
	r.timedOut = seat
	name := r.seats.Seat(seat).Name
	r.log.Infof("room %s: seat %d (%s) timed out", r.id, seat, name)
	r.broadcast(wire.MustCompose(wire.MsgPlayerTimedOut, wire.PlayerTimedOut{
		SeatIndex: seat, PlayerName: name,
	}))
}

// bootSeat substitutes seat with AI, preserving team, hand and history, and
// lets the AI act if the seat holds the turn.
func (r *Room) bootSeat(seat int) {
	if t, ok := r.grace[seat]; ok {
		t.Stop()
		delete(r.grace, seat)
	}
	s, ok := r.seats.substitute(seat)
	if !ok {
		return
	}
	if r.timedOut == seat {
		r.timedOut = -1
	}
	if r.timer.armed && r.timer.seat == seat {
		r.timer.cancel()
	}
	if ob := r.cfg.Observer; ob != nil {
		ob.SeatBooted()
	}

	seq := r.seq.Add(1)
	r.broadcast(wire.MustCompose(wire.MsgPlayerBooted, wire.PlayerBooted{
		SeatIndex: seat, NewName: s.Name,
	}))
	r.broadcastSnapshots()

	if r.seats.HumanCount() == 0 {
		r.log.Infof("room %s: no humans remain, tearing down", r.id)
		if r.cfg.OnEmpty != nil {
			go r.cfg.OnEmpty(r.id)
		}
		return
	}
	if !r.overFlag.Load() && r.module.CurrentSeat() == seat {
		r.scheduleAI(seat, seq)
	}
}

// sendReminder re-sends the turn prompt as a reminder. Reminders carry the
// current valid actions and never change the state sequence.
func (r *Room) sendReminder(seat, count int) {
	s := r.seats.Seat(seat)
	if s.IsAI {
		return
	}
	r.send(s.Identity, wire.MustCompose(wire.MsgTurnReminder, wire.TurnReminder{
		ValidActions: r.module.ValidActions(seat),
		Reminders:    count,
	}).WithRoom(r.id))
}

// ---------- emission helpers ----------

func (r *Room) send(identity string, msg *wire.Message) {
	if identity == "" || r.sender == nil {
		return
	}
	r.sender.Send(identity, msg)
}

// broadcast delivers msg to every connected human.
func (r *Room) broadcast(msg *wire.Message) {
	msg = msg.WithRoom(r.id)
	for _, id := range r.seats.ConnectedIdentities() {
		r.send(id, msg)
	}
}

// broadcastSnapshots emits one freshly filtered snapshot per human,
// including disconnected seats still inside their grace window (the sender
// drops what it cannot deliver).
func (r *Room) broadcastSnapshots() {
	for _, id := range r.seats.HumanIdentities() {
		r.send(id, r.buildSnapshot(id))
		if ob := r.cfg.Observer; ob != nil {
			ob.SnapshotEmitted()
		}
	}
}

// buildSnapshot constructs the filtered per-recipient state. The recipient's
// own hand is complete; every other hand is reduced to a count.
func (r *Room) buildSnapshot(identity string) *wire.Message {
	seat, ok := r.seats.SeatOf(identity)
	if !ok {
		seat = -1
	}
	view := r.module.SnapshotFor(seat)
	gs := wire.GameState{
		Kind:         string(r.kind),
		StateSeq:     r.seq.Load(),
		Phase:        view.Phase,
		CurrentSeat:  view.CurrentSeat,
		Dealer:       view.Dealer,
		TimedOutSeat: r.timedOut,
		GameOver:     view.GameOver,
		YourSeat:     seat,
		Seats:        r.seats.wireSeats(view.HandCounts),
		Hand:         view.Hand,
		Game:         games.EncodePayload(view.Game),
	}
	return wire.MustCompose(wire.MsgGameState, gs).WithRoom(r.id)
}

// promptFor builds the directed your_turn prompt for the acting seat.
func (r *Room) promptFor(seat int) *wire.Message {
	yt := wire.YourTurn{
		StateSeq:     r.seq.Load(),
		ValidActions: r.module.ValidActions(seat),
	}
	if picks := r.module.ValidCards(seat); picks != nil {
		yt.ValidCards = cards.IDs(picks)
	}
	if sets := r.module.ValidPlays(seat); sets != nil {
		yt.ValidPlays = make([][]string, len(sets))
		for i, set := range sets {
			yt.ValidPlays[i] = cards.IDs(set)
		}
	}
	return wire.MustCompose(wire.MsgYourTurn, yt).WithRoom(r.id)
}
