package room

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cardroom/cardroom/pkg/games"
	_ "github.com/cardroom/cardroom/pkg/games/euchre"
	"github.com/cardroom/cardroom/pkg/wire"
)

// fakeSender records every delivered message per identity.
type fakeSender struct {
	mtx  sync.Mutex
	msgs map[string][]*wire.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{msgs: make(map[string][]*wire.Message)}
}

func (fs *fakeSender) Send(identity string, msg *wire.Message) {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	fs.msgs[identity] = append(fs.msgs[identity], msg)
}

func (fs *fakeSender) ofType(identity string, t wire.Type) []*wire.Message {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	var out []*wire.Message
	for _, m := range fs.msgs[identity] {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (fs *fakeSender) last(identity string, t wire.Type) *wire.Message {
	all := fs.ofType(identity, t)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

var testIdentities = []string{"id-0", "id-1", "id-2", "id-3"}

func fourHumans() []Human {
	out := make([]Human, 4)
	for i := range out {
		out[i] = Human{Identity: testIdentities[i], Name: testIdentities[i], Seat: i}
	}
	return out
}

// newTestRoom builds a started euchre room with four humans. Timers default
// to values that never fire inside a test; individual tests shorten them.
func newTestRoom(t *testing.T, mod func(*Config)) (*Room, *fakeSender) {
	t.Helper()
	fs := newFakeSender()
	cfg := Config{
		ID:     "room-test",
		Kind:   games.Euchre,
		Humans: fourHumans(),
		Rng:    rand.New(rand.NewSource(11)),
		Sender: fs,

		ReminderInterval: time.Hour,
		AutoBootDelay:    time.Hour,
		GraceWindow:      time.Hour,
		AIDelay:          time.Hour,
	}
	if mod != nil {
		mod(&cfg)
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Stop)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r, fs
}

func seqPtr(v uint64) *uint64 { return &v }

// currentIdentity returns the identity holding the turn.
func currentIdentity(t *testing.T, r *Room) string {
	t.Helper()
	msg, err := r.SnapshotFor(context.Background(), testIdentities[0])
	if err != nil {
		t.Fatalf("SnapshotFor: %v", err)
	}
	var gs wire.GameState
	if err := msg.Decode(&gs); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if gs.CurrentSeat < 0 {
		t.Fatalf("no current seat")
	}
	return testIdentities[gs.CurrentSeat]
}

func submit(r *Room, identity string, typ wire.Type, seq *uint64, payload any) error {
	cmd := &Command{Identity: identity, Type: typ, ExpectedStateSeq: seq}
	if payload != nil {
		cmd.Payload = games.EncodePayload(payload)
	}
	return r.Submit(context.Background(), cmd)
}

func passBid(r *Room, identity string, seq uint64) error {
	return submit(r, identity, wire.MsgMakeBid, seqPtr(seq),
		wire.EuchreBid{Action: "pass"})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartDealsAndPrompts(t *testing.T) {
	r, fs := newTestRoom(t, nil)

	if got := r.StateSeq(); got != 1 {
		t.Fatalf("stateSeq after start = %d, want 1", got)
	}
	for i, id := range testIdentities {
		msg := fs.last(id, wire.MsgGameState)
		if msg == nil {
			t.Fatalf("identity %s got no snapshot", id)
		}
		var gs wire.GameState
		if err := msg.Decode(&gs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if gs.StateSeq != 1 {
			t.Errorf("snapshot stateSeq = %d, want 1", gs.StateSeq)
		}
		if gs.YourSeat != i {
			t.Errorf("identity %s yourSeat = %d, want %d", id, gs.YourSeat, i)
		}
		if len(gs.Hand) != 5 {
			t.Errorf("identity %s hand size = %d, want 5", id, len(gs.Hand))
		}
	}

	cur := currentIdentity(t, r)
	prompt := fs.last(cur, wire.MsgYourTurn)
	if prompt == nil {
		t.Fatalf("current seat got no your_turn")
	}
	var yt wire.YourTurn
	if err := prompt.Decode(&yt); err != nil {
		t.Fatalf("decode prompt: %v", err)
	}
	if yt.StateSeq != 1 {
		t.Errorf("prompt stateSeq = %d, want 1", yt.StateSeq)
	}
	if len(yt.ValidActions) == 0 {
		t.Errorf("prompt has no valid actions")
	}
	for _, id := range testIdentities {
		if id != cur && len(fs.ofType(id, wire.MsgYourTurn)) != 0 {
			t.Errorf("identity %s got a your_turn without holding the turn", id)
		}
	}
}

func TestStaleSeqRejectedWithoutMutation(t *testing.T) {
	r, _ := newTestRoom(t, nil)
	cur := currentIdentity(t, r)

	if err := passBid(r, cur, 1); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if got := r.StateSeq(); got != 2 {
		t.Fatalf("stateSeq after bid = %d, want 2", got)
	}

	// Replaying against the old sequence must reject without mutating.
	next := currentIdentity(t, r)
	err := passBid(r, next, 1)
	if CodeOf(err) != wire.CodeSyncRequired {
		t.Fatalf("stale bid error = %v, want sync_required", err)
	}
	if got := r.StateSeq(); got != 2 {
		t.Errorf("stateSeq after stale bid = %d, want 2", got)
	}
}

func TestNotYourTurn(t *testing.T) {
	r, _ := newTestRoom(t, nil)
	cur := currentIdentity(t, r)

	var other string
	for _, id := range testIdentities {
		if id != cur {
			other = id
			break
		}
	}
	err := passBid(r, other, 1)
	if CodeOf(err) != wire.CodeNotYourTurn {
		t.Fatalf("off-turn bid error = %v, want not_your_turn", err)
	}
	if got := r.StateSeq(); got != 1 {
		t.Errorf("stateSeq after rejected bid = %d, want 1", got)
	}
}

func TestNotSeated(t *testing.T) {
	r, _ := newTestRoom(t, nil)
	err := passBid(r, "stranger", 1)
	if CodeOf(err) != wire.CodeNotSeated {
		t.Fatalf("stranger bid error = %v, want not_seated", err)
	}
}

func TestRequestStateIsIdempotent(t *testing.T) {
	r, fs := newTestRoom(t, nil)
	cur := currentIdentity(t, r)

	for i := 0; i < 2; i++ {
		if err := submit(r, cur, wire.MsgRequestState, nil, nil); err != nil {
			t.Fatalf("request_state: %v", err)
		}
	}
	if got := r.StateSeq(); got != 1 {
		t.Errorf("stateSeq after request_state = %d, want 1", got)
	}
	// Start snapshot plus two refreshes, each with a turn prompt.
	if got := len(fs.ofType(cur, wire.MsgGameState)); got != 3 {
		t.Errorf("snapshot count = %d, want 3", got)
	}
	if got := len(fs.ofType(cur, wire.MsgYourTurn)); got != 3 {
		t.Errorf("prompt count = %d, want 3", got)
	}
}

func TestDomainEventsPrecedeSnapshots(t *testing.T) {
	r, fs := newTestRoom(t, nil)
	cur := currentIdentity(t, r)
	if err := passBid(r, cur, 1); err != nil {
		t.Fatalf("bid: %v", err)
	}

	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	bidAt, snapAt := -1, -1
	for i, m := range fs.msgs[cur] {
		switch {
		case m.Type == wire.MsgBidMade && bidAt < 0:
			bidAt = i
		case m.Type == wire.MsgGameState:
			snapAt = i
		}
	}
	if bidAt < 0 {
		t.Fatalf("no bid_made event delivered")
	}
	if snapAt < bidAt {
		t.Errorf("snapshot at %d precedes bid_made at %d", snapAt, bidAt)
	}
}

func TestReconnectWithinGraceKeepsSeat(t *testing.T) {
	r, fs := newTestRoom(t, nil)
	id := testIdentities[1]

	r.Disconnect(id)
	waitFor(t, "disconnect", func() bool { return !r.seats.Seat(1).Connected })

	ok, err := r.Reattach(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("Reattach = %v, %v, want true", ok, err)
	}
	if s := r.seats.Seat(1); s.IsAI || !s.Connected {
		t.Fatalf("seat 1 after reattach = %+v, want connected human", s)
	}
	// Reattach pushes a fresh snapshot.
	if got := len(fs.ofType(id, wire.MsgGameState)); got < 2 {
		t.Errorf("snapshot count after reattach = %d, want >= 2", got)
	}
}

func TestGraceExpirySubstitutesAI(t *testing.T) {
	r, fs := newTestRoom(t, func(cfg *Config) {
		cfg.GraceWindow = 10 * time.Millisecond
	})
	cur := currentIdentity(t, r)
	var id string
	for _, cand := range testIdentities {
		if cand != cur {
			id = cand
			break
		}
	}
	seat, _ := r.SeatOf(id)
	seqBefore := r.StateSeq()

	r.Disconnect(id)
	waitFor(t, "substitution", func() bool { return r.seats.Seat(seat).IsAI })

	if got := r.StateSeq(); got != seqBefore+1 {
		t.Errorf("stateSeq after substitution = %d, want %d", got, seqBefore+1)
	}
	if msg := fs.last(cur, wire.MsgPlayerBooted); msg == nil {
		t.Errorf("no player_booted broadcast")
	}
	// The AI keeps the seat: the returning human is no longer seated.
	if ok, err := r.Reattach(context.Background(), id); err != nil || ok {
		t.Errorf("Reattach after substitution = %v, %v, want false", ok, err)
	}
	if _, ok := r.SeatOf(id); ok {
		t.Errorf("identity %s still seated after substitution", id)
	}
}

func TestTimeoutEscalationAutoBoots(t *testing.T) {
	r, fs := newTestRoom(t, func(cfg *Config) {
		cfg.ReminderInterval = 10 * time.Millisecond
		cfg.BootThreshold = 2
		cfg.AutoBootDelay = 10 * time.Millisecond
	})
	cur := currentIdentity(t, r)
	seat, _ := r.SeatOf(cur)

	waitFor(t, "auto boot", func() bool { return r.seats.Seat(seat).IsAI })

	if got := len(fs.ofType(cur, wire.MsgTurnReminder)); got < 2 {
		t.Errorf("reminder count = %d, want >= 2", got)
	}
	var other string
	for _, cand := range testIdentities {
		if cand != cur {
			other = cand
			break
		}
	}
	if msg := fs.last(other, wire.MsgPlayerTimedOut); msg == nil {
		t.Errorf("no player_timed_out broadcast")
	}
	booted := fs.last(other, wire.MsgPlayerBooted)
	if booted == nil {
		t.Fatalf("no player_booted broadcast")
	}
	var pb wire.PlayerBooted
	if err := booted.Decode(&pb); err != nil {
		t.Fatalf("decode player_booted: %v", err)
	}
	if pb.SeatIndex != seat {
		t.Errorf("booted seat = %d, want %d", pb.SeatIndex, seat)
	}
}

func TestRemindersDoNotAdvanceStateSeq(t *testing.T) {
	r, fs := newTestRoom(t, func(cfg *Config) {
		cfg.ReminderInterval = 10 * time.Millisecond
		cfg.BootThreshold = 50
	})
	cur := currentIdentity(t, r)

	waitFor(t, "reminders", func() bool {
		return len(fs.ofType(cur, wire.MsgTurnReminder)) >= 2
	})
	if got := r.StateSeq(); got != 1 {
		t.Errorf("stateSeq after reminders = %d, want 1", got)
	}
}

func TestBootPlayerRequiresTimedOutSeat(t *testing.T) {
	r, _ := newTestRoom(t, nil)
	cur := currentIdentity(t, r)
	seat, _ := r.SeatOf(cur)

	err := submit(r, testIdentities[0], wire.MsgBootPlayer, nil,
		wire.BootPlayer{SeatIndex: seat})
	if CodeOf(err) != wire.CodeInvalidAction {
		t.Fatalf("premature boot error = %v, want invalid_action", err)
	}
	if r.seats.Seat(seat).IsAI {
		t.Errorf("seat %d substituted by rejected boot", seat)
	}
}

func TestHostBootAfterTimeout(t *testing.T) {
	r, fs := newTestRoom(t, func(cfg *Config) {
		cfg.ReminderInterval = 10 * time.Millisecond
		cfg.BootThreshold = 1
	})
	cur := currentIdentity(t, r)
	seat, _ := r.SeatOf(cur)

	var other string
	for _, cand := range testIdentities {
		if cand != cur {
			other = cand
			break
		}
	}
	waitFor(t, "timed out mark", func() bool {
		return fs.last(other, wire.MsgPlayerTimedOut) != nil
	})

	if err := submit(r, other, wire.MsgBootPlayer, nil,
		wire.BootPlayer{SeatIndex: seat}); err != nil {
		t.Fatalf("boot_player: %v", err)
	}
	if !r.seats.Seat(seat).IsAI {
		t.Errorf("seat %d not substituted by host boot", seat)
	}
}

func TestLeaveGameSubstitutesImmediately(t *testing.T) {
	r, fs := newTestRoom(t, nil)
	id := testIdentities[2]

	if err := submit(r, id, wire.MsgLeaveGame, nil, nil); err != nil {
		t.Fatalf("leave_game: %v", err)
	}
	if !r.seats.Seat(2).IsAI {
		t.Errorf("seat 2 not substituted after leave")
	}
	if _, ok := r.SeatOf(id); ok {
		t.Errorf("identity %s still seated after leave", id)
	}
	if msg := fs.last(testIdentities[0], wire.MsgPlayerLeft); msg == nil {
		t.Errorf("no player_left broadcast")
	}
}

func TestLastHumanLeavingTearsDownRoom(t *testing.T) {
	empty := make(chan string, 1)
	fs := newFakeSender()
	r, err := New(Config{
		ID:      "solo",
		Kind:    games.Euchre,
		Humans:  []Human{{Identity: "solo-id", Name: "solo", Seat: 0}},
		Rng:     rand.New(rand.NewSource(3)),
		Sender:  fs,
		OnEmpty: func(id string) { empty <- id },

		ReminderInterval: time.Hour,
		AutoBootDelay:    time.Hour,
		GraceWindow:      time.Hour,
		AIDelay:          time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := submit(r, "solo-id", wire.MsgLeaveGame, nil, nil); err != nil {
		t.Fatalf("leave_game: %v", err)
	}
	select {
	case id := <-empty:
		if id != "solo" {
			t.Errorf("OnEmpty room id = %q, want solo", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("OnEmpty never called")
	}
}

func TestAIPlaysWhenScheduled(t *testing.T) {
	r, _ := newTestRoom(t, func(cfg *Config) {
		cfg.AIDelay = time.Millisecond
		cfg.GraceWindow = time.Millisecond
	})
	// Give the turn holder's seat to AI via disconnect, then watch the game
	// advance without any human input.
	cur := currentIdentity(t, r)
	seat, _ := r.SeatOf(cur)
	r.Disconnect(cur)

	waitFor(t, "AI move", func() bool {
		return r.seats.Seat(seat).IsAI && r.StateSeq() > 2
	})
}

func TestSnapshotForUnseatedIdentityHidesHands(t *testing.T) {
	r, _ := newTestRoom(t, nil)
	msg, err := r.SnapshotFor(context.Background(), "observer")
	if err != nil {
		t.Fatalf("SnapshotFor: %v", err)
	}
	var gs wire.GameState
	if err := msg.Decode(&gs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gs.YourSeat != -1 {
		t.Errorf("observer yourSeat = %d, want -1", gs.YourSeat)
	}
	if len(gs.Hand) != 0 {
		t.Errorf("observer sees a hand of %d cards", len(gs.Hand))
	}
	for _, s := range gs.Seats {
		if s.HandCount != 5 {
			t.Errorf("seat %d handCount = %d, want 5", s.Index, s.HandCount)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	r, _ := newTestRoom(t, nil)
	reg.Put(r)

	if got, ok := reg.Lookup(r.ID()); !ok || got != r {
		t.Fatalf("Lookup after Put failed")
	}
	if rooms := reg.RoomsFor(testIdentities[0]); len(rooms) != 1 {
		t.Fatalf("RoomsFor = %d rooms, want 1", len(rooms))
	}
	if rooms := reg.RoomsFor("stranger"); len(rooms) != 0 {
		t.Fatalf("RoomsFor stranger = %d rooms, want 0", len(rooms))
	}

	reg.Remove(r.ID())
	if _, ok := reg.Lookup(r.ID()); ok {
		t.Fatalf("Lookup after Remove succeeded")
	}
	if reg.Count() != 0 {
		t.Fatalf("Count after Remove = %d", reg.Count())
	}
	// The removed room is stopped: submissions answer game_lost.
	err := passBid(r, testIdentities[0], 1)
	if CodeOf(err) != wire.CodeGameLost {
		t.Fatalf("submit to removed room = %v, want game_lost", err)
	}
}
