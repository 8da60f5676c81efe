package client

import (
	"sync"
	"testing"
	"time"

	"github.com/cardroom/cardroom/pkg/wire"
)

func TestNotificationRegistration(t *testing.T) {
	nmgr := NewNotificationManager()

	calls := 0
	reg := nmgr.RegisterSync(onTestNtfn(func() { calls++ }))

	nmgr.notifyTest()
	nmgr.notifyTest()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}

	if !reg.Unregister() {
		t.Fatalf("first Unregister reported false")
	}
	nmgr.notifyTest()
	if calls != 2 {
		t.Fatalf("handler fired after unregister")
	}
	if reg.Unregister() {
		t.Errorf("second Unregister reported true")
	}
}

func TestNotificationSyncOrdering(t *testing.T) {
	nmgr := NewNotificationManager()

	var got []uint64
	nmgr.RegisterSync(OnGameStateNtfn(func(gs *wire.GameState, _ time.Time) {
		got = append(got, gs.StateSeq)
	}))

	for seq := uint64(1); seq <= 3; seq++ {
		nmgr.notifyGameState(&wire.GameState{StateSeq: seq}, time.Now())
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("sync handlers out of order: %v", got)
	}
}

func TestUINotificationBatching(t *testing.T) {
	nmgr := NewNotificationManager()
	nmgr.UpdateUIConfig(UINotificationsConfig{
		GameStarted:  true,
		YourTurn:     true,
		MaxLength:    255,
		EmitInterval: 20 * time.Millisecond,
	})

	var mtx sync.Mutex
	var emitted []UINotification
	nmgr.RegisterSync(OnUINotification(func(n UINotification) {
		mtx.Lock()
		emitted = append(emitted, n)
		mtx.Unlock()
	}))

	ts := time.Now()
	nmgr.notifyGameStarted(wire.GameStarted{RoomID: "r1", Kind: "euchre"}, ts)
	nmgr.notifyYourTurn(&wire.YourTurn{StateSeq: 1}, ts)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mtx.Lock()
		n := len(emitted)
		mtx.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no batched UI notification emitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mtx.Lock()
	defer mtx.Unlock()
	if len(emitted) != 1 {
		t.Fatalf("emitted %d notifications, want 1 batch", len(emitted))
	}
	if emitted[0].Type != UINtfnMultiple || emitted[0].Count != 2 {
		t.Errorf("batch = %+v", emitted[0])
	}
}
