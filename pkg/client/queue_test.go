package client

import (
	"testing"

	"github.com/cardroom/cardroom/pkg/wire"
)

func TestQueuePassThroughWhenDisabled(t *testing.T) {
	var applied []wire.Type
	q := newQueueController(func(m *wire.Message) { applied = append(applied, m.Type) })

	q.Submit(wire.MustCompose(wire.MsgCardPlayed, nil))
	if len(applied) != 1 || q.Len() != 0 {
		t.Fatalf("disabled queue did not pass through: applied=%v len=%d", applied, q.Len())
	}
}

func TestQueueBuffersAndFlushesInOrder(t *testing.T) {
	var applied []wire.Type
	q := newQueueController(func(m *wire.Message) { applied = append(applied, m.Type) })

	q.Enable()
	q.Submit(wire.MustCompose(wire.MsgCardPlayed, nil))
	q.Submit(wire.MustCompose(wire.MsgTrickComplete, nil))
	q.Submit(wire.MustCompose(wire.MsgGameState, nil))

	if len(applied) != 0 {
		t.Fatalf("enabled queue applied eagerly: %v", applied)
	}
	if q.Len() != 3 || !q.Enabled() {
		t.Fatalf("len=%d enabled=%v", q.Len(), q.Enabled())
	}

	q.Disable()
	want := []wire.Type{wire.MsgCardPlayed, wire.MsgTrickComplete, wire.MsgGameState}
	if len(applied) != len(want) {
		t.Fatalf("flushed %d messages, want %d", len(applied), len(want))
	}
	for i, typ := range want {
		if applied[i] != typ {
			t.Errorf("flush[%d] = %s, want %s", i, applied[i], typ)
		}
	}
	if q.Len() != 0 || q.Enabled() {
		t.Errorf("queue not drained/disabled after flush")
	}
}

func TestQueueDequeueAppliesOldest(t *testing.T) {
	var applied []wire.Type
	q := newQueueController(func(m *wire.Message) { applied = append(applied, m.Type) })

	q.Enable()
	q.Submit(wire.MustCompose(wire.MsgCardPlayed, nil))
	q.Submit(wire.MustCompose(wire.MsgTrickComplete, nil))

	msg := q.Dequeue()
	if msg == nil || msg.Type != wire.MsgCardPlayed {
		t.Fatalf("Dequeue returned %v", msg)
	}
	if len(applied) != 1 || applied[0] != wire.MsgCardPlayed {
		t.Fatalf("Dequeue did not apply: %v", applied)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}

	q.Dequeue()
	if q.Dequeue() != nil {
		t.Errorf("Dequeue on empty queue returned a message")
	}
}
