package client

import (
	"sync"

	"github.com/cardroom/cardroom/pkg/wire"
)

// QueueController decouples visual animation pacing from event application.
// While enabled, incoming snapshots and domain events are held in a FIFO and
// the UI steps through them with Dequeue; disabling flushes the remainder in
// order. Side-band concerns (tracking the newest authoritative stateSeq,
// reacting to sync_required) are handled by the client before enqueueing, so
// a paused queue never stalls outbound commands or resyncs.
type QueueController struct {
	mtx     sync.Mutex
	enabled bool
	fifo    []*wire.Message

	// apply consumes one message in arrival order. Invoked without the
	// controller lock held.
	apply func(*wire.Message)
}

func newQueueController(apply func(*wire.Message)) *QueueController {
	return &QueueController{apply: apply}
}

// Enable starts buffering incoming messages instead of applying them.
func (q *QueueController) Enable() {
	q.mtx.Lock()
	q.enabled = true
	q.mtx.Unlock()
}

// Disable flushes the FIFO, applying each held message exactly once in
// arrival order, then returns the controller to pass-through mode.
func (q *QueueController) Disable() {
	q.mtx.Lock()
	pending := q.fifo
	q.fifo = nil
	q.enabled = false
	q.mtx.Unlock()

	for _, msg := range pending {
		q.apply(msg)
	}
}

// Submit routes one message through the controller: buffered when enabled,
// applied immediately otherwise.
func (q *QueueController) Submit(msg *wire.Message) {
	q.mtx.Lock()
	if q.enabled {
		q.fifo = append(q.fifo, msg)
		q.mtx.Unlock()
		return
	}
	q.mtx.Unlock()
	q.apply(msg)
}

// Dequeue applies and returns the oldest held message, or nil when the FIFO
// is empty. The UI calls this once per finished animation step.
func (q *QueueController) Dequeue() *wire.Message {
	q.mtx.Lock()
	if len(q.fifo) == 0 {
		q.mtx.Unlock()
		return nil
	}
	msg := q.fifo[0]
	q.fifo = q.fifo[1:]
	q.mtx.Unlock()

	q.apply(msg)
	return msg
}

// Len reports the number of held messages.
func (q *QueueController) Len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.fifo)
}

// Enabled reports whether the controller is buffering.
func (q *QueueController) Enabled() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.enabled
}
