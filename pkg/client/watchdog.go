package client

import (
	"context"
	"time"

	"github.com/decred/slog"
)

// Watchdog staleness policy. A silent server is indistinguishable from a
// dropped snapshot, so the client asks for a fresh one after a bounded quiet
// period, sooner when it believes it holds the turn.
const (
	watchdogInterval = 5 * time.Second
	myTurnStaleAfter = 10 * time.Second
	idleStaleAfter   = 30 * time.Second
)

// watchdog requests a fresh snapshot when the store has gone quiet for too
// long. request sends request_state for the store's room.
type watchdog struct {
	store   *Store
	log     slog.Logger
	request func()
}

func (w *watchdog) run(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.check(now)
		}
	}
}

// check fires one staleness probe. Split from run for tests.
func (w *watchdog) check(now time.Time) {
	last := w.store.LastSnapshotAt()
	if w.store.RoomID() == "" || last.IsZero() || w.store.GameOver() != nil {
		return
	}
	limit := idleStaleAfter
	if w.store.IsMyTurn() {
		limit = myTurnStaleAfter
	}
	if age := now.Sub(last); age > limit {
		w.log.Debugf("no snapshot for %v (limit %v), requesting state", age, limit)
		w.request()
	}
}
