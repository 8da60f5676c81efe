package room

import (
	"time"
)

// turnTimer keeps a game moving when a human stalls: reminders every
// ReminderInterval, escalation to a timed-out mark at BootThreshold, then an
// automatic boot if the host does not act. All fields are owned by the room
// executor; AfterFunc callbacks re-enter through the room's command channel
// carrying a {seat, stateSeq} fingerprint, so a stale fire is a no-op and
// explicit cancellation is best effort.
type turnTimer struct {
	room *Room

	armed     bool
	seat      int
	seq       uint64
	reminders int
	pending   *time.Timer
}

func newTurnTimer(r *Room) *turnTimer {
	return &turnTimer{room: r, seat: -1}
}

// arm starts the reminder cadence for a human turn. Re-arming for the same
// seat at the same stateSeq keeps the running cadence (request_state must
// not reset the clock).
func (tt *turnTimer) arm(seat int, seq uint64) {
	if tt.armed && tt.seat == seat && tt.seq == seq {
		return
	}
	tt.cancel()
	tt.armed = true
	tt.seat = seat
	tt.seq = seq
	tt.reminders = 0
	tt.schedule(tt.room.cfg.ReminderInterval)
}

// cancel disarms the timer. The pending AfterFunc may still fire but its
// fingerprint no longer matches.
func (tt *turnTimer) cancel() {
	if tt.pending != nil {
		tt.pending.Stop()
		tt.pending = nil
	}
	tt.armed = false
	tt.seat = -1
	tt.reminders = 0
}

func (tt *turnTimer) schedule(d time.Duration) {
	seat, seq := tt.seat, tt.seq
	tt.pending = time.AfterFunc(d, func() {
		tt.room.post(func() { tt.fire(seat, seq) })
	})
}

// fire handles one reminder tick on the room executor.
func (tt *turnTimer) fire(seat int, seq uint64) {
	if !tt.armed || tt.seat != seat || tt.seq != seq {
		return
	}
	tt.reminders++
	if tt.reminders < tt.room.cfg.BootThreshold {
		tt.room.sendReminder(seat, tt.reminders)
		tt.schedule(tt.room.cfg.ReminderInterval)
		return
	}

	// Threshold reached: mark the seat timed out and give the host a
	// window to boot before the room does it itself.
	tt.room.sendReminder(seat, tt.reminders)
	tt.room.markTimedOut(seat)
	tt.pending = time.AfterFunc(tt.room.cfg.AutoBootDelay, func() {
		tt.room.post(func() { tt.autoBoot(seat, seq) })
	})
}

// autoBoot substitutes the stalled seat when the host never issued the boot.
func (tt *turnTimer) autoBoot(seat int, seq uint64) {
	if !tt.armed || tt.seat != seat || tt.seq != seq {
		return
	}
	tt.room.log.Infof("seat %d auto-booted after %d reminders", seat, tt.reminders)
	tt.room.bootSeat(seat)
}
