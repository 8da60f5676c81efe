package room

import (
	"fmt"
	"sync"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Seat is one fixed position in a room. Team membership derives from the
// index and kind and never changes; only the binding (human or AI) does.
type Seat struct {
	Index     int
	Team      int
	Name      string
	IsAI      bool
	Connected bool

	// Identity is the bound human's identity, retained after AI
	// substitution so the prior binding is auditable. An AI keeps its seat
	// until the room ends, so a retained identity never rebinds.
	Identity string

	// Substituted marks a seat whose human was replaced by AI.
	Substituted bool
}

// Human names one human occupant at room creation.
type Human struct {
	Identity string
	Name     string
	Seat     int
}

// seatManager owns the identity to seat mapping of one room. Mutations only
// happen on the room's executor goroutine; the mutex makes reads from the
// gateway safe.
type seatManager struct {
	mtx   sync.RWMutex
	kind  games.Kind
	seats []Seat
}

func newSeatManager(kind games.Kind, count int, humans []Human) (*seatManager, error) {
	sm := &seatManager{
		kind:  kind,
		seats: make([]Seat, count),
	}
	for i := range sm.seats {
		sm.seats[i] = Seat{
			Index: i,
			Team:  kind.Team(i),
			Name:  fmt.Sprintf("CPU %d", i+1),
			IsAI:  true,
		}
	}
	for _, h := range humans {
		if h.Seat < 0 || h.Seat >= count {
			return nil, fmt.Errorf("seat %d out of range for %d seats", h.Seat, count)
		}
		if !sm.seats[h.Seat].IsAI {
			return nil, fmt.Errorf("seat %d assigned twice", h.Seat)
		}
		if _, ok := sm.seatOf(h.Identity); ok {
			return nil, fmt.Errorf("identity %s assigned twice", h.Identity)
		}
		sm.seats[h.Seat] = Seat{
			Index:     h.Seat,
			Team:      kind.Team(h.Seat),
			Name:      h.Name,
			Identity:  h.Identity,
			Connected: true,
		}
	}
	return sm, nil
}

// seatOf is the lock-free lookup used internally.
func (sm *seatManager) seatOf(identity string) (int, bool) {
	if identity == "" {
		return -1, false
	}
	for i := range sm.seats {
		if !sm.seats[i].IsAI && sm.seats[i].Identity == identity {
			return i, true
		}
	}
	return -1, false
}

// SeatOf returns the seat index bound to identity, or false when the
// identity holds no seat (including after AI substitution).
func (sm *seatManager) SeatOf(identity string) (int, bool) {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	return sm.seatOf(identity)
}

// Seats returns a copy of all seats.
func (sm *seatManager) Seats() []Seat {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	out := make([]Seat, len(sm.seats))
	copy(out, sm.seats)
	return out
}

func (sm *seatManager) Seat(i int) Seat {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	return sm.seats[i]
}

// HumanCount returns how many seats are still bound to humans.
func (sm *seatManager) HumanCount() int {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	n := 0
	for i := range sm.seats {
		if !sm.seats[i].IsAI {
			n++
		}
	}
	return n
}

// ConnectedIdentities lists the identities that should receive broadcasts.
func (sm *seatManager) ConnectedIdentities() []string {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	var out []string
	for i := range sm.seats {
		if !sm.seats[i].IsAI && sm.seats[i].Connected {
			out = append(out, sm.seats[i].Identity)
		}
	}
	return out
}

// HumanIdentities lists every identity still holding a seat, connected or
// not.
func (sm *seatManager) HumanIdentities() []string {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	var out []string
	for i := range sm.seats {
		if !sm.seats[i].IsAI {
			out = append(out, sm.seats[i].Identity)
		}
	}
	return out
}

// isHuman reports whether seat i is human, without the AI flag race.
func (sm *seatManager) isHuman(i int) bool {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	return i >= 0 && i < len(sm.seats) && !sm.seats[i].IsAI
}

// markDisconnected flags the identity's seat as disconnected. The seat stays
// human until the grace window runs out.
func (sm *seatManager) markDisconnected(identity string) (int, bool) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	i, ok := sm.seatOf(identity)
	if !ok {
		return -1, false
	}
	sm.seats[i].Connected = false
	return i, true
}

// markConnected rebinds a reconnecting identity to its seat. It fails after
// AI substitution: the AI keeps the seat until the room ends.
func (sm *seatManager) markConnected(identity string) (int, bool) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	i, ok := sm.seatOf(identity)
	if !ok {
		return -1, false
	}
	sm.seats[i].Connected = true
	return i, true
}

// substitute replaces seat i with an AI. Team, index, and the rule module's
// per-seat state (hand, bids, tricks) are untouched. Idempotent: a second
// substitution is a no-op.
func (sm *seatManager) substitute(i int) (Seat, bool) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	if i < 0 || i >= len(sm.seats) || sm.seats[i].IsAI {
		return Seat{}, false
	}
	s := &sm.seats[i]
	s.IsAI = true
	s.Connected = false
	s.Substituted = true
	s.Name = fmt.Sprintf("%s (CPU)", s.Name)
	return *s, true
}

// wireSeats projects the seats into their public wire form.
func (sm *seatManager) wireSeats(handCounts []int) []wire.SeatInfo {
	sm.mtx.RLock()
	defer sm.mtx.RUnlock()
	out := make([]wire.SeatInfo, len(sm.seats))
	for i := range sm.seats {
		s := &sm.seats[i]
		out[i] = wire.SeatInfo{
			Index:     s.Index,
			Name:      s.Name,
			IsAI:      s.IsAI,
			Connected: s.Connected,
			Team:      s.Team,
		}
		if i < len(handCounts) {
			out[i].HandCount = handCounts[i]
		}
	}
	return out
}
