package room

import (
	"sync"
)

// Registry maps room IDs to live rooms. Lookups after a room is torn down
// answer false so callers can report game_lost instead of hanging.
type Registry struct {
	mtx   sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) Put(r *Room) {
	reg.mtx.Lock()
	defer reg.mtx.Unlock()
	reg.rooms[r.ID()] = r
}

// Lookup returns the live room for id.
func (reg *Registry) Lookup(id string) (*Room, bool) {
	reg.mtx.RLock()
	defer reg.mtx.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Remove drops and stops the room. Safe to call twice.
func (reg *Registry) Remove(id string) {
	reg.mtx.Lock()
	r, ok := reg.rooms[id]
	delete(reg.rooms, id)
	reg.mtx.Unlock()
	if ok {
		r.Stop()
	}
}

func (reg *Registry) Count() int {
	reg.mtx.RLock()
	defer reg.mtx.RUnlock()
	return len(reg.rooms)
}

// RoomsFor lists the rooms in which identity still holds a seat. Used on
// reconnect to reattach a returning client.
func (reg *Registry) RoomsFor(identity string) []*Room {
	reg.mtx.RLock()
	defer reg.mtx.RUnlock()
	var out []*Room
	for _, r := range reg.rooms {
		if _, ok := r.SeatOf(identity); ok {
			out = append(out, r)
		}
	}
	return out
}

// Each calls fn for every live room. fn must not call back into the
// registry.
func (reg *Registry) Each(fn func(*Room)) {
	reg.mtx.RLock()
	defer reg.mtx.RUnlock()
	for _, r := range reg.rooms {
		fn(r)
	}
}
