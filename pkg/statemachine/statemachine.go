package statemachine

import (
	"reflect"
	"sync"
)

// StateFn represents a state function following Rob Pike's pattern. The
// state functions are the states themselves; each inspects the entity and
// returns the next state function, or nil to stop.
type StateFn[T any] func(*T) StateFn[T]

// StateMachine drives an entity through StateFn transitions. The rule
// modules use one per game to advance hands through dealing, bidding,
// playing and scoring.
type StateMachine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mutex   sync.RWMutex
}

// New creates a state machine for the given entity starting at initial.
func New[T any](entity *T, initial StateFn[T]) *StateMachine[T] {
	return &StateMachine[T]{
		entity:  entity,
		stateFn: initial,
	}
}

// Step executes the current state function once and transitions to whatever
// it returns. It reports false when the machine has stopped.
func (sm *StateMachine[T]) Step() bool {
	sm.mutex.RLock()
	fn := sm.stateFn
	sm.mutex.RUnlock()

	if fn == nil {
		return false
	}
	next := fn(sm.entity)

	sm.mutex.Lock()
	sm.stateFn = next
	sm.mutex.Unlock()
	return true
}

// Run steps the machine until it reaches a state that returns itself (a
// stable state) or stops. The limit guards against transition cycles that
// never settle.
func (sm *StateMachine[T]) Run(limit int) {
	for i := 0; i < limit; i++ {
		sm.mutex.RLock()
		before := sm.stateFn
		sm.mutex.RUnlock()

		if before == nil || !sm.Step() {
			return
		}

		sm.mutex.RLock()
		after := sm.stateFn
		sm.mutex.RUnlock()
		if after == nil {
			return
		}
		// Comparing function identity is intentional: a state that returns
		// itself is awaiting external input.
		if fnEqual(before, after) {
			return
		}
	}
}

// Current returns the current state function.
func (sm *StateMachine[T]) Current() StateFn[T] {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.stateFn
}

// Set replaces the state function without executing it.
func (sm *StateMachine[T]) Set(stateFn StateFn[T]) {
	sm.mutex.Lock()
	sm.stateFn = stateFn
	sm.mutex.Unlock()
}

// Stopped reports whether the machine has reached the nil state.
func (sm *StateMachine[T]) Stopped() bool {
	return sm.Current() == nil
}

// fnEqual compares state functions by code pointer. Function values are not
// directly comparable; the pointer is stable for named functions.
func fnEqual[T any](a, b StateFn[T]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
