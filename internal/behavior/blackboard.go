// Package behavior executes plans as behavior trees.
//
// PlanTree turns a planner result into a fixed sequence that re-checks each
// step against the live Blackboard before running it. ReactiveState instead
// hands the instantiated actions to a PA-BT planner, which grows the tree
// on demand from whichever goal condition currently fails.
package behavior

import (
	"sort"
	"sync"

	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Blackboard is the live world-state of an executing agent. It is safe for
// concurrent use; values are normalised on write so they compare like the
// planner's.
//
// The zero value is ready to use.
type Blackboard struct {
	mu   sync.RWMutex
	data worldstate.State
}

// NewBlackboard returns a blackboard seeded with a copy of initial.
func NewBlackboard(initial worldstate.State) *Blackboard {
	b := new(Blackboard)
	b.Apply(initial)
	return b
}

func (b *Blackboard) init() {
	if b.data == nil {
		b.data = worldstate.New()
	}
}

// Get returns the value for key, or nil.
func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data[key]
}

// Set stores a value.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data.Set(key, worldstate.Normalize(value))
}

// Has reports whether key is present.
func (b *Blackboard) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// Delete removes key.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns the keys in sorted order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Apply overwrites every key in effects atomically.
func (b *Blackboard) Apply(effects worldstate.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	for k, v := range effects {
		b.data[k] = worldstate.Normalize(v)
	}
}

// Satisfies reports whether every condition holds right now.
func (b *Blackboard) Satisfies(conds worldstate.State) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data.Satisfies(conds)
}

// Snapshot returns an independent copy of the current state, suitable as a
// planner start state.
func (b *Blackboard) Snapshot() worldstate.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return worldstate.New()
	}
	return b.data.Clone()
}
