// Package facts holds an agent's beliefs about the world: timestamped,
// certainty-weighted facts about entities, which decay unless re-observed,
// and the rules that flatten them into a planner world-state.
package facts

import (
	"fmt"

	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// FactType classifies what a fact describes.
type FactType string

const (
	// TypeLocation records where an entity is. Value is the location entity id.
	TypeLocation FactType = "location"
	// TypeEntityType records what kind of entity the subject is.
	TypeEntityType FactType = "entity_type"
	// TypeTag records that the subject carries the tag named by Key.
	TypeTag FactType = "tag"
	// TypeState records an arbitrary property Key of the subject.
	TypeState FactType = "state"
	// TypeItem records that the subject holds Value units of item Key.
	TypeItem FactType = "item"
)

// Fact is a single belief about one property of one entity.
type Fact struct {
	Type      FactType
	SubjectID int64
	Key       string
	Value     any
	Certainty float64
	Timestamp float64
}

// ID identifies the slot a fact occupies in a store. Re-observing the same
// slot replaces the fact.
type ID struct {
	Type      FactType
	SubjectID int64
	Key       string
}

// ID returns the slot of f.
func (f Fact) ID() ID {
	return ID{Type: f.Type, SubjectID: f.SubjectID, Key: f.Key}
}

// String renders the fact for logs.
func (f Fact) String() string {
	return fmt.Sprintf("%s(%d).%s=%v@%.2f", f.Type, f.SubjectID, f.Key, f.Value, f.Certainty)
}

// Self describes the agent's own attributes, which are always certain.
type Self struct {
	ID         int64
	LocationID int64
	Needs      map[string]float64
	Traits     map[string]float64
	Tags       map[string]float64
	Inventory  map[string]int
}

// Clone returns a deep copy.
func (s Self) Clone() Self {
	out := s
	out.Needs = cloneMap(s.Needs)
	out.Traits = cloneMap(s.Traits)
	out.Tags = cloneMap(s.Tags)
	out.Inventory = cloneMap(s.Inventory)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// flatten writes facts and self attributes into state using the fixed key
// naming rules of the worldstate package. Facts must already be filtered by
// certainty.
func flatten(state worldstate.State, fs []Fact, self *Self) {
	for _, f := range fs {
		switch f.Type {
		case TypeLocation:
			state.Set(worldstate.LocationKey(f.SubjectID), f.Value)
		case TypeEntityType:
			state.Set(worldstate.TypeKey(f.SubjectID), f.Value)
		case TypeTag:
			state.Set(worldstate.TagKey(f.SubjectID, f.Key), true)
		case TypeState:
			state.Set(worldstate.StateKey(f.SubjectID, f.Key), f.Value)
		case TypeItem:
			state.Set(worldstate.ItemKey(f.SubjectID, f.Key), f.Value)
		}
	}
	if self == nil {
		return
	}
	state.Set(worldstate.SelfIDKey, self.ID)
	if self.LocationID != 0 {
		state.Set(worldstate.SelfLocationKey, self.LocationID)
	}
	for need, level := range self.Needs {
		state.Set(worldstate.NeedKey(need), level)
	}
	for trait, level := range self.Traits {
		state.Set(worldstate.TraitKey(trait), level)
	}
	for tag, strength := range self.Tags {
		state.Set(worldstate.SelfTagKey(tag), true)
		state.Set(worldstate.TagStrengthKey(tag), strength)
	}
	for item, count := range self.Inventory {
		state.Set(worldstate.ItemCountKey(item), count)
		if count > 0 {
			state.Set(worldstate.HasItemKey(item), true)
		}
	}
}
