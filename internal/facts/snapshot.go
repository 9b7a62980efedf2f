package facts

import (
	"log/slog"

	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Snapshot is an immutable copy of an agent's visible beliefs, taken at one
// instant. It carries everything a planner worker needs: the derived
// world-state and enough of the fact base to resolve action targets.
type Snapshot struct {
	facts  []Fact
	self   *Self
	state  worldstate.State
	exprs  *exprcache.Cache
	logger *slog.Logger
}

var _ EntityIndex = (*Snapshot)(nil)

// NewSnapshot builds a snapshot directly from facts, for callers that do not
// keep a Store. Facts are taken as already visible.
func NewSnapshot(fs []Fact, self *Self) *Snapshot {
	snap := &Snapshot{
		facts:  make([]Fact, len(fs)),
		exprs:  exprcache.Shared(),
		logger: slog.Default(),
	}
	for i, f := range fs {
		f.Value = worldstate.Normalize(f.Value)
		snap.facts[i] = f
	}
	sortFacts(snap.facts)
	if self != nil {
		c := self.Clone()
		snap.self = &c
	}
	snap.state = worldstate.New()
	flatten(snap.state, snap.facts, snap.self)
	return snap
}

// State returns a copy of the derived world-state.
func (s *Snapshot) State() worldstate.State {
	return s.state.Clone()
}

// Self returns a copy of the agent attributes captured in the snapshot.
func (s *Snapshot) Self() (Self, bool) {
	if s.self == nil {
		return Self{}, false
	}
	return s.self.Clone(), true
}

// Facts returns a copy of the captured facts.
func (s *Snapshot) Facts() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// FindEntitiesMatching implements EntityIndex.
func (s *Snapshot) FindEntitiesMatching(c Criteria) []int64 {
	return matchEntities(s.facts, c, s.exprs, s.logger)
}

// LocationOf implements EntityIndex.
func (s *Snapshot) LocationOf(entityID int64) (int64, bool) {
	return locationIn(s.facts, entityID)
}
