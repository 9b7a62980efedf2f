package facts

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Default tuning for a Store.
const (
	DefaultDecayRate       = 0.01
	DefaultMinCertainty    = 0.2
	DefaultForgetThreshold = 0.05
)

// Options configures a Store.
type Options struct {
	// DecayRate is the certainty lost per simulated minute.
	DecayRate float64
	// MinCertainty is the level below which a fact is treated as unknown.
	MinCertainty float64
	// ForgetThreshold is the level below which Decay removes a fact.
	ForgetThreshold float64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Exprs compiles target filters; defaults to exprcache.Shared().
	Exprs *exprcache.Cache
}

// DefaultOptions returns the default store tuning.
func DefaultOptions() Options {
	return Options{
		DecayRate:       DefaultDecayRate,
		MinCertainty:    DefaultMinCertainty,
		ForgetThreshold: DefaultForgetThreshold,
	}
}

// Store is one agent's fact base. It is owned by the agent's simulation
// goroutine; other goroutines only ever see Snapshots.
type Store struct {
	mu    sync.RWMutex
	opts  Options
	facts map[ID]*Fact
}

var _ EntityIndex = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Exprs == nil {
		opts.Exprs = exprcache.Shared()
	}
	return &Store{
		opts:  opts,
		facts: make(map[ID]*Fact),
	}
}

// AddFact records an observation. A fact already occupying the same
// (type, subject, key) slot is updated in place: value, certainty and
// timestamp are replaced, which is how re-observation restores certainty.
// A certainty of zero or less, or NaN, records a fully certain observation.
func (s *Store) AddFact(f Fact) {
	if math.IsNaN(f.Certainty) || f.Certainty <= 0 || f.Certainty > 1 {
		f.Certainty = 1
	}
	f.Value = worldstate.Normalize(f.Value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.facts[f.ID()]; ok {
		existing.Value = f.Value
		existing.Certainty = f.Certainty
		existing.Timestamp = f.Timestamp
		return
	}
	s.facts[f.ID()] = &f
}

// RemoveFact deletes a fact, reporting whether it existed.
func (s *Store) RemoveFact(t FactType, subjectID int64, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ID{Type: t, SubjectID: subjectID, Key: key}
	if _, ok := s.facts[id]; !ok {
		return false
	}
	delete(s.facts, id)
	return true
}

// GetFact returns a copy of the fact in the given slot. Facts below the
// minimum certainty are reported as absent.
func (s *Store) GetFact(t FactType, subjectID int64, key string) (Fact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[ID{Type: t, SubjectID: subjectID, Key: key}]
	if !ok || f.Certainty < s.opts.MinCertainty {
		return Fact{}, false
	}
	return *f, true
}

// Decay lowers the certainty of every fact by DecayRate*minutes and forgets
// facts that drop below ForgetThreshold. It returns the number forgotten.
func (s *Store) Decay(minutes float64) int {
	if !(minutes > 0) || !(s.opts.DecayRate > 0) {
		return 0
	}
	loss := s.opts.DecayRate * minutes

	s.mu.Lock()
	defer s.mu.Unlock()
	forgotten := 0
	for id, f := range s.facts {
		f.Certainty -= loss
		if f.Certainty <= 0 || f.Certainty < s.opts.ForgetThreshold {
			delete(s.facts, id)
			forgotten++
		}
	}
	if forgotten > 0 {
		s.opts.Logger.Debug("facts forgotten", "count", forgotten, "minutes", minutes)
	}
	return forgotten
}

// Len returns the number of stored facts, including those below the minimum
// certainty.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// Facts returns copies of the visible facts in deterministic order.
func (s *Store) Facts() []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

// FindEntitiesMatching returns the ascending ids of entities whose visible
// facts satisfy c.
func (s *Store) FindEntitiesMatching(c Criteria) []int64 {
	return matchEntities(s.Facts(), c, s.opts.Exprs, s.opts.Logger)
}

// LocationOf returns the believed location of an entity.
func (s *Store) LocationOf(entityID int64) (int64, bool) {
	return locationIn(s.Facts(), entityID)
}

// WorldState derives a fresh world-state from the visible facts and self.
func (s *Store) WorldState(self *Self) worldstate.State {
	state := worldstate.New()
	flatten(state, s.Facts(), self)
	return state
}

// Snapshot captures the visible facts and a copy of self. The snapshot shares
// nothing with the store and may be handed to another goroutine.
func (s *Store) Snapshot(self *Self) *Snapshot {
	snap := &Snapshot{
		facts:  s.Facts(),
		exprs:  s.opts.Exprs,
		logger: s.opts.Logger,
	}
	if self != nil {
		c := self.Clone()
		snap.self = &c
	}
	snap.state = worldstate.New()
	flatten(snap.state, snap.facts, snap.self)
	return snap
}

func (s *Store) visibleLocked() []Fact {
	out := make([]Fact, 0, len(s.facts))
	for _, f := range s.facts {
		if f.Certainty >= s.opts.MinCertainty {
			out = append(out, *f)
		}
	}
	sortFacts(out)
	return out
}

func sortFacts(fs []Fact) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Key < b.Key
	})
}
