// Package goals picks the most urgent goal for an agent by utility.
package goals

import (
	"log/slog"

	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/utility"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Definition is a candidate goal. Preconditions are the conditions the goal
// is trying to make true; a goal whose preconditions already hold needs no
// plan and is never selected.
type Definition struct {
	ID             string              `yaml:"id" toml:"id"`
	Preconditions  worldstate.State    `yaml:"preconditions,omitempty" toml:"preconditions"`
	BaseImportance float64             `yaml:"base_importance,omitempty" toml:"base_importance"`
	Evaluators     []utility.Evaluator `yaml:"evaluators,omitempty" toml:"evaluators"`
	LinkedNeed     string              `yaml:"linked_need,omitempty" toml:"linked_need"`
	Influence      map[string]float64  `yaml:"influence,omitempty" toml:"influence"`
	RelevantTraits []string            `yaml:"relevant_traits,omitempty" toml:"relevant_traits"`
	TraitBonus     float64             `yaml:"trait_bonus,omitempty" toml:"trait_bonus"`
}

// Schedule is the optional scheduled-activity hint. Bonus is added to the
// goal whose id equals GoalID.
type Schedule struct {
	GoalID string
	Bonus  float64
}

// Score is one scored candidate.
type Score struct {
	GoalID  string  `yaml:"goal"`
	Utility float64 `yaml:"utility"`
}

// Selection is the result of Select. An empty GoalID means no goal
// qualified; Scores lists every goal that was scored, in input order.
type Selection struct {
	GoalID  string
	Utility float64
	Scores  []Score
}

// Selected reports whether a goal was picked.
func (s Selection) Selected() bool { return s.GoalID != "" }

// Options configures a Selector.
type Options struct {
	Logger *slog.Logger
	Exprs  *exprcache.Cache
	// Needs is the set of known need names. When non-nil, goals linked to a
	// need outside the set are skipped.
	Needs map[string]struct{}
	// Floor, when HasFloor is set, is the minimum utility a goal must reach.
	Floor    float64
	HasFloor bool
}

// Selector scores goals. It holds no per-call state, but each worker owns
// its own instance.
type Selector struct {
	logger   *slog.Logger
	scorer   utility.Scorer
	needs    map[string]struct{}
	floor    float64
	hasFloor bool
}

// NewSelector constructs a Selector.
func NewSelector(opts Options) *Selector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		logger:   logger,
		scorer:   utility.Scorer{Logger: logger, Exprs: opts.Exprs},
		needs:    opts.Needs,
		floor:    opts.Floor,
		hasFloor: opts.HasFloor,
	}
}

// Select returns the goal with the strictly highest utility among the goals
// not already satisfied by state. Ties keep the earlier definition.
func (s *Selector) Select(state worldstate.State, defs []*Definition, ongoing []string, schedule Schedule) Selection {
	influence := s.influence(defs, ongoing)

	var sel Selection
	for _, def := range defs {
		if def == nil || def.ID == "" {
			s.logger.Warn("skipping invalid goal definition")
			continue
		}
		if state.Satisfies(def.Preconditions) {
			continue
		}
		if def.LinkedNeed != "" && s.needs != nil {
			if _, ok := s.needs[def.LinkedNeed]; !ok {
				s.logger.Warn("goal linked to unknown need", "goal", def.ID, "need", def.LinkedNeed)
				continue
			}
		}
		u := s.utility(def, state, schedule, influence)
		sel.Scores = append(sel.Scores, Score{GoalID: def.ID, Utility: u})
		if s.hasFloor && u < s.floor {
			continue
		}
		if sel.GoalID == "" || u > sel.Utility {
			sel.GoalID = def.ID
			sel.Utility = u
		}
	}

	if sel.GoalID != "" {
		s.logger.Debug("goal selected", "goal", sel.GoalID, "utility", sel.Utility, "candidates", len(sel.Scores))
	} else {
		s.logger.Debug("no goal selected", "candidates", len(sel.Scores))
	}
	return sel
}

func (s *Selector) utility(def *Definition, state worldstate.State, schedule Schedule, influence map[string]float64) float64 {
	u := def.BaseImportance
	for _, e := range def.Evaluators {
		if e.Kind == utility.KindNeed && e.Attribute == "" {
			e.Attribute = def.LinkedNeed
		}
		u += s.scorer.Evaluate(e, state)
	}
	if schedule.GoalID != "" && schedule.GoalID == def.ID {
		u += schedule.Bonus
	}
	u += influence[def.ID]
	if def.TraitBonus != 0 {
		for _, trait := range def.RelevantTraits {
			if v, ok := state.Float(worldstate.TraitKey(trait)); ok && v > 0 {
				u += def.TraitBonus
				break
			}
		}
	}
	return u
}

// influence sums, per target goal, the deltas declared by ongoing goals.
// Ongoing ids without a definition are logged and ignored.
func (s *Selector) influence(defs []*Definition, ongoing []string) map[string]float64 {
	if len(ongoing) == 0 {
		return nil
	}
	byID := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		if d != nil {
			byID[d.ID] = d
		}
	}
	out := make(map[string]float64)
	for _, id := range ongoing {
		d, ok := byID[id]
		if !ok {
			s.logger.Warn("ongoing goal has no definition", "goal", id)
			continue
		}
		for target, delta := range d.Influence {
			out[target] += delta
		}
	}
	return out
}
