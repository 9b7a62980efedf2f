package facts

import (
	"log/slog"
	"sort"

	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Criteria selects entities by what is believed about them. Every non-empty
// field must hold for an entity to match; empty Criteria matches every known
// entity.
type Criteria struct {
	EntityType string         `yaml:"entity_type,omitempty" toml:"entity_type"`
	Tags       []string       `yaml:"tags,omitempty" toml:"tags"`
	States     map[string]any `yaml:"states,omitempty" toml:"states"`
	// Filter is an expr-lang predicate evaluated against FilterEnv.
	Filter string `yaml:"filter,omitempty" toml:"filter"`
}

// IsZero reports whether c places no constraint.
func (c Criteria) IsZero() bool {
	return c.EntityType == "" && len(c.Tags) == 0 && len(c.States) == 0 && c.Filter == ""
}

// FilterEnv is the environment a Criteria.Filter expression runs against.
type FilterEnv struct {
	ID          int64          `expr:"id"`
	Type        string         `expr:"type"`
	Tags        []string       `expr:"tags"`
	State       map[string]any `expr:"state"`
	Location    int64          `expr:"location"`
	HasLocation bool           `expr:"has_location"`
}

// EntityIndex answers target-search queries. Both Store and Snapshot
// implement it.
type EntityIndex interface {
	FindEntitiesMatching(c Criteria) []int64
	LocationOf(entityID int64) (int64, bool)
}

type entityView struct {
	id          int64
	entityType  string
	tags        map[string]bool
	state       map[string]any
	location    int64
	hasLocation bool
}

// buildViews groups visible facts by subject.
func buildViews(fs []Fact) map[int64]*entityView {
	views := make(map[int64]*entityView)
	for _, f := range fs {
		v := views[f.SubjectID]
		if v == nil {
			v = &entityView{id: f.SubjectID, tags: make(map[string]bool), state: make(map[string]any)}
			views[f.SubjectID] = v
		}
		switch f.Type {
		case TypeEntityType:
			if s, ok := f.Value.(string); ok {
				v.entityType = s
			}
		case TypeTag:
			v.tags[f.Key] = true
		case TypeState:
			v.state[f.Key] = f.Value
		case TypeLocation:
			if id, ok := f.Value.(int64); ok {
				v.location, v.hasLocation = id, true
			}
		}
	}
	return views
}

// matchEntities returns ascending ids of the subjects in fs that satisfy c.
func matchEntities(fs []Fact, c Criteria, exprs *exprcache.Cache, logger *slog.Logger) []int64 {
	views := buildViews(fs)
	ids := make([]int64, 0, len(views))
	for id, v := range views {
		if v.matches(c, exprs, logger) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (v *entityView) matches(c Criteria, exprs *exprcache.Cache, logger *slog.Logger) bool {
	if c.EntityType != "" && v.entityType != c.EntityType {
		return false
	}
	for _, tag := range c.Tags {
		if !v.tags[tag] {
			return false
		}
	}
	for k, want := range c.States {
		got, ok := v.state[k]
		if !ok || !worldstate.Equal(got, want) {
			return false
		}
	}
	if c.Filter == "" {
		return true
	}
	ok, err := exprs.EvalBool(c.Filter, v.env())
	if err != nil {
		logger.Warn("target filter failed", "filter", c.Filter, "entity", v.id, "error", err)
		return false
	}
	return ok
}

func (v *entityView) env() FilterEnv {
	tags := make([]string, 0, len(v.tags))
	for t := range v.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return FilterEnv{
		ID:          v.id,
		Type:        v.entityType,
		Tags:        tags,
		State:       v.state,
		Location:    v.location,
		HasLocation: v.hasLocation,
	}
}

func locationIn(fs []Fact, entityID int64) (int64, bool) {
	for _, f := range fs {
		if f.Type == TypeLocation && f.SubjectID == entityID {
			id, ok := f.Value.(int64)
			return id, ok
		}
	}
	return 0, false
}
