// Package defs holds the read-only goal and action definition tables and
// decodes them, along with agent scenarios, from YAML or TOML documents.
package defs

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/goals"
)

// Registry is a loaded-once definition table. Goals and actions are kept in
// id order, so every consumer sees the same iteration order. A Registry is
// never mutated after construction and may be shared between goroutines.
type Registry struct {
	goals     []*goals.Definition
	goalsByID map[string]*goals.Definition
	actions   *catalog.Catalog
	needs     []string
}

// NewRegistry builds a Registry. Invalid definitions are logged and dropped;
// for duplicate ids the later definition wins. A nil needs slice disables
// need validation during goal selection.
func NewRegistry(gs []*goals.Definition, as []*catalog.Template, needs []string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{goalsByID: make(map[string]*goals.Definition, len(gs))}
	for _, g := range gs {
		if g == nil || g.ID == "" {
			logger.Warn("skipping goal definition without an id")
			continue
		}
		if _, dup := r.goalsByID[g.ID]; dup {
			logger.Warn("duplicate goal definition", "goal", g.ID)
		}
		r.goalsByID[g.ID] = g
	}
	for _, g := range r.goalsByID {
		r.goals = append(r.goals, g)
	}
	sort.Slice(r.goals, func(i, j int) bool { return r.goals[i].ID < r.goals[j].ID })

	valid := make([]*catalog.Template, 0, len(as))
	seen := make(map[string]struct{}, len(as))
	for _, a := range as {
		switch {
		case a == nil || a.ID == "":
			logger.Warn("skipping action definition without an id")
			continue
		case a.Cost < 0:
			logger.Warn("skipping action definition with negative cost", "action", a.ID, "cost", a.Cost)
			continue
		}
		if _, dup := seen[a.ID]; dup {
			logger.Warn("duplicate action definition", "action", a.ID)
		}
		seen[a.ID] = struct{}{}
		valid = append(valid, a)
	}
	r.actions = catalog.New(valid...)

	if needs != nil {
		r.needs = slices.Clone(needs)
		slices.Sort(r.needs)
		r.needs = slices.Compact(r.needs)
	}
	return r
}

// AllGoals returns every goal in id order.
func (r *Registry) AllGoals() []*goals.Definition { return slices.Clone(r.goals) }

// AllActions returns every action template in id order.
func (r *Registry) AllActions() []*catalog.Template { return r.actions.All() }

// Goal returns the goal with the given id.
func (r *Registry) Goal(id string) (*goals.Definition, bool) {
	g, ok := r.goalsByID[id]
	return g, ok
}

// Action returns the action template with the given id.
func (r *Registry) Action(id string) (*catalog.Template, bool) { return r.actions.Get(id) }

// Needs returns the known needs in sorted order, or nil when unvalidated.
func (r *Registry) Needs() []string { return slices.Clone(r.needs) }

// Catalog returns the action table.
func (r *Registry) Catalog() *catalog.Catalog { return r.actions }
