// Package catalog holds generic action templates and expands them into
// concrete, target-bound action instances against an agent's beliefs.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Placeholder tokens substituted during instantiation.
const (
	TargetIDToken         = "$target_id"
	TargetLocationIDToken = "$target_location_id"
)

// NoLocation is substituted for $target_location_id when the target's
// location is not known.
const NoLocation int64 = 0

// Template is a generic action. Preconditions and Effects may contain
// placeholder tokens in keys and string values; when Target is set the
// template is expanded once per matching entity.
type Template struct {
	ID            string
	Cost          float64
	Preconditions worldstate.State
	Effects       worldstate.State
	Target        *facts.Criteria
}

// Instance is a template bound to a concrete target with every placeholder
// resolved. Instances are created per planning request and never shared.
type Instance struct {
	ID               string
	TemplateID       string
	TargetID         int64
	TargetLocationID int64
	HasTarget        bool
	Cost             float64
	Preconditions    worldstate.State
	Effects          worldstate.State
}

// String renders the instance for logs.
func (i *Instance) String() string {
	if !i.HasTarget {
		return fmt.Sprintf("%s(cost=%g)", i.ID, i.Cost)
	}
	return fmt.Sprintf("%s(target=%d, location=%d, cost=%g)", i.ID, i.TargetID, i.TargetLocationID, i.Cost)
}

// InstanceID returns the id of the instance of templateID bound to targetID.
func InstanceID(templateID string, targetID int64) string {
	return templateID + "@" + strconv.FormatInt(targetID, 10)
}

// Catalog is a read-only table of templates, sorted by id. It is built once
// and may be shared between goroutines.
type Catalog struct {
	templates []*Template
	byID      map[string]*Template
}

// New builds a catalog. Nil templates and templates without an id are
// dropped; later duplicates replace earlier ones.
func New(templates ...*Template) *Catalog {
	c := &Catalog{byID: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if t == nil || t.ID == "" {
			continue
		}
		c.byID[t.ID] = t
	}
	c.templates = make([]*Template, 0, len(c.byID))
	for _, t := range c.byID {
		c.templates = append(c.templates, t)
	}
	sortTemplates(c.templates)
	return c
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (*Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// All returns every template in id order.
func (c *Catalog) All() []*Template {
	out := make([]*Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// Instantiate expands every template against index.
func (c *Catalog) Instantiate(index facts.EntityIndex, logger *slog.Logger) []*Instance {
	return Instantiate(c.templates, index, logger)
}

// Instantiate expands templates into instances. Templates are processed in id
// order; untargeted templates yield one instance, targeted templates one per
// matching entity in ascending id order. The result is a pure function of the
// templates and the index contents.
func Instantiate(templates []*Template, index facts.EntityIndex, logger *slog.Logger) []*Instance {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := make([]*Template, 0, len(templates))
	for _, t := range templates {
		if t == nil {
			logger.Warn("skipping nil action template")
			continue
		}
		sorted = append(sorted, t)
	}
	sortTemplates(sorted)

	var out []*Instance
	for _, t := range sorted {
		if t.Target == nil {
			out = append(out, &Instance{
				ID:            t.ID,
				TemplateID:    t.ID,
				Cost:          t.Cost,
				Preconditions: t.Preconditions.Clone(),
				Effects:       t.Effects.Clone(),
			})
			continue
		}
		if index == nil {
			logger.Warn("targeted action without a fact index", "action", t.ID)
			continue
		}
		for _, target := range index.FindEntitiesMatching(*t.Target) {
			location, ok := index.LocationOf(target)
			if !ok {
				location = NoLocation
			}
			b := binding{target: target, location: location}
			out = append(out, &Instance{
				ID:               InstanceID(t.ID, target),
				TemplateID:       t.ID,
				TargetID:         target,
				TargetLocationID: location,
				HasTarget:        true,
				Cost:             t.Cost,
				Preconditions:    b.substitute(t.Preconditions),
				Effects:          b.substitute(t.Effects),
			})
		}
	}
	logger.Debug("actions instantiated", "templates", len(sorted), "instances", len(out))
	return out
}

type binding struct {
	target, location int64
}

func (b binding) substitute(s worldstate.State) worldstate.State {
	if s == nil {
		return nil
	}
	out := make(worldstate.State, len(s))
	for k, v := range s {
		out[b.replace(k)] = b.value(v)
	}
	return out
}

// value resolves placeholders in a state value. A value that is exactly a
// placeholder becomes the id itself so it compares equal to id-valued facts.
func (b binding) value(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	switch str {
	case TargetIDToken:
		return b.target
	case TargetLocationIDToken:
		return b.location
	}
	return b.replace(str)
}

func (b binding) replace(s string) string {
	if !strings.Contains(s, "$target_") {
		return s
	}
	s = strings.ReplaceAll(s, TargetLocationIDToken, strconv.FormatInt(b.location, 10))
	return strings.ReplaceAll(s, TargetIDToken, strconv.FormatInt(b.target, 10))
}

func sortTemplates(ts []*Template) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
