// Package planner implements the A* search that turns a start world-state
// and a set of goal conditions into an ordered sequence of action instances.
//
// The heuristic is the number of goal keys the state does not yet satisfy.
// It is admissible only while every action costs at least one and satisfies
// at most one goal key per unit of cost; outside that envelope plans are
// still valid but may not be the cheapest.
package planner

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

var (
	// ErrNoPlan is returned when the open set is exhausted.
	ErrNoPlan = errors.New("no plan found")
	// ErrSearchLimit is returned when Options.MaxExpansions is reached.
	ErrSearchLimit = errors.New("search limit reached")
)

// Options configures a Planner.
type Options struct {
	// MaxExpansions bounds the number of nodes expanded per search. Zero
	// means unbounded.
	MaxExpansions int
	Logger        *slog.Logger
}

// Stats describes one search.
type Stats struct {
	Expanded  int
	Generated int
	Improved  int
}

// Plan is a successful search result. An empty plan means the start state
// already satisfied the goal.
type Plan struct {
	Actions []string
	Steps   []*catalog.Instance
	Cost    float64
	Stats   Stats
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.Actions) }

// Planner runs searches. A Planner is reusable but not safe for concurrent
// use; each worker owns one.
type Planner struct {
	opts   Options
	logger *slog.Logger

	nodes     []node
	open      openSet
	openIndex map[string]int
	closed    map[string]struct{}
	seq       uint64

	// onImprove observes in-place cost reductions of open nodes.
	onImprove func(key string, oldG, newG float64)
}

// New constructs a Planner.
func New(opts Options) *Planner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{
		opts:      opts,
		logger:    logger,
		openIndex: make(map[string]int),
		closed:    make(map[string]struct{}),
	}
	p.open.p = p
	return p
}

// FindPlan searches for the cheapest sequence of actions that transforms
// start into a state satisfying goal. The action list is fixed for the
// duration of the search. Cancelling ctx aborts the search between
// expansions.
func (p *Planner) FindPlan(ctx context.Context, start, goal worldstate.State, actions []*catalog.Instance) (*Plan, error) {
	if start.Satisfies(goal) {
		return &Plan{Actions: []string{}}, nil
	}

	actions = p.usable(actions)
	p.reset()

	var stats Stats
	p.push(node{
		state:  start,
		key:    start.Key(),
		action: -1,
		parent: -1,
	}, goal)
	stats.Generated++

	for p.open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("planner: %w", err)
		}
		if p.opts.MaxExpansions > 0 && stats.Expanded >= p.opts.MaxExpansions {
			p.logger.Debug("search limit reached", "expanded", stats.Expanded, "open", p.open.Len())
			return nil, ErrSearchLimit
		}

		current := heap.Pop(&p.open).(int)
		cur := p.nodes[current]
		delete(p.openIndex, cur.key)

		if cur.state.Satisfies(goal) {
			plan := p.reconstruct(current, actions)
			plan.Stats = stats
			p.logger.Debug("plan found",
				"steps", plan.Len(),
				"cost", plan.Cost,
				"expanded", stats.Expanded,
				"generated", stats.Generated,
			)
			return plan, nil
		}

		p.closed[cur.key] = struct{}{}
		stats.Expanded++

		for i, a := range actions {
			if !cur.state.Satisfies(a.Preconditions) {
				continue
			}
			next := cur.state.Apply(a.Effects)
			key := next.Key()
			if _, ok := p.closed[key]; ok {
				continue
			}
			g := cur.g + a.Cost

			if idx, ok := p.openIndex[key]; ok {
				n := &p.nodes[idx]
				if g >= n.g {
					continue
				}
				if p.onImprove != nil {
					p.onImprove(key, n.g, g)
				}
				n.state = next
				n.action = i
				n.parent = current
				n.setCost(g, n.h)
				heap.Fix(&p.open, n.heapIndex)
				stats.Improved++
				continue
			}

			p.push(node{
				state:  next,
				key:    key,
				action: i,
				parent: current,
				g:      g,
			}, goal)
			stats.Generated++
		}
	}

	p.logger.Debug("no plan found", "expanded", stats.Expanded, "generated", stats.Generated)
	return nil, ErrNoPlan
}

// usable drops nil and negatively priced actions.
func (p *Planner) usable(actions []*catalog.Instance) []*catalog.Instance {
	out := actions[:0:0]
	for _, a := range actions {
		switch {
		case a == nil:
			p.logger.Warn("skipping nil action instance")
		case a.Cost < 0:
			p.logger.Warn("skipping action with negative cost", "action", a.ID, "cost", a.Cost)
		default:
			out = append(out, a)
		}
	}
	return out
}

func (p *Planner) reset() {
	p.nodes = p.nodes[:0]
	p.open.items = p.open.items[:0]
	clear(p.openIndex)
	clear(p.closed)
	p.seq = 0
}

func (p *Planner) push(n node, goal worldstate.State) {
	n.seq = p.seq
	p.seq++
	n.setCost(n.g, float64(n.state.Unmet(goal)))
	idx := len(p.nodes)
	p.nodes = append(p.nodes, n)
	p.openIndex[n.key] = idx
	heap.Push(&p.open, idx)
}

// reconstruct walks parent indexes back to the start node.
func (p *Planner) reconstruct(goalIdx int, actions []*catalog.Instance) *Plan {
	var steps []*catalog.Instance
	for i := goalIdx; p.nodes[i].parent >= 0; i = p.nodes[i].parent {
		steps = append(steps, actions[p.nodes[i].action])
	}
	plan := &Plan{
		Actions: make([]string, len(steps)),
		Steps:   make([]*catalog.Instance, len(steps)),
		Cost:    p.nodes[goalIdx].g,
	}
	for i, s := range steps {
		j := len(steps) - 1 - i
		plan.Steps[j] = s
		plan.Actions[j] = s.ID
	}
	return plan
}
