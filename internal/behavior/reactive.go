package behavior

import (
	"context"
	"fmt"
	"log/slog"

	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

var _ pabtpkg.IState = (*ReactiveState)(nil)

// ReactiveState exposes a blackboard and a fixed list of action instances to
// the PA-BT planner. Actions that fail mid-way are retried or replaced by the
// planner without a fresh A* search.
type ReactiveState struct {
	ctx     context.Context
	bb      *Blackboard
	actions []*catalog.Instance
	exec    Executor
	logger  *slog.Logger
}

// NewReactiveState constructs a ReactiveState. actions is typically the
// instance list a worker planned with.
func NewReactiveState(ctx context.Context, bb *Blackboard, actions []*catalog.Instance, exec Executor, opts Options) *ReactiveState {
	return &ReactiveState{
		ctx:     ctx,
		bb:      bb,
		actions: actions,
		exec:    exec,
		logger:  opts.logger(),
	}
}

// Variable returns the blackboard value for a string key, or nil when the
// key is absent.
func (s *ReactiveState) Variable(key any) (any, error) {
	k, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported key type: %T", key)
	}
	return s.bb.Get(k), nil
}

// Actions returns every instance with an effect that satisfies failed.
func (s *ReactiveState) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	var out []pabtpkg.IAction
	for _, inst := range s.actions {
		if inst == nil {
			continue
		}
		if !relevant(inst, failed) {
			continue
		}
		a := &action{
			effects: effectsOf(inst.Effects),
			node:    stepNode(s.ctx, inst, s.bb, s.exec, s.logger),
		}
		// go-pabt rejects empty condition groups
		if len(inst.Preconditions) > 0 {
			a.conditions = []pabtpkg.IConditions{conditionsOf(inst.Preconditions)}
		}
		out = append(out, a)
	}
	s.logger.Debug("reactive actions", "key", failed.Key(), "count", len(out))
	return out, nil
}

func relevant(inst *catalog.Instance, failed pabtpkg.Condition) bool {
	key, ok := failed.Key().(string)
	if !ok {
		return false
	}
	v, ok := inst.Effects[key]
	return ok && failed.Match(v)
}

// NewReactivePlan returns the root node of a PA-BT plan that drives state
// towards goal.
func NewReactivePlan(state *ReactiveState, goal worldstate.State) (bt.Node, error) {
	plan, err := pabtpkg.INew(state, []pabtpkg.IConditions{conditionsOf(goal)})
	if err != nil {
		return nil, fmt.Errorf("failed to create reactive plan: %w", err)
	}
	return plan.Node(), nil
}

// condition holds when the variable equals value.
type condition struct {
	key   string
	value any
}

func (c *condition) Key() any { return c.key }

func (c *condition) Match(v any) bool {
	return v != nil && worldstate.Equal(v, c.value)
}

type effect struct {
	key   string
	value any
}

func (e *effect) Key() any   { return e.key }
func (e *effect) Value() any { return e.value }

type action struct {
	conditions []pabtpkg.IConditions
	effects    pabtpkg.Effects
	node       bt.Node
}

func (a *action) Conditions() []pabtpkg.IConditions { return a.conditions }
func (a *action) Effects() pabtpkg.Effects          { return a.effects }
func (a *action) Node() bt.Node                     { return a.node }

// conditionsOf converts a state pattern into one AND group in key order.
func conditionsOf(s worldstate.State) pabtpkg.IConditions {
	keys := s.Keys()
	out := make(pabtpkg.IConditions, 0, len(keys))
	for _, k := range keys {
		out = append(out, &condition{key: k, value: s[k]})
	}
	return out
}

func effectsOf(s worldstate.State) pabtpkg.Effects {
	keys := s.Keys()
	out := make(pabtpkg.Effects, 0, len(keys))
	for _, k := range keys {
		out = append(out, &effect{key: k, value: s[k]})
	}
	return out
}
