package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/planner"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// recorder succeeds every action after runningTicks Running results.
type recorder struct {
	mu           sync.Mutex
	runningTicks int
	ticks        map[string]int
	done         []string
}

func (r *recorder) Execute(_ context.Context, a *catalog.Instance) (bt.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticks == nil {
		r.ticks = make(map[string]int)
	}
	r.ticks[a.ID]++
	if r.ticks[a.ID] <= r.runningTicks {
		return bt.Running, nil
	}
	r.done = append(r.done, a.ID)
	return bt.Success, nil
}

func eatActions() []*catalog.Instance {
	return []*catalog.Instance{
		{ID: "Eat", Cost: 1,
			Preconditions: worldstate.State{"has_food": true},
			Effects:       worldstate.State{"hunger_satisfied": true, "has_food": false}},
		{ID: "PickupFood", Cost: 1,
			Effects: worldstate.State{"has_food": true}},
	}
}

func eatPlan(t *testing.T, bb *Blackboard) *planner.Plan {
	t.Helper()
	plan, err := planner.New(planner.Options{}).FindPlan(context.Background(),
		bb.Snapshot(), worldstate.State{"hunger_satisfied": true}, eatActions())
	require.NoError(t, err)
	return plan
}

func TestBlackboard(t *testing.T) {
	t.Parallel()

	var bb Blackboard
	assert.Nil(t, bb.Get("missing"))
	assert.Zero(t, bb.Len())
	assert.Empty(t, bb.Snapshot())

	bb.Set("n", 3)
	assert.Equal(t, int64(3), bb.Get("n"))
	assert.True(t, bb.Satisfies(worldstate.State{"n": 3.0}))
	assert.True(t, bb.Has("n"))

	bb.Apply(worldstate.State{"a": true, "n": 4})
	assert.Equal(t, []string{"a", "n"}, bb.Keys())

	snap := bb.Snapshot()
	snap["a"] = false
	assert.Equal(t, true, bb.Get("a"))

	bb.Delete("a")
	assert.False(t, bb.Has("a"))
	assert.Equal(t, 1, bb.Len())
}

func TestBlackboard_Concurrent(t *testing.T) {
	t.Parallel()

	bb := NewBlackboard(nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d", i)
				bb.Set(key, j)
				_ = bb.Satisfies(worldstate.State{key: j})
				_ = bb.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, bb.Len())
}

func TestPlanTree_ExecutesPlan(t *testing.T) {
	bb := NewBlackboard(worldstate.State{"hunger_satisfied": false})
	plan := eatPlan(t, bb)
	rec := &recorder{runningTicks: 2}

	node := PlanTree(context.Background(), plan, bb, rec, Options{})
	status, err := Run(context.Background(), node, 20)
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.Equal(t, []string{"PickupFood", "Eat"}, rec.done)
	// running steps are resumed, not restarted
	assert.Equal(t, 3, rec.ticks["PickupFood"])
	assert.Equal(t, true, bb.Get("hunger_satisfied"))
	assert.Equal(t, false, bb.Get("has_food"))
}

func TestPlanTree_FailsWhenWorldChanges(t *testing.T) {
	bb := NewBlackboard(worldstate.State{"hunger_satisfied": false})
	plan := eatPlan(t, bb)
	rec := &recorder{runningTicks: 1}
	node := PlanTree(context.Background(), plan, bb, rec, Options{})

	status, err := node.Tick()
	require.NoError(t, err)
	require.Equal(t, bt.Running, status)

	// pickup completes, eating starts
	status, err = node.Tick()
	require.NoError(t, err)
	require.Equal(t, bt.Running, status)
	require.Equal(t, true, bb.Get("has_food"))

	// someone steals the food mid-meal
	bb.Set("has_food", false)
	status, err = node.Tick()
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, status)
	assert.Equal(t, []string{"PickupFood"}, rec.done)
	assert.Equal(t, false, bb.Get("hunger_satisfied"))
}

func TestPlanTree_ExecutorError(t *testing.T) {
	bb := NewBlackboard(nil)
	plan := eatPlan(t, bb)
	boom := errors.New("boom")
	exec := ExecutorFunc(func(context.Context, *catalog.Instance) (bt.Status, error) {
		return bt.Failure, boom
	})
	_, err := Run(context.Background(), PlanTree(context.Background(), plan, bb, exec, Options{}), 5)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "PickupFood")
}

func TestPlanTree_EmptyPlanSucceeds(t *testing.T) {
	node := PlanTree(context.Background(), &planner.Plan{}, NewBlackboard(nil), &recorder{}, Options{})
	status, err := node.Tick()
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
}

func TestPlanTree_Cancelled(t *testing.T) {
	bb := NewBlackboard(nil)
	plan := eatPlan(t, bb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(context.Background(), PlanTree(ctx, plan, bb, &recorder{}, Options{}), 5)
	assert.ErrorIs(t, err, context.Canceled)

	status, err := Run(ctx, PlanTree(context.Background(), plan, bb, &recorder{}, Options{}), 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, bt.Failure, status)
}

func TestRun_TickBudget(t *testing.T) {
	forever := bt.New(func([]bt.Node) (bt.Status, error) { return bt.Running, nil })
	status, err := Run(context.Background(), forever, 3)
	require.NoError(t, err)
	assert.Equal(t, bt.Running, status)
}

func TestReactivePlan_ReachesGoal(t *testing.T) {
	bb := NewBlackboard(worldstate.State{"hunger_satisfied": false})
	rec := &recorder{runningTicks: 1}
	state := NewReactiveState(context.Background(), bb, eatActions(), rec, Options{})

	node, err := NewReactivePlan(state, worldstate.State{"hunger_satisfied": true})
	require.NoError(t, err)

	status, err := Run(context.Background(), node, 50)
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.Equal(t, []string{"PickupFood", "Eat"}, rec.done)
	assert.Equal(t, true, bb.Get("hunger_satisfied"))

	// the goal holds, so further ticks run nothing
	status, err = node.Tick()
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.Len(t, rec.done, 2)
}

func TestReactivePlan_UnconditionedAction(t *testing.T) {
	pickup := &catalog.Instance{
		ID:         "PickupFood",
		TemplateID: "PickupFood",
		Cost:       1,
		Effects:    worldstate.State{"has_food": true},
	}
	bb := NewBlackboard(worldstate.State{"has_food": false})
	rec := &recorder{}
	state := NewReactiveState(context.Background(), bb, []*catalog.Instance{pickup}, rec, Options{})

	node, err := NewReactivePlan(state, worldstate.State{"has_food": true})
	require.NoError(t, err)

	status, err := Run(context.Background(), node, 10)
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)
	assert.Equal(t, []string{"PickupFood"}, rec.done)
	assert.Equal(t, true, bb.Get("has_food"))
}

func TestReactiveState(t *testing.T) {
	bb := NewBlackboard(worldstate.State{"x": 1})
	state := NewReactiveState(context.Background(), bb, append(eatActions(), nil), &recorder{}, Options{})

	v, err := state.Variable("x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = state.Variable("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
	_, err = state.Variable(7)
	assert.Error(t, err)

	acts, err := state.Actions(&condition{key: "has_food", value: true})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Len(t, acts[0].Effects(), 1)
	assert.Nil(t, acts[0].Conditions(), "unconditioned actions carry no condition groups")

	// Eat sets has_food=false, which does not satisfy has_food=true
	acts, err = state.Actions(&condition{key: "has_food", value: false})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Len(t, acts[0].Conditions(), 1)
	assert.Len(t, acts[0].Conditions()[0], 1)

	acts, err = state.Actions(&condition{key: "nothing", value: true})
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestCondition_Match(t *testing.T) {
	c := &condition{key: "n", value: int64(2)}
	assert.True(t, c.Match(2.0))
	assert.False(t, c.Match(nil))
	assert.False(t, c.Match(3))
	assert.Equal(t, "n", c.Key())
}
