package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/npc-planner/internal/behavior"
	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/planner"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Execution modes for -execute.
const (
	execNone     = ""
	execTree     = "tree"
	execReactive = "reactive"
)

func validExecMode(mode string) error {
	switch mode {
	case execNone, execTree, execReactive:
		return nil
	default:
		return fmt.Errorf("invalid -execute mode %q (want %s or %s)", mode, execTree, execReactive)
	}
}

// timedExecutor pretends each action takes ceil(cost) ticks, minimum one.
type timedExecutor struct {
	progress map[string]int
	ticks    int
}

func newTimedExecutor() *timedExecutor {
	return &timedExecutor{progress: make(map[string]int)}
}

func (e *timedExecutor) Execute(_ context.Context, a *catalog.Instance) (bt.Status, error) {
	e.ticks++
	need := max(1, int(math.Ceil(a.Cost)))
	e.progress[a.ID]++
	if e.progress[a.ID] < need {
		return bt.Running, nil
	}
	delete(e.progress, a.ID)
	return bt.Success, nil
}

// execution is the outcome of running a plan against a blackboard.
type execution struct {
	Mode   string           `yaml:"mode"`
	Status string           `yaml:"status"`
	Ticks  int              `yaml:"ticks"`
	Final  worldstate.State `yaml:"final"`
}

// executePlan runs plan from start, either as a fixed behaviour tree
// sequence or reactively towards goal using the whole instance list.
func executePlan(ctx context.Context, mode string, plan *planner.Plan, instances []*catalog.Instance,
	start, goal worldstate.State, maxTicks int, logger *slog.Logger) (*execution, error) {
	bb := behavior.NewBlackboard(start)
	exec := newTimedExecutor()
	opts := behavior.Options{Logger: logger}

	var node bt.Node
	switch mode {
	case execTree:
		node = behavior.PlanTree(ctx, plan, bb, exec, opts)
	case execReactive:
		var err error
		node, err = behavior.NewReactivePlan(behavior.NewReactiveState(ctx, bb, instances, exec, opts), goal)
		if err != nil {
			return nil, err
		}
	default:
		return nil, validExecMode(mode)
	}

	status, err := behavior.Run(ctx, node, maxTicks)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	return &execution{
		Mode:   mode,
		Status: statusName(status),
		Ticks:  exec.ticks,
		Final:  bb.Snapshot(),
	}, nil
}

func statusName(s bt.Status) string {
	switch s {
	case bt.Success:
		return "success"
	case bt.Failure:
		return "failure"
	case bt.Running:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
