package behavior

import (
	"context"
	"fmt"
	"log/slog"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/planner"
)

// Executor performs one action in the world. It returns bt.Running while the
// action is in progress; effects are applied to the blackboard only once it
// returns bt.Success.
type Executor interface {
	Execute(ctx context.Context, action *catalog.Instance) (bt.Status, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, action *catalog.Instance) (bt.Status, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, action *catalog.Instance) (bt.Status, error) {
	return f(ctx, action)
}

// Options configures tree construction.
type Options struct {
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// PlanTree builds a memorised sequence with one leaf per plan step. A leaf
// fails when its preconditions no longer hold on bb, which fails the tree
// and signals the caller to replan. An empty plan succeeds immediately.
func PlanTree(ctx context.Context, plan *planner.Plan, bb *Blackboard, exec Executor, opts Options) bt.Node {
	children := make([]bt.Node, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		children = append(children, stepNode(ctx, step, bb, exec, opts.logger()))
	}
	return bt.New(bt.Memorize(bt.Sequence), children...)
}

// stepNode runs one action instance against bb.
func stepNode(ctx context.Context, step *catalog.Instance, bb *Blackboard, exec Executor, logger *slog.Logger) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if err := ctx.Err(); err != nil {
			return bt.Failure, err
		}
		if !bb.Satisfies(step.Preconditions) {
			logger.Debug("action preconditions no longer hold", "action", step.ID)
			return bt.Failure, nil
		}
		status, err := exec.Execute(ctx, step)
		if err != nil {
			return bt.Failure, fmt.Errorf("action %s: %w", step.ID, err)
		}
		if status == bt.Success {
			bb.Apply(step.Effects)
			logger.Debug("action completed", "action", step.ID)
		}
		return status, nil
	})
}

// Run ticks node until it stops running, ctx is done, or maxTicks is spent.
// A non-positive maxTicks means no limit.
func Run(ctx context.Context, node bt.Node, maxTicks int) (bt.Status, error) {
	for i := 0; maxTicks <= 0 || i < maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return bt.Failure, err
		}
		status, err := node.Tick()
		if err != nil || status != bt.Running {
			return status, err
		}
	}
	return bt.Running, nil
}
