package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/goals"
	"github.com/joeycumines/npc-planner/internal/planner"
)

// Outcome classifies a Result.
type Outcome int

const (
	// OutcomeNoGoal means no goal qualified.
	OutcomeNoGoal Outcome = iota
	// OutcomePlanFound means a goal was selected and a plan found.
	OutcomePlanFound
	// OutcomePlanFailed means a goal was selected but planning failed.
	OutcomePlanFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoGoal:
		return "no-goal"
	case OutcomePlanFound:
		return "plan-found"
	case OutcomePlanFailed:
		return "plan-failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is what a worker produces for one request.
type Result struct {
	RequestID uuid.UUID
	Requester string
	Worker    int
	Outcome   Outcome
	GoalID    string
	Utility   float64
	Plan      *planner.Plan
	Reason    string
	Elapsed   time.Duration
}

// worker exclusively owns one planner and one selector. busy is guarded by
// the pool mutex.
type worker struct {
	id       int
	tasks    chan task
	planner  *planner.Planner
	selector *goals.Selector
	logger   *slog.Logger
	busy     bool
}

func newWorker(id int, opts Options, needs map[string]struct{}, logger *slog.Logger) *worker {
	logger = logger.With("worker", id)
	return &worker{
		id:    id,
		tasks: make(chan task, 1),
		planner: planner.New(planner.Options{
			MaxExpansions: opts.MaxExpansions,
			Logger:        logger,
		}),
		selector: goals.NewSelector(goals.Options{
			Logger:   logger,
			Exprs:    opts.Exprs,
			Needs:    needs,
			Floor:    opts.SelectorFloor,
			HasFloor: opts.HasSelectorFloor,
		}),
		logger: logger,
	}
}

// run processes tasks in arrival order until ctx is done. results has a slot
// per worker, so the send never blocks.
func (w *worker) run(ctx context.Context, defs Definitions, results chan<- Result) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-w.tasks:
			results <- w.process(ctx, defs, t)
		}
	}
}

func (w *worker) process(ctx context.Context, defs Definitions, t task) (res Result) {
	started := time.Now()
	res = Result{
		RequestID: t.id,
		Requester: t.req.Requester,
		Worker:    w.id,
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("planning panicked", "requester", t.req.Requester, "panic", r)
			res.Outcome = OutcomePlanFailed
			res.Plan = nil
			res.Reason = fmt.Sprintf("internal error: %v", r)
			if res.GoalID == "" {
				res.Outcome = OutcomeNoGoal
			}
		}
		res.Elapsed = time.Since(started)
	}()

	snap := t.req.Snapshot
	state := snap.State()

	sel := w.selector.Select(state, defs.AllGoals(), t.req.Ongoing, t.req.Schedule)
	if !sel.Selected() {
		res.Outcome = OutcomeNoGoal
		return res
	}
	res.GoalID = sel.GoalID
	res.Utility = sel.Utility

	goal, ok := defs.Goal(sel.GoalID)
	if !ok {
		res.Outcome = OutcomePlanFailed
		res.Reason = "goal definition not found"
		w.logger.Warn("selected goal has no definition", "goal", sel.GoalID)
		return res
	}

	actions := catalog.Instantiate(defs.AllActions(), snap, w.logger)
	plan, err := w.planner.FindPlan(ctx, state, goal.Preconditions, actions)
	if err != nil {
		res.Outcome = OutcomePlanFailed
		res.Reason = failureReason(err)
		w.logger.Debug("planning failed",
			"requester", t.req.Requester,
			"goal", sel.GoalID,
			"reason", res.Reason,
		)
		return res
	}
	res.Outcome = OutcomePlanFound
	res.Plan = plan
	w.logger.Debug("plan ready",
		"requester", t.req.Requester,
		"goal", sel.GoalID,
		"steps", plan.Len(),
		"cost", plan.Cost,
	)
	return res
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, planner.ErrNoPlan):
		return "no plan found"
	case errors.Is(err, planner.ErrSearchLimit):
		return "search limit reached"
	default:
		return err.Error()
	}
}
