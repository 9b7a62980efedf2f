package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/npc-planner/internal/config"
	"github.com/joeycumines/npc-planner/internal/goals"
	"github.com/joeycumines/npc-planner/internal/planner"
	"github.com/joeycumines/npc-planner/internal/scheduler"
)

// ErrPlanFailed is returned by plan when a goal was chosen but no plan was
// found.
var ErrPlanFailed = errors.New("planning failed")

// PlanCommand selects a goal for one agent and plans for it.
type PlanCommand struct {
	*BaseCommand
	config   *config.Config
	inputs   inputFlags
	goal     string
	format   string
	execute  string
	maxTicks int
}

// NewPlanCommand creates a new plan command.
func NewPlanCommand(cfg *config.Config) *PlanCommand {
	return &PlanCommand{
		BaseCommand: NewBaseCommand(
			"plan",
			"Select a goal for an agent and find a plan for it",
			"plan -defs <file> -scenario <file> [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the plan command.
func (c *PlanCommand) SetupFlags(fs *flag.FlagSet) {
	c.inputs.setup(fs)
	fs.StringVar(&c.goal, "goal", "", "Plan for this goal instead of selecting one")
	fs.StringVar(&c.format, "format", "", "Output format: text, yaml")
	fs.StringVar(&c.execute, "execute", "", "Run the plan on a blackboard: tree, reactive")
	fs.IntVar(&c.maxTicks, "max-ticks", 1000, "Tick budget for -execute")
}

// planReport is the result of one plan run.
type planReport struct {
	Agent     int64      `yaml:"agent"`
	Goal      string     `yaml:"goal,omitempty"`
	Utility   float64    `yaml:"utility"`
	Outcome   string     `yaml:"outcome"`
	Reason    string     `yaml:"reason,omitempty"`
	Actions   []string   `yaml:"actions,omitempty"`
	Cost      float64    `yaml:"cost,omitempty"`
	Expanded  int        `yaml:"expanded,omitempty"`
	Execution *execution `yaml:"execution,omitempty"`
}

// Execute runs the plan command.
func (c *PlanCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	format := commandOption(c.config, c.Name(), "format", c.format, "text")
	if err := validFormat(format); err != nil {
		return err
	}
	mode := commandOption(c.config, c.Name(), "execute", c.execute, execNone)
	if err := validExecMode(mode); err != nil {
		return err
	}

	ws, err := c.inputs.load(c.config, stderr)
	if err != nil {
		return err
	}
	defer ws.Close()

	snap := ws.snapshot()
	state := snap.State()
	report := &planReport{Agent: ws.self.ID}

	var goal *goals.Definition
	if c.goal != "" {
		def, ok := ws.registry.Goal(c.goal)
		if !ok {
			return fmt.Errorf("unknown goal: %s", c.goal)
		}
		goal = def
	} else {
		sel := ws.selector().Select(state, ws.registry.AllGoals(), ws.scenario.Ongoing, ws.scenario.GoalSchedule())
		if !sel.Selected() {
			report.Outcome = scheduler.OutcomeNoGoal.String()
			return writeReport(stdout, format, report)
		}
		goal, _ = ws.registry.Goal(sel.GoalID)
		report.Utility = sel.Utility
	}
	report.Goal = goal.ID

	instances := ws.registry.Catalog().Instantiate(snap, ws.logger)
	p := planner.New(planner.Options{
		MaxExpansions: ws.settings.MaxExpansions,
		Logger:        ws.logger,
	})
	plan, err := p.FindPlan(ctx, state, goal.Preconditions, instances)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		report.Outcome = scheduler.OutcomePlanFailed.String()
		report.Reason = err.Error()
		if werr := writeReport(stdout, format, report); werr != nil {
			return werr
		}
		return fmt.Errorf("%w: goal %s: %w", ErrPlanFailed, goal.ID, err)
	}

	report.Outcome = scheduler.OutcomePlanFound.String()
	report.Actions = plan.Actions
	report.Cost = plan.Cost
	report.Expanded = plan.Stats.Expanded

	if mode != execNone {
		report.Execution, err = executePlan(ctx, mode, plan, instances, state, goal.Preconditions, c.maxTicks, ws.logger)
		if err != nil {
			return err
		}
	}

	return writeReport(stdout, format, report)
}

func writeReport(w io.Writer, format string, r *planReport) error {
	if format == "yaml" {
		return writeYAML(w, r)
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "agent:\t%d\n", r.Agent)
	_, _ = fmt.Fprintf(tw, "outcome:\t%s\n", r.Outcome)
	if r.Goal != "" {
		_, _ = fmt.Fprintf(tw, "goal:\t%s (utility %.3f)\n", r.Goal, r.Utility)
	}
	if r.Reason != "" {
		_, _ = fmt.Fprintf(tw, "reason:\t%s\n", r.Reason)
	}
	if r.Outcome == scheduler.OutcomePlanFound.String() {
		_, _ = fmt.Fprintf(tw, "cost:\t%g (%d expanded)\n", r.Cost, r.Expanded)
		for i, a := range r.Actions {
			_, _ = fmt.Fprintf(tw, "  %d.\t%s\n", i+1, a)
		}
	}
	if e := r.Execution; e != nil {
		_, _ = fmt.Fprintf(tw, "execution:\t%s %s after %d ticks\n", e.Mode, e.Status, e.Ticks)
	}
	return tw.Flush()
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func validFormat(format string) error {
	switch format {
	case "text", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid format %q (want text or yaml)", format)
	}
}

// commandOption returns the flag value when set, then the command's config
// option, then def.
func commandOption(cfg *config.Config, command, key, flagValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg != nil {
		if v, ok := cfg.GetCommandOption(command, key); ok && v != "" {
			return v
		}
	}
	return def
}
