package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/config"
	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/planner"
	"github.com/joeycumines/npc-planner/internal/scheduler"
)

// SimulateCommand drives a population of agents sharing one scenario
// through the worker pool.
type SimulateCommand struct {
	*BaseCommand
	config   *config.Config
	inputs   inputFlags
	agents   int
	timeout  time.Duration
	format   string
	execute  string
	maxTicks int
}

// NewSimulateCommand creates a new simulate command.
func NewSimulateCommand(cfg *config.Config) *SimulateCommand {
	return &SimulateCommand{
		BaseCommand: NewBaseCommand(
			"simulate",
			"Plan for a population of agents on the worker pool",
			"simulate -defs <file> -scenario <file> [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the simulate command.
func (c *SimulateCommand) SetupFlags(fs *flag.FlagSet) {
	c.inputs.setup(fs)
	fs.IntVar(&c.agents, "agents", 0, "Number of agents (default from [simulate] agents, else 4)")
	fs.DurationVar(&c.timeout, "timeout", 0, "Simulation deadline (default from [simulate] timeout, else 5s)")
	fs.StringVar(&c.format, "format", "", "Output format: text, yaml")
	fs.StringVar(&c.execute, "execute", "", "Run found plans on per-agent blackboards: tree, reactive")
	fs.IntVar(&c.maxTicks, "max-ticks", 1000, "Tick budget per agent for -execute")
}

// simAgent is one simulated agent.
type simAgent struct {
	id       string
	snapshot *facts.Snapshot
	report   *planReport
	done     bool
}

// simSink records pool deliveries. The pool only calls it from Tick, which
// the simulate loop runs on its own goroutine.
type simSink struct {
	agents map[string]*simAgent
	done   int
}

func (s *simSink) OnGoalSelected(requester, goalID string) {
	a, ok := s.agents[requester]
	if !ok {
		return
	}
	a.report.Goal = goalID
	if goalID == "" {
		a.report.Outcome = scheduler.OutcomeNoGoal.String()
		s.finish(a)
	}
}

func (s *simSink) OnPlanFound(requester, goalID string, actions []string) {
	if a, ok := s.agents[requester]; ok {
		a.report.Outcome = scheduler.OutcomePlanFound.String()
		a.report.Actions = actions
		s.finish(a)
	}
}

func (s *simSink) OnPlanFailed(requester, goalID, reason string) {
	if a, ok := s.agents[requester]; ok {
		a.report.Outcome = scheduler.OutcomePlanFailed.String()
		a.report.Reason = reason
		s.finish(a)
	}
}

func (s *simSink) finish(a *simAgent) {
	if !a.done {
		a.done = true
		s.done++
	}
}

// Execute runs the simulate command.
func (c *SimulateCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
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
	agents := c.agents
	if agents == 0 {
		agents = configInt(c.config, c.Name(), "agents", 4)
	}
	if agents < 1 {
		return fmt.Errorf("invalid agent count: %d", agents)
	}
	timeout := c.timeout
	if timeout == 0 {
		timeout = configDuration(c.config, c.Name(), "timeout", 5*time.Second)
	}

	ws, err := c.inputs.load(c.config, stderr)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sink := &simSink{agents: make(map[string]*simAgent, agents)}
	pool := scheduler.New(scheduler.Options{
		Workers:          ws.settings.Workers,
		QueueSize:        ws.settings.QueueSize,
		MaxExpansions:    ws.settings.MaxExpansions,
		ReplanRate:       ws.settings.ReplanRate,
		ReplanBurst:      ws.settings.ReplanBurst,
		SelectorFloor:    ws.settings.SelectorFloor,
		HasSelectorFloor: ws.settings.HasSelectorFloor,
		Logger:           ws.logger,
		Exprs:            ws.exprs,
	}, ws.registry, sink)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Close()

	order := make([]*simAgent, 0, agents)
	for i := range agents {
		self := ws.self.Clone()
		self.ID = ws.self.ID + int64(i)
		a := &simAgent{
			id:       fmt.Sprintf("agent-%d", i+1),
			snapshot: ws.store.Snapshot(&self),
			report:   &planReport{Agent: self.ID},
		}
		sink.agents[a.id] = a
		order = append(order, a)
		pool.Register(a.id)
	}

	started := time.Now()
	if err := c.drive(ctx, pool, sink, order, ws); err != nil {
		return err
	}
	ws.logger.Info("simulation complete", "agents", agents, "workers", pool.Workers(), "elapsed", time.Since(started))

	if mode != execNone {
		for _, a := range order {
			if err := c.executeAgent(ctx, mode, a, ws); err != nil {
				return fmt.Errorf("%s: %w", a.id, err)
			}
		}
	}

	reports := make([]*planReport, 0, len(order))
	for _, a := range order {
		reports = append(reports, a.report)
	}
	if format == "yaml" {
		return writeYAML(stdout, reports)
	}
	return writeSimulation(stdout, order)
}

// drive submits every agent and ticks the pool until all have a result.
// Requests refused by the queue bound or the replan throttle are retried on
// later ticks.
func (c *SimulateCommand) drive(ctx context.Context, pool *scheduler.Pool, sink *simSink, order []*simAgent, ws *workspace) error {
	waiting := slices.Clone(order)
	ticker := time.NewTicker(ws.settings.TickInterval)
	defer ticker.Stop()

	for {
		next := waiting[:0]
		for _, a := range waiting {
			_, err := pool.Submit(scheduler.Request{
				Requester: a.id,
				Snapshot:  a.snapshot,
				Ongoing:   ws.scenario.Ongoing,
				Schedule:  ws.scenario.GoalSchedule(),
			})
			switch {
			case err == nil:
			case errors.Is(err, scheduler.ErrThrottled):
				next = append(next, a)
			default:
				return fmt.Errorf("submit %s: %w", a.id, err)
			}
		}
		waiting = next

		pool.Tick()
		if sink.done == len(order) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("simulation incomplete (%d of %d agents): %w", sink.done, len(order), ctx.Err())
		case <-ticker.C:
		}
	}
}

// executeAgent runs a found plan against the agent's own view of the world.
func (c *SimulateCommand) executeAgent(ctx context.Context, mode string, a *simAgent, ws *workspace) error {
	if a.report.Outcome != scheduler.OutcomePlanFound.String() {
		return nil
	}
	goal, ok := ws.registry.Goal(a.report.Goal)
	if !ok {
		return fmt.Errorf("unknown goal: %s", a.report.Goal)
	}

	instances := ws.registry.Catalog().Instantiate(a.snapshot, ws.logger)
	byID := make(map[string]*catalog.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}
	plan := &planner.Plan{Actions: a.report.Actions}
	for _, id := range a.report.Actions {
		inst, ok := byID[id]
		if !ok {
			return fmt.Errorf("plan step %s has no instance", id)
		}
		plan.Steps = append(plan.Steps, inst)
		plan.Cost += inst.Cost
	}
	a.report.Cost = plan.Cost

	var err error
	a.report.Execution, err = executePlan(ctx, mode, plan, instances, a.snapshot.State(), goal.Preconditions, c.maxTicks, ws.logger.With("requester", a.id))
	return err
}

func writeSimulation(w io.Writer, order []*simAgent) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "AGENT\tOUTCOME\tGOAL\tDETAIL")
	for _, a := range order {
		r := a.report
		detail := r.Reason
		if r.Outcome == scheduler.OutcomePlanFound.String() {
			detail = strings.Join(r.Actions, " -> ")
			if detail == "" {
				detail = "(already satisfied)"
			}
		}
		if e := r.Execution; e != nil {
			detail += fmt.Sprintf(" [%s %s]", e.Mode, e.Status)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.id, r.Outcome, r.Goal, detail)
	}
	return tw.Flush()
}

func configInt(cfg *config.Config, command, key string, def int) int {
	if cfg == nil {
		return def
	}
	v, ok := cfg.GetCommandOption(command, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func configDuration(cfg *config.Config, command, key string, def time.Duration) time.Duration {
	if cfg == nil {
		return def
	}
	v, ok := cfg.GetCommandOption(command, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
