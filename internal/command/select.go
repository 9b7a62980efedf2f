package command

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/joeycumines/npc-planner/internal/config"
	"github.com/joeycumines/npc-planner/internal/goals"
)

// SelectCommand reports goal utilities for one agent without planning.
type SelectCommand struct {
	*BaseCommand
	config *config.Config
	inputs inputFlags
	format string
}

// NewSelectCommand creates a new select command.
func NewSelectCommand(cfg *config.Config) *SelectCommand {
	return &SelectCommand{
		BaseCommand: NewBaseCommand(
			"select",
			"Score every goal for an agent and report the winner",
			"select -defs <file> -scenario <file> [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the select command.
func (c *SelectCommand) SetupFlags(fs *flag.FlagSet) {
	c.inputs.setup(fs)
	fs.StringVar(&c.format, "format", "", "Output format: text, yaml")
}

type selectReport struct {
	Agent    int64         `yaml:"agent"`
	Selected string        `yaml:"selected,omitempty"`
	Scores   []goals.Score `yaml:"scores"`
}

// Execute runs the select command.
func (c *SelectCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	format := commandOption(c.config, c.Name(), "format", c.format, "text")
	if err := validFormat(format); err != nil {
		return err
	}

	ws, err := c.inputs.load(c.config, stderr)
	if err != nil {
		return err
	}
	defer ws.Close()

	sel := ws.selector().Select(ws.snapshot().State(), ws.registry.AllGoals(), ws.scenario.Ongoing, ws.scenario.GoalSchedule())

	scores := slices.Clone(sel.Scores)
	slices.SortStableFunc(scores, func(a, b goals.Score) int {
		return cmp.Compare(b.Utility, a.Utility)
	})
	report := selectReport{Agent: ws.self.ID, Selected: sel.GoalID, Scores: scores}

	if format == "yaml" {
		return writeYAML(stdout, report)
	}

	tw := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "GOAL\tUTILITY\t")
	for _, s := range report.Scores {
		mark := ""
		if s.GoalID == report.Selected {
			mark = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%.3f\t%s\n", s.GoalID, s.Utility, mark)
	}
	if report.Selected == "" {
		_, _ = fmt.Fprintln(tw, "(no goal selected)")
	}
	return tw.Flush()
}
