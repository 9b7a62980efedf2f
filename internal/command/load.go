package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/joeycumines/npc-planner/internal/config"
	"github.com/joeycumines/npc-planner/internal/defs"
	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/goals"
)

// inputFlags are shared by every command that works on a definition
// document and a scenario.
type inputFlags struct {
	defsPath     string
	scenarioPath string
	elapsed      float64
	logFile      string
	logLevel     string
}

func (f *inputFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.defsPath, "defs", "", "Goal and action definition document (.yaml, .yml or .toml)")
	fs.StringVar(&f.scenarioPath, "scenario", "", "Agent scenario document (.yaml, .yml or .toml)")
	fs.Float64Var(&f.elapsed, "elapsed", 0, "Simulated minutes of fact decay to apply before planning")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to this file (overrides log.file)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
}

// workspace is everything a command needs after loading its inputs.
type workspace struct {
	settings config.Settings
	logs     logConfig
	logger   *slog.Logger
	exprs    *exprcache.Cache
	registry *defs.Registry
	scenario *defs.Scenario
	self     facts.Self
	store    *facts.Store
}

// load resolves settings and logging, then reads both documents. The caller
// must Close the workspace.
func (f *inputFlags) load(cfg *config.Config, stderr io.Writer) (*workspace, error) {
	if f.defsPath == "" || f.scenarioPath == "" {
		return nil, errors.New("both -defs and -scenario are required")
	}
	if f.elapsed < 0 {
		return nil, fmt.Errorf("invalid -elapsed: %v", f.elapsed)
	}

	settings, err := config.DefaultSchema().Settings(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logs, err := resolveLogConfig(f.logFile, f.logLevel, settings)
	if err != nil {
		return nil, err
	}

	ws := &workspace{
		settings: settings,
		logs:     logs,
		logger:   logs.logger(stderr),
		exprs:    exprcache.New(settings.ExprCacheSize),
	}

	doc, err := defs.LoadDocument(f.defsPath)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.registry = doc.Registry(ws.logger)

	ws.scenario, err = defs.LoadScenario(f.scenarioPath)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.self = ws.scenario.AgentSelf()
	ws.store = ws.scenario.Store(ws.factOptions())
	if f.elapsed > 0 {
		forgotten := ws.store.Decay(f.elapsed)
		ws.logger.Debug("applied fact decay", "minutes", f.elapsed, "forgotten", forgotten)
	}

	ws.logger.Debug("inputs loaded",
		"goals", len(ws.registry.AllGoals()),
		"actions", ws.registry.Catalog().Len(),
		"facts", ws.store.Len(),
	)
	return ws, nil
}

func (ws *workspace) factOptions() facts.Options {
	return facts.Options{
		DecayRate:       ws.settings.DecayRate,
		MinCertainty:    ws.settings.MinCertainty,
		ForgetThreshold: ws.settings.ForgetThreshold,
		Logger:          ws.logger,
		Exprs:           ws.exprs,
	}
}

func (ws *workspace) selector() *goals.Selector {
	var needs map[string]struct{}
	if names := ws.registry.Needs(); names != nil {
		needs = make(map[string]struct{}, len(names))
		for _, n := range names {
			needs[n] = struct{}{}
		}
	}
	return goals.NewSelector(goals.Options{
		Logger:   ws.logger,
		Exprs:    ws.exprs,
		Needs:    needs,
		Floor:    ws.settings.SelectorFloor,
		HasFloor: ws.settings.HasSelectorFloor,
	})
}

func (ws *workspace) snapshot() *facts.Snapshot {
	self := ws.self.Clone()
	return ws.store.Snapshot(&self)
}

func (ws *workspace) Close() error {
	return ws.logs.Close()
}
