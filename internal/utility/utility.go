// Package utility scores how desirable a goal is for an agent right now.
//
// An Evaluator is a closed tagged variant: Kind selects where the raw value
// comes from, and the remaining fields shape it. Adding a kind means adding a
// constant and a case in Key; Evaluate stays total.
package utility

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// Kind is the source of an evaluator's raw value.
type Kind string

const (
	// KindNeed reads need_<attribute>.
	KindNeed Kind = "need"
	// KindTrait reads trait_<attribute>.
	KindTrait Kind = "trait"
	// KindTag reads tag_strength_<attribute>.
	KindTag Kind = "tag"
	// KindState reads the world-state key <attribute> verbatim.
	KindState Kind = "state"
)

// Evaluator produces one additive contribution to a utility score.
type Evaluator struct {
	Kind      Kind   `yaml:"kind" toml:"kind"`
	Attribute string `yaml:"attribute,omitempty" toml:"attribute"`
	// Invert maps the raw value v to 1-v before the curve.
	Invert bool  `yaml:"invert,omitempty" toml:"invert"`
	Curve  Curve `yaml:"curve,omitempty" toml:"curve"`
	// Multiplier scales the curved value. Nil means one; zero silences the
	// evaluator.
	Multiplier *float64 `yaml:"multiplier,omitempty" toml:"multiplier"`
}

// Key returns the world-state key the evaluator reads.
func (e Evaluator) Key() (string, error) {
	if e.Attribute == "" {
		return "", fmt.Errorf("%s evaluator has no attribute", e.Kind)
	}
	switch e.Kind {
	case KindNeed:
		return worldstate.NeedKey(e.Attribute), nil
	case KindTrait:
		return worldstate.TraitKey(e.Attribute), nil
	case KindTag:
		return worldstate.TagStrengthKey(e.Attribute), nil
	case KindState:
		return e.Attribute, nil
	default:
		return "", fmt.Errorf("unknown evaluator kind %q", e.Kind)
	}
}

// Scorer evaluates evaluators against world-states. The zero value is usable
// and logs through slog.Default with the shared expression cache.
type Scorer struct {
	Logger *slog.Logger
	Exprs  *exprcache.Cache
}

// Evaluate returns the evaluator's contribution for state. Missing
// attributes read as zero; misconfigured evaluators contribute zero and log a
// warning.
func (s Scorer) Evaluate(e Evaluator, state worldstate.State) float64 {
	key, err := e.Key()
	if err != nil {
		s.logger().Warn("invalid utility evaluator", "error", err)
		return 0
	}
	v, _ := state.Float(key)
	if e.Invert {
		v = 1 - v
	}
	v, err = e.Curve.apply(v, s.exprs())
	if err != nil {
		s.logger().Warn("utility curve failed", "key", key, "error", err)
		return 0
	}
	out := v * orDefault(e.Multiplier, 1)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		s.logger().Warn("utility evaluator produced a non-finite value", "key", key, "value", out)
		return 0
	}
	return out
}

// Sum adds the contributions of every evaluator.
func (s Scorer) Sum(evaluators []Evaluator, state worldstate.State) float64 {
	total := 0.0
	for _, e := range evaluators {
		total += s.Evaluate(e, state)
	}
	return total
}

func (s Scorer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Scorer) exprs() *exprcache.Cache {
	if s.Exprs != nil {
		return s.Exprs
	}
	return exprcache.Shared()
}
