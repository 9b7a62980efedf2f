package utility

import (
	"fmt"
	"math"

	"github.com/joeycumines/npc-planner/internal/exprcache"
)

// CurveKind names a response curve.
type CurveKind string

const (
	// CurveLinear is the identity. The zero Curve is linear.
	CurveLinear CurveKind = "linear"
	// CurveQuadratic squares the input.
	CurveQuadratic CurveKind = "quadratic"
	// CurveSqrt takes the square root of the (non-negative) input.
	CurveSqrt CurveKind = "sqrt"
	// CurveExponential raises the input to Exponent (default 2).
	CurveExponential CurveKind = "exponential"
	// CurveLogistic is 1/(1+e^(-Steepness*(x-Midpoint))), by default with
	// Steepness 10 and Midpoint 0.5.
	CurveLogistic CurveKind = "logistic"
	// CurveStep is 1 at or above Threshold, else 0.
	CurveStep CurveKind = "step"
	// CurveExpression evaluates an expr-lang expression of x.
	CurveExpression CurveKind = "expression"
)

// Curve remaps a value before it is scaled. Every built-in curve is
// monotonic non-decreasing on [0,1]; expression curves are the caller's
// responsibility. Nil parameters take the kind's default, so an explicit
// zero (a logistic midpoint of 0, say) is kept.
type Curve struct {
	Kind       CurveKind `yaml:"kind,omitempty" toml:"kind"`
	Exponent   *float64  `yaml:"exponent,omitempty" toml:"exponent"`
	Steepness  *float64  `yaml:"steepness,omitempty" toml:"steepness"`
	Midpoint   *float64  `yaml:"midpoint,omitempty" toml:"midpoint"`
	Threshold  float64   `yaml:"threshold,omitempty" toml:"threshold"`
	Expression string    `yaml:"expression,omitempty" toml:"expression"`
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// curveEnv is the environment of expression curves.
type curveEnv struct {
	X float64 `expr:"x"`
}

// Apply remaps x using the shared expression cache.
func (c Curve) Apply(x float64) (float64, error) {
	return c.apply(x, exprcache.Shared())
}

func (c Curve) apply(x float64, exprs *exprcache.Cache) (float64, error) {
	switch c.Kind {
	case "", CurveLinear:
		return x, nil
	case CurveQuadratic:
		return x * x, nil
	case CurveSqrt:
		return math.Sqrt(math.Max(x, 0)), nil
	case CurveExponential:
		return math.Pow(math.Max(x, 0), orDefault(c.Exponent, 2)), nil
	case CurveLogistic:
		k := orDefault(c.Steepness, 10)
		mid := orDefault(c.Midpoint, 0.5)
		return 1 / (1 + math.Exp(-k*(x-mid))), nil
	case CurveStep:
		if x >= c.Threshold {
			return 1, nil
		}
		return 0, nil
	case CurveExpression:
		return exprs.EvalFloat(c.Expression, curveEnv{X: x})
	default:
		return 0, fmt.Errorf("unknown curve kind %q", c.Kind)
	}
}
