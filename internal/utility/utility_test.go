package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/npc-planner/internal/worldstate"
)

func agentState() worldstate.State {
	return worldstate.FromMap(map[string]any{
		"need_hunger":        0.2,
		"trait_greedy":       0.8,
		"tag_strength_tired": 0.5,
		"state_3_gold":       4,
	})
}

func TestScorer_EvaluateKinds(t *testing.T) {
	t.Parallel()

	var s Scorer
	state := agentState()

	tests := []struct {
		name string
		e    Evaluator
		want float64
	}{
		{"need", Evaluator{Kind: KindNeed, Attribute: "hunger"}, 0.2},
		{"need inverted", Evaluator{Kind: KindNeed, Attribute: "hunger", Invert: true}, 0.8},
		{"trait scaled", Evaluator{Kind: KindTrait, Attribute: "greedy", Multiplier: new(2.0)}, 1.6},
		{"tag", Evaluator{Kind: KindTag, Attribute: "tired"}, 0.5},
		{"state", Evaluator{Kind: KindState, Attribute: "state_3_gold", Multiplier: new(0.5)}, 2},
		{"zero multiplier", Evaluator{Kind: KindTrait, Attribute: "greedy", Multiplier: new(0.0)}, 0},
		{"absent reads zero", Evaluator{Kind: KindNeed, Attribute: "thirst"}, 0},
		{"absent inverted", Evaluator{Kind: KindNeed, Attribute: "thirst", Invert: true}, 1},
		{"unknown kind", Evaluator{Kind: "mood", Attribute: "x"}, 0},
		{"no attribute", Evaluator{Kind: KindNeed}, 0},
		{"quadratic", Evaluator{Kind: KindNeed, Attribute: "hunger", Invert: true, Curve: Curve{Kind: CurveQuadratic}}, 0.64},
		{"expression", Evaluator{Kind: KindTrait, Attribute: "greedy", Curve: Curve{Kind: CurveExpression, Expression: "x * 10 + 1"}}, 9},
		{"bad expression", Evaluator{Kind: KindTrait, Attribute: "greedy", Curve: Curve{Kind: CurveExpression, Expression: "x +"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Evaluate(tt.e, state), 1e-9)
		})
	}
}

func TestScorer_SumIsAdditive(t *testing.T) {
	var s Scorer
	evs := []Evaluator{
		{Kind: KindNeed, Attribute: "hunger", Invert: true},
		{Kind: KindTrait, Attribute: "greedy"},
	}
	assert.InDelta(t, 1.6, s.Sum(evs, agentState()), 1e-9)
	assert.Equal(t, 0.0, s.Sum(nil, agentState()))
}

func TestCurves_Monotonic(t *testing.T) {
	curves := []Curve{
		{},
		{Kind: CurveLinear},
		{Kind: CurveQuadratic},
		{Kind: CurveSqrt},
		{Kind: CurveExponential, Exponent: new(3.0)},
		{Kind: CurveLogistic},
		{Kind: CurveLogistic, Steepness: new(4.0), Midpoint: new(0.3)},
		{Kind: CurveStep, Threshold: 0.5},
	}
	for _, c := range curves {
		prev := -1.0
		for i := 0; i <= 20; i++ {
			v, err := c.Apply(float64(i) / 20)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, prev, "curve %q not monotonic at %d", c.Kind, i)
			prev = v
		}
	}
}

func TestCurve_Values(t *testing.T) {
	v, err := Curve{Kind: CurveLogistic}.Apply(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)

	v, err = Curve{Kind: CurveStep, Threshold: 0.5}.Apply(0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = Curve{Kind: CurveExponential}.Apply(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-9)

	// explicit zeros are kept, not replaced by defaults
	v, err = Curve{Kind: CurveLogistic, Midpoint: new(0.0)}.Apply(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)

	v, err = Curve{Kind: CurveExponential, Exponent: new(0.0)}.Apply(0.3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = Curve{Kind: CurveLogistic, Steepness: new(0.0)}.Apply(0.9)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-9)

	_, err = Curve{Kind: "wobble"}.Apply(0.5)
	assert.Error(t, err)
}

func TestEvaluator_Key(t *testing.T) {
	k, err := Evaluator{Kind: KindTag, Attribute: "tired"}.Key()
	require.NoError(t, err)
	assert.Equal(t, "tag_strength_tired", k)

	_, err = Evaluator{Kind: "nope", Attribute: "x"}.Key()
	assert.Error(t, err)
}
