package goals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/npc-planner/internal/utility"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

func hungerGoals() []*Definition {
	return []*Definition{
		{
			ID:             "SatisfyHunger",
			Preconditions:  worldstate.FromMap(map[string]any{"hunger_satisfied": true}),
			BaseImportance: 1,
			LinkedNeed:     "hunger",
			Evaluators:     []utility.Evaluator{{Kind: utility.KindNeed, Invert: true, Multiplier: new(4.0)}},
		},
		{
			ID:             "Rest",
			Preconditions:  worldstate.FromMap(map[string]any{"rested": true}),
			BaseImportance: 2,
		},
		{
			ID:             "Wander",
			Preconditions:  worldstate.FromMap(map[string]any{"wandered": true}),
			BaseImportance: 0.5,
			RelevantTraits: []string{"curious"},
			TraitBonus:     3,
		},
	}
}

func TestSelect_HighestUtilityWins(t *testing.T) {
	s := NewSelector(Options{})
	state := worldstate.FromMap(map[string]any{"need_hunger": 0.25})

	sel := s.Select(state, hungerGoals(), nil, Schedule{})
	require.True(t, sel.Selected())
	assert.Equal(t, "SatisfyHunger", sel.GoalID)
	// 1 + (1-0.25)*4
	assert.InDelta(t, 4.0, sel.Utility, 1e-9)
	assert.Len(t, sel.Scores, 3)
}

func TestSelect_SatisfiedGoalExcluded(t *testing.T) {
	s := NewSelector(Options{})
	// starving, so SatisfyHunger would dominate if it were eligible
	state := worldstate.FromMap(map[string]any{
		"need_hunger":      0.0,
		"hunger_satisfied": true,
	})

	sel := s.Select(state, hungerGoals(), nil, Schedule{})
	assert.Equal(t, "Rest", sel.GoalID)
	for _, sc := range sel.Scores {
		assert.NotEqual(t, "SatisfyHunger", sc.GoalID)
	}
}

func TestSelect_AllSatisfiedSelectsNothing(t *testing.T) {
	s := NewSelector(Options{})
	state := worldstate.FromMap(map[string]any{
		"hunger_satisfied": true,
		"rested":           true,
		"wandered":         true,
	})
	sel := s.Select(state, hungerGoals(), nil, Schedule{})
	assert.False(t, sel.Selected())
	assert.Empty(t, sel.Scores)
}

func TestSelect_TiesKeepFirst(t *testing.T) {
	s := NewSelector(Options{})
	defs := []*Definition{
		{ID: "A", Preconditions: worldstate.State{"a": true}, BaseImportance: 1},
		{ID: "B", Preconditions: worldstate.State{"b": true}, BaseImportance: 1},
	}
	assert.Equal(t, "A", s.Select(worldstate.New(), defs, nil, Schedule{}).GoalID)

	defs[0], defs[1] = defs[1], defs[0]
	assert.Equal(t, "B", s.Select(worldstate.New(), defs, nil, Schedule{}).GoalID)
}

func TestSelect_Bonuses(t *testing.T) {
	s := NewSelector(Options{})
	state := worldstate.FromMap(map[string]any{"need_hunger": 1.0})

	tests := []struct {
		name     string
		state    worldstate.State
		ongoing  []string
		schedule Schedule
		want     string
	}{
		{name: "baseline", state: state, want: "Rest"},
		{name: "schedule bonus", state: state, schedule: Schedule{GoalID: "Wander", Bonus: 5}, want: "Wander"},
		{name: "schedule other goal", state: state, schedule: Schedule{GoalID: "Nope", Bonus: 5}, want: "Rest"},
		{name: "trait bonus", state: state.Apply(worldstate.State{"trait_curious": 0.1}), want: "Wander"},
		{name: "zero trait no bonus", state: state.Apply(worldstate.State{"trait_curious": 0.0}), want: "Rest"},
		{name: "influence from ongoing", state: state, ongoing: []string{"Influencer"}, want: "SatisfyHunger"},
		{name: "unknown ongoing ignored", state: state, ongoing: []string{"Ghost"}, want: "Rest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs := append(hungerGoals(), &Definition{
				ID:            "Influencer",
				Preconditions: worldstate.State{"never": true},
				Influence:     map[string]float64{"SatisfyHunger": 10},
			})
			assert.Equal(t, tt.want, s.Select(tt.state, defs, tt.ongoing, tt.schedule).GoalID)
		})
	}
}

func TestSelect_UnknownNeedSkipped(t *testing.T) {
	s := NewSelector(Options{Needs: map[string]struct{}{"energy": {}}})
	state := worldstate.FromMap(map[string]any{"need_hunger": 0.0})
	sel := s.Select(state, hungerGoals(), nil, Schedule{})
	assert.Equal(t, "Rest", sel.GoalID)
	for _, sc := range sel.Scores {
		assert.NotEqual(t, "SatisfyHunger", sc.GoalID)
	}
}

func TestSelect_Floor(t *testing.T) {
	s := NewSelector(Options{Floor: 10, HasFloor: true})
	sel := s.Select(worldstate.New(), hungerGoals(), nil, Schedule{})
	assert.False(t, sel.Selected())
	assert.Len(t, sel.Scores, 3)

	s = NewSelector(Options{Floor: -1, HasFloor: true})
	assert.True(t, s.Select(worldstate.New(), hungerGoals(), nil, Schedule{}).Selected())
}

func TestSelect_NilDefinitionsSkipped(t *testing.T) {
	s := NewSelector(Options{})
	defs := []*Definition{nil, {ID: ""}, {ID: "Ok", Preconditions: worldstate.State{"ok": true}}}
	assert.Equal(t, "Ok", s.Select(worldstate.New(), defs, nil, Schedule{}).GoalID)
}
