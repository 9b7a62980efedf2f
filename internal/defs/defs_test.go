package defs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/goals"
	"github.com/joeycumines/npc-planner/internal/utility"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(
		[]*goals.Definition{{ID: "b"}, nil, {ID: "a", BaseImportance: 1}, {ID: ""}, {ID: "a", BaseImportance: 2}},
		[]*catalog.Template{{ID: "z"}, {ID: "bad", Cost: -1}, nil, {ID: "y", Cost: 2}},
		[]string{"hunger", "energy", "hunger"},
		nil,
	)

	ids := func(gs []*goals.Definition) []string {
		var out []string
		for _, g := range gs {
			out = append(out, g.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b"}, ids(r.AllGoals()))
	g, ok := r.Goal("a")
	require.True(t, ok)
	assert.Equal(t, 2.0, g.BaseImportance)
	_, ok = r.Goal("nope")
	assert.False(t, ok)

	actions := r.AllActions()
	require.Len(t, actions, 2)
	assert.Equal(t, "y", actions[0].ID)
	_, ok = r.Action("bad")
	assert.False(t, ok)

	assert.Equal(t, []string{"energy", "hunger"}, r.Needs())
	assert.Nil(t, NewRegistry(nil, nil, nil, nil).Needs())

	// callers cannot reorder the table
	all := r.AllGoals()
	all[0], all[1] = all[1], all[0]
	assert.Equal(t, []string{"a", "b"}, ids(r.AllGoals()))
}

func TestLoadDocument_FormatsAgree(t *testing.T) {
	y, err := LoadDocument(filepath.Join("testdata", "village.yaml"))
	require.NoError(t, err)
	tm, err := LoadDocument(filepath.Join("testdata", "village.toml"))
	require.NoError(t, err)

	ry, rt := y.Registry(nil), tm.Registry(nil)
	if diff := cmp.Diff(ry.AllGoals(), rt.AllGoals()); diff != "" {
		t.Errorf("goals differ between yaml and toml (-yaml +toml):\n%s", diff)
	}
	if diff := cmp.Diff(ry.AllActions(), rt.AllActions()); diff != "" {
		t.Errorf("actions differ between yaml and toml (-yaml +toml):\n%s", diff)
	}
	assert.Equal(t, ry.Needs(), rt.Needs())
}

func TestLoadDocument_Contents(t *testing.T) {
	d, err := LoadDocument(filepath.Join("testdata", "village.yaml"))
	require.NoError(t, err)
	r := d.Registry(nil)

	g, ok := r.Goal("SatisfyHunger")
	require.True(t, ok)
	assert.Equal(t, "hunger", g.LinkedNeed)
	assert.Equal(t, true, g.Preconditions["hunger_satisfied"])
	require.Len(t, g.Evaluators, 1)
	assert.Equal(t, utility.Evaluator{Kind: utility.KindNeed, Invert: true, Multiplier: new(4.0)}, g.Evaluators[0])

	rest, _ := r.Goal("Rest")
	assert.Equal(t, utility.CurveQuadratic, rest.Evaluators[0].Curve.Kind)

	soc, _ := r.Goal("Socialise")
	assert.Equal(t, map[string]float64{"Rest": -0.5}, soc.Influence)

	a, ok := r.Action("PickupFood")
	require.True(t, ok)
	require.NotNil(t, a.Target)
	assert.Equal(t, []string{"food"}, a.Target.Tags)
	assert.Equal(t, "has_location", a.Target.Filter)
	assert.Equal(t, catalog.TargetLocationIDToken, a.Preconditions["self_location"])
}

func TestDecodeDocument_Errors(t *testing.T) {
	_, err := DecodeDocument([]byte("goals: [{id: x, bogus: 1}]"), FormatYAML)
	assert.Error(t, err)

	_, err = DecodeDocument([]byte("[[goals]]\nid = \"x\"\nbogus = 1\n"), FormatTOML)
	assert.Error(t, err)

	_, err = DecodeDocument([]byte("goals: ["), FormatYAML)
	assert.Error(t, err)

	_, err = DecodeDocument(nil, "json")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	d, err := DecodeDocument(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, d.Goals)
}

func TestDecodeDocument_ExplicitZeros(t *testing.T) {
	yamlDoc := `goals:
  - id: Calm
    evaluators:
      - kind: trait
        attribute: calm
        multiplier: 0
        curve: {kind: logistic, midpoint: 0}
`
	tomlDoc := `[[goals]]
id = "Calm"
[[goals.evaluators]]
kind = "trait"
attribute = "calm"
multiplier = 0.0
curve = { kind = "logistic", midpoint = 0.0 }
`
	for format, data := range map[Format]string{FormatYAML: yamlDoc, FormatTOML: tomlDoc} {
		t.Run(string(format), func(t *testing.T) {
			d, err := DecodeDocument([]byte(data), format)
			require.NoError(t, err)
			require.Len(t, d.Goals, 1)
			require.Len(t, d.Goals[0].Evaluators, 1)
			e := d.Goals[0].Evaluators[0]
			require.NotNil(t, e.Multiplier)
			assert.Zero(t, *e.Multiplier)
			require.NotNil(t, e.Curve.Midpoint)
			assert.Zero(t, *e.Curve.Midpoint)
			assert.Nil(t, e.Curve.Steepness)
		})
	}
}

func TestLoadDocument_Errors(t *testing.T) {
	_, err := LoadDocument("defs.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario(t *testing.T) {
	for _, name := range []string{"hungry.yaml", "hungry.toml"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", name))
			require.NoError(t, err)

			self := s.AgentSelf()
			assert.Equal(t, int64(1), self.ID)
			assert.Equal(t, int64(5), self.LocationID)
			assert.Equal(t, 0.1, self.Needs["hunger"])

			st := s.Store(facts.DefaultOptions())
			assert.Equal(t, 4, st.Len())
			assert.Equal(t, []int64{21}, st.FindEntitiesMatching(facts.Criteria{Tags: []string{"food"}}))

			state := st.WorldState(&self)
			assert.Equal(t, int64(300), state[worldstate.LocationKey(21)])
			assert.Equal(t, "bread", state[worldstate.TypeKey(21)])
			assert.Equal(t, goals.Schedule{}, s.GoalSchedule())
		})
	}
}

func TestScenario_Schedule(t *testing.T) {
	s, err := DecodeScenario([]byte("self: {id: 3}\nschedule: {goal: Rest, bonus: 2}\nongoing: [Work]\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, goals.Schedule{GoalID: "Rest", Bonus: 2}, s.GoalSchedule())
	assert.Equal(t, []string{"Work"}, s.Ongoing)
}
