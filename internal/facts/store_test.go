package facts

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/npc-planner/internal/worldstate"
)

func newTestStore() *Store {
	return NewStore(DefaultOptions())
}

func seedVillage(s *Store) {
	// 10: a bakery at location 100, 11: an apple on the ground at 101,
	// 12: an apple with no known location, 13: a chair.
	s.AddFact(Fact{Type: TypeEntityType, SubjectID: 10, Key: "type", Value: "building"})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 10, Key: "sells_food", Value: true})
	s.AddFact(Fact{Type: TypeLocation, SubjectID: 10, Key: "position", Value: 100})

	s.AddFact(Fact{Type: TypeEntityType, SubjectID: 11, Key: "type", Value: "item"})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 11, Key: "food", Value: true})
	s.AddFact(Fact{Type: TypeState, SubjectID: 11, Key: "rotten", Value: false})
	s.AddFact(Fact{Type: TypeLocation, SubjectID: 11, Key: "position", Value: 101})

	s.AddFact(Fact{Type: TypeEntityType, SubjectID: 12, Key: "type", Value: "item"})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 12, Key: "food", Value: true})
	s.AddFact(Fact{Type: TypeState, SubjectID: 12, Key: "rotten", Value: true})

	s.AddFact(Fact{Type: TypeEntityType, SubjectID: 13, Key: "type", Value: "furniture"})
}

func TestStore_AddAndGetFact(t *testing.T) {
	s := newTestStore()
	s.AddFact(Fact{Type: TypeState, SubjectID: 1, Key: "open", Value: true, Timestamp: 5})

	f, ok := s.GetFact(TypeState, 1, "open")
	require.True(t, ok)
	assert.Equal(t, true, f.Value)
	assert.Equal(t, 1.0, f.Certainty)
	assert.Equal(t, 5.0, f.Timestamp)

	_, ok = s.GetFact(TypeState, 1, "closed")
	assert.False(t, ok)
}

func TestStore_ReobservationUpdatesInPlace(t *testing.T) {
	s := newTestStore()
	s.AddFact(Fact{Type: TypeLocation, SubjectID: 7, Key: "position", Value: 100, Certainty: 0.9, Timestamp: 1})
	s.Decay(30)

	f, ok := s.GetFact(TypeLocation, 7, "position")
	require.True(t, ok)
	assert.InDelta(t, 0.6, f.Certainty, 1e-9)

	s.AddFact(Fact{Type: TypeLocation, SubjectID: 7, Key: "position", Value: 200, Timestamp: 31})
	f, ok = s.GetFact(TypeLocation, 7, "position")
	require.True(t, ok)
	assert.Equal(t, int64(200), f.Value)
	assert.Equal(t, 1.0, f.Certainty)
	assert.Equal(t, 31.0, f.Timestamp)
	assert.Equal(t, 1, s.Len())
}

func TestStore_RemoveFact(t *testing.T) {
	s := newTestStore()
	s.AddFact(Fact{Type: TypeTag, SubjectID: 1, Key: "food"})
	assert.True(t, s.RemoveFact(TypeTag, 1, "food"))
	assert.False(t, s.RemoveFact(TypeTag, 1, "food"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_LowCertaintyIsUnknown(t *testing.T) {
	s := newTestStore()
	s.AddFact(Fact{Type: TypeTag, SubjectID: 1, Key: "food", Certainty: 0.1})
	s.AddFact(Fact{Type: TypeEntityType, SubjectID: 1, Key: "type", Value: "item", Certainty: 0.1})

	_, ok := s.GetFact(TypeTag, 1, "food")
	assert.False(t, ok)
	assert.Empty(t, s.FindEntitiesMatching(Criteria{Tags: []string{"food"}}))
	assert.False(t, s.WorldState(nil).Has(worldstate.TagKey(1, "food")))
	// still held, just not believed
	assert.Equal(t, 2, s.Len())
}

func TestStore_DecayForgets(t *testing.T) {
	s := NewStore(Options{DecayRate: 0.1, MinCertainty: 0.2, ForgetThreshold: 0.05})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 1, Key: "a", Certainty: 1})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 2, Key: "b", Certainty: 0.3})

	assert.Equal(t, 0, s.Decay(0))
	assert.Equal(t, 0, s.Decay(-5))

	// 0.3 -> 0.0: forgotten; 1.0 -> 0.7
	assert.Equal(t, 1, s.Decay(3))
	assert.Equal(t, 1, s.Len())

	f, ok := s.GetFact(TypeTag, 1, "a")
	require.True(t, ok)
	assert.InDelta(t, 0.7, f.Certainty, 1e-9)

	// certainty never increases from decay
	prev := f.Certainty
	s.Decay(1)
	f, _ = s.GetFact(TypeTag, 1, "a")
	assert.Less(t, f.Certainty, prev)
}

func TestStore_NaNIsNotSticky(t *testing.T) {
	s := NewStore(Options{DecayRate: 0.1, MinCertainty: 0.2, ForgetThreshold: 0.05})
	s.AddFact(Fact{Type: TypeTag, SubjectID: 1, Key: "a", Certainty: math.NaN()})

	f, ok := s.GetFact(TypeTag, 1, "a")
	require.True(t, ok)
	assert.Equal(t, 1.0, f.Certainty)

	// NaN minutes are ignored
	assert.Equal(t, 0, s.Decay(math.NaN()))
	f, _ = s.GetFact(TypeTag, 1, "a")
	assert.Equal(t, 1.0, f.Certainty)

	assert.Equal(t, 1, s.Decay(1e6))
	assert.Zero(t, s.Len())
	_, ok = s.GetFact(TypeTag, 1, "a")
	assert.False(t, ok)
}

func TestStore_FindEntitiesMatching(t *testing.T) {
	s := newTestStore()
	seedVillage(s)

	tests := []struct {
		name string
		c    Criteria
		want []int64
	}{
		{"everything", Criteria{}, []int64{10, 11, 12, 13}},
		{"entity type", Criteria{EntityType: "item"}, []int64{11, 12}},
		{"tag", Criteria{Tags: []string{"sells_food"}}, []int64{10}},
		{"state", Criteria{Tags: []string{"food"}, States: map[string]any{"rotten": false}}, []int64{11}},
		{"filter", Criteria{Filter: `has_location && location > 100`}, []int64{11}},
		{"filter on tags", Criteria{Filter: `"food" in tags && state.rotten == true`}, []int64{12}},
		{"no match", Criteria{EntityType: "dragon"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.FindEntitiesMatching(tt.c)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindEntitiesMatching mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_BadFilterExcludes(t *testing.T) {
	s := newTestStore()
	seedVillage(s)
	assert.Empty(t, s.FindEntitiesMatching(Criteria{Filter: `location +`}))
}

func TestStore_LocationOf(t *testing.T) {
	s := newTestStore()
	seedVillage(s)

	loc, ok := s.LocationOf(11)
	assert.True(t, ok)
	assert.Equal(t, int64(101), loc)

	_, ok = s.LocationOf(12)
	assert.False(t, ok)
}

func TestStore_WorldStateFlattening(t *testing.T) {
	s := newTestStore()
	seedVillage(s)
	s.AddFact(Fact{Type: TypeItem, SubjectID: 10, Key: "bread", Value: 4})

	self := &Self{
		ID:         1,
		LocationID: 100,
		Needs:      map[string]float64{"hunger": 0.2},
		Traits:     map[string]float64{"greedy": 0.7},
		Tags:       map[string]float64{"tired": 0.5},
		Inventory:  map[string]int{"coin": 3, "apple": 0},
	}
	ws := s.WorldState(self)

	want := map[string]any{
		"location_10":        int64(100),
		"location_11":        int64(101),
		"type_11":            "item",
		"tag_11_food":        true,
		"state_11_rotten":    false,
		"item_10_bread":      int64(4),
		"self_id":            int64(1),
		"self_location":      int64(100),
		"need_hunger":        0.2,
		"trait_greedy":       0.7,
		"has_tag_tired":      true,
		"tag_strength_tired": 0.5,
		"item_count_coin":    int64(3),
		"has_item_coin":      true,
		"item_count_apple":   int64(0),
	}
	for k, v := range want {
		assert.Equal(t, v, ws[k], "key %s", k)
	}
	assert.False(t, ws.Has("has_item_apple"))
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	s := newTestStore()
	seedVillage(s)
	self := &Self{ID: 1, Needs: map[string]float64{"hunger": 0.2}}

	snap := s.Snapshot(self)
	before := snap.State()

	s.AddFact(Fact{Type: TypeTag, SubjectID: 13, Key: "food"})
	s.RemoveFact(TypeLocation, 11, "position")
	self.Needs["hunger"] = 0.9

	assert.Equal(t, before.Key(), snap.State().Key())
	assert.Equal(t, []int64{11, 12}, snap.FindEntitiesMatching(Criteria{Tags: []string{"food"}}))
	loc, ok := snap.LocationOf(11)
	assert.True(t, ok)
	assert.Equal(t, int64(101), loc)

	got, ok := snap.Self()
	require.True(t, ok)
	assert.Equal(t, 0.2, got.Needs["hunger"])

	// mutating a returned state does not leak back
	st := snap.State()
	st.Set("self_id", 99)
	assert.Equal(t, int64(1), snap.State()["self_id"])
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot([]Fact{
		{Type: TypeLocation, SubjectID: 5, Key: "position", Value: 9},
		{Type: TypeTag, SubjectID: 5, Key: "bed"},
	}, nil)
	assert.Equal(t, []int64{5}, snap.FindEntitiesMatching(Criteria{Tags: []string{"bed"}}))
	_, ok := snap.Self()
	assert.False(t, ok)
	assert.Equal(t, int64(9), snap.State()["location_5"])
}

func TestStore_ConcurrentReadsAndSnapshots(t *testing.T) {
	s := newTestStore()
	seedVillage(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					s.AddFact(Fact{Type: TypeState, SubjectID: int64(20 + i), Key: "n", Value: j})
				} else {
					_ = s.Snapshot(nil).State()
					_ = s.FindEntitiesMatching(Criteria{EntityType: "item"})
				}
			}
		}(i)
	}
	wg.Wait()
}
