package defs

import (
	"fmt"

	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/goals"
)

// SelfDoc is the document form of facts.Self.
type SelfDoc struct {
	ID        int64              `yaml:"id" toml:"id"`
	Location  int64              `yaml:"location,omitempty" toml:"location"`
	Needs     map[string]float64 `yaml:"needs,omitempty" toml:"needs"`
	Traits    map[string]float64 `yaml:"traits,omitempty" toml:"traits"`
	Tags      map[string]float64 `yaml:"tags,omitempty" toml:"tags"`
	Inventory map[string]int     `yaml:"inventory,omitempty" toml:"inventory"`
}

// FactDoc is the document form of facts.Fact. A zero certainty means fully
// certain.
type FactDoc struct {
	Type      facts.FactType `yaml:"type" toml:"type"`
	Subject   int64          `yaml:"subject" toml:"subject"`
	Key       string         `yaml:"key" toml:"key"`
	Value     any            `yaml:"value,omitempty" toml:"value"`
	Certainty float64        `yaml:"certainty,omitempty" toml:"certainty"`
	Timestamp float64        `yaml:"timestamp,omitempty" toml:"timestamp"`
}

// ScheduleDoc is the document form of goals.Schedule.
type ScheduleDoc struct {
	Goal  string  `yaml:"goal" toml:"goal"`
	Bonus float64 `yaml:"bonus" toml:"bonus"`
}

// Scenario is one agent's situation: who it is, what it believes, and what
// it is already doing.
type Scenario struct {
	Self     SelfDoc      `yaml:"self" toml:"self"`
	Facts    []FactDoc    `yaml:"facts,omitempty" toml:"facts"`
	Ongoing  []string     `yaml:"ongoing,omitempty" toml:"ongoing"`
	Schedule *ScheduleDoc `yaml:"schedule,omitempty" toml:"schedule"`
}

// AgentSelf converts the self block.
func (s *Scenario) AgentSelf() facts.Self {
	return facts.Self{
		ID:         s.Self.ID,
		LocationID: s.Self.Location,
		Needs:      s.Self.Needs,
		Traits:     s.Self.Traits,
		Tags:       s.Self.Tags,
		Inventory:  s.Self.Inventory,
	}.Clone()
}

// Store loads the scenario's facts into a new store.
func (s *Scenario) Store(opts facts.Options) *facts.Store {
	st := facts.NewStore(opts)
	for _, f := range s.Facts {
		st.AddFact(facts.Fact{
			Type:      f.Type,
			SubjectID: f.Subject,
			Key:       f.Key,
			Value:     f.Value,
			Certainty: f.Certainty,
			Timestamp: f.Timestamp,
		})
	}
	return st
}

// GoalSchedule returns the schedule hint, or the zero Schedule.
func (s *Scenario) GoalSchedule() goals.Schedule {
	if s.Schedule == nil {
		return goals.Schedule{}
	}
	return goals.Schedule{GoalID: s.Schedule.Goal, Bonus: s.Schedule.Bonus}
}

// DecodeScenario parses a scenario document.
func DecodeScenario(data []byte, format Format) (*Scenario, error) {
	var s Scenario
	if err := decode(data, format, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

// LoadScenario reads a scenario document.
func LoadScenario(path string) (*Scenario, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	s, err := DecodeScenario(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
