package testutil

import (
	"slices"
	"sync"
)

// EventKind names a sink callback.
type EventKind string

const (
	GoalSelected EventKind = "goal-selected"
	PlanFound    EventKind = "plan-found"
	PlanFailed   EventKind = "plan-failed"
)

// Event is one recorded sink callback.
type Event struct {
	Kind      EventKind
	Requester string
	GoalID    string
	Actions   []string
	Reason    string
}

// RecordingSink records every callback it receives. It satisfies the
// scheduler's result sink and is safe for concurrent use.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
	// OnEvent, if set, is called after recording, outside the lock.
	OnEvent func(Event)
}

func (s *RecordingSink) OnGoalSelected(requester, goalID string) {
	s.record(Event{Kind: GoalSelected, Requester: requester, GoalID: goalID})
}

func (s *RecordingSink) OnPlanFound(requester, goalID string, actions []string) {
	s.record(Event{Kind: PlanFound, Requester: requester, GoalID: goalID, Actions: slices.Clone(actions)})
}

func (s *RecordingSink) OnPlanFailed(requester, goalID, reason string) {
	s.record(Event{Kind: PlanFailed, Requester: requester, GoalID: goalID, Reason: reason})
}

func (s *RecordingSink) record(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	fn := s.OnEvent
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Events returns a copy of everything recorded so far.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// For returns the events recorded for one requester.
func (s *RecordingSink) For(requester string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Requester == requester {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Completed returns the number of requests that reached a terminal
// callback: a plan result, or goal selection with no goal.
func (s *RecordingSink) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		switch {
		case e.Kind == PlanFound, e.Kind == PlanFailed:
			n++
		case e.Kind == GoalSelected && e.GoalID == "":
			n++
		}
	}
	return n
}
