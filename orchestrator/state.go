package orchestrator

import (
	"encoding/json"
	"fmt"

	c "github.com/relloyd/scdpipe/constants"
)

// State is the state of one attempt of a run date.
type State uint32

const (
	StateMissing State = iota
	StatePending
	StateExtracting
	StateBuilding
	StateMerging
	StateSucceeded
	StateFailed
	StateAbandoned
)

var stateNames = map[State]string{
	StateMissing:    "",
	StatePending:    c.RunStatePending,
	StateExtracting: c.RunStateExtracting,
	StateBuilding:   c.RunStateBuilding,
	StateMerging:    c.RunStateMerging,
	StateSucceeded:  c.RunStateSucceeded,
	StateFailed:     c.RunStateFailed,
	StateAbandoned:  c.RunStateAbandoned,
}

// transitions lists the states each state may move to.
// Any non-terminal state may fail; ABANDONED is only set by the run store.
var transitions = map[State][]State{
	StatePending:    {StateExtracting, StateFailed},
	StateExtracting: {StateBuilding, StateFailed},
	StateBuilding:   {StateMerging, StateFailed},
	StateMerging:    {StateSucceeded, StateFailed},
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	n, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unhandled State value %v in custom MarshalJSON() conversion", uint32(s))
	}
	return json.Marshal(n)
}

// ParseState returns the State named s.
func ParseState(s string) (State, error) {
	for k, v := range stateNames {
		if v == s && k != StateMissing {
			return k, nil
		}
	}
	return StateMissing, fmt.Errorf("unknown run state %q", s)
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAbandoned
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
