package tracker

import "fmt"

// State of the tracker. All transitions go through the table below so every
// legal edge is visible in one place.
type State int

const (
	StateStopped State = iota
	StateInitializing
	StateRunning
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the allowed target states per source state. Error is
// terminal until a fresh initialize.
var transitions = map[State][]State{
	StateStopped:      {StateInitializing, StateRunning},
	StateInitializing: {StateStopped, StateError},
	StateRunning:      {StatePaused, StateStopped, StateError},
	StatePaused:       {StateRunning, StateStopped, StateError},
	StateError:        {StateInitializing},
}

// canTransition reports whether the edge from s to target is in the table.
func (s State) canTransition(target State) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// transition returns the new state or an error describing the illegal edge.
func (s State) transition(target State) (State, error) {
	if !s.canTransition(target) {
		return s, fmt.Errorf("illegal state transition %s -> %s", s, target)
	}
	return target, nil
}
