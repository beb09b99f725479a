package pipeline

import "sync/atomic"

// State is the lifecycle state of the capture pipeline.
type State uint32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var transitions = map[State]State{
	Idle:     Running,
	Running:  Stopping,
	Stopping: Idle,
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// stateMachine holds the current state and only allows valid transitions.
type stateMachine struct {
	v atomic.Uint32
}

func (m *stateMachine) Load() State { return State(m.v.Load()) }

// transition moves from -> to, failing if the current state is not from or
// the move is not allowed.
func (m *stateMachine) transition(from, to State) bool {
	if !CanTransition(from, to) {
		return false
	}
	return m.v.CompareAndSwap(uint32(from), uint32(to))
}
