package driver

// State is a behaviour the agent is executing.
type State string

const (
	StateAccelerate       State = "accelerate"
	StateCruise           State = "cruise"
	StateSlowForCurve     State = "slow_for_curve"
	StateMaintainDistance State = "maintain_distance"
	StateChangeLanes      State = "change_lanes"
	StateStopAtSign       State = "stop_at_sign"
	StateWaitAtStopSign   State = "wait_at_stop_sign"
)

// States lists every behaviour in ascending priority.
var States = []State{
	StateAccelerate,
	StateCruise,
	StateSlowForCurve,
	StateMaintainDistance,
	StateChangeLanes,
	StateStopAtSign,
	StateWaitAtStopSign,
}

type stateInfo struct {
	priority int
	label    string
}

// A state with higher priority is already handling an event, so an
// override guarded by priority never moves the agent back down.
var stateTable = map[State]stateInfo{
	StateAccelerate:       {0, "Accelerating"},
	StateCruise:           {1, "Cruise"},
	StateSlowForCurve:     {2, "Slowing for curve"},
	StateMaintainDistance: {3, "Maintain distance"},
	StateChangeLanes:      {4, "Changing lanes"},
	StateStopAtSign:       {5, "Stopping at sign"},
	StateWaitAtStopSign:   {6, "Waiting at sign"},
}

// Priority returns the urgency rank of s, or -1 for an unknown state.
func (s State) Priority() int {
	info, ok := stateTable[s]
	if !ok {
		return -1
	}
	return info.priority
}

// Label is the human readable action text.
func (s State) Label() string {
	if info, ok := stateTable[s]; ok {
		return info.label
	}
	return string(s)
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := stateTable[s]
	return ok
}

func (s State) String() string { return string(s) }
