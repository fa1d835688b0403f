package citizen

// State identifies where a citizen sits in the stimulation life cycle.
type State string

const (
	StateIdle            State = "idle"
	StateBeingStimulated State = "being_stimulated"
	StateStabilized      State = "stabilized"
	StateAgitated        State = "agitated"
	StateRecovering      State = "recovering"
	StateCriticalFailure State = "critical_failure"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the state freezes the citizen until Reset.
func (s State) Terminal() bool {
	return s == StateStabilized || s == StateCriticalFailure
}

func (s State) Valid() bool {
	switch s {
	case StateIdle, StateBeingStimulated, StateStabilized, StateAgitated, StateRecovering, StateCriticalFailure:
		return true
	default:
		return false
	}
}

func AllStates() []State {
	return []State{
		StateIdle,
		StateBeingStimulated,
		StateStabilized,
		StateAgitated,
		StateRecovering,
		StateCriticalFailure,
	}
}
