package domain

// State is a render job lifecycle state.
type State int32

// Job states. A job moves only forward:
//
//	Queued -> InProgress -> Rendered -> Uploading -> Done
//	              \-> Failed -------------------------/
const (
	StateQueued State = iota
	StateInProgress
	StateFailed
	StateRendered
	StateUploading
	StateDone
)

var stateNames = map[State]string{
	StateQueued:     "Queued",
	StateInProgress: "In progress",
	StateFailed:     "Failed",
	StateRendered:   "Rendered",
	StateUploading:  "Uploading",
	StateDone:       "Done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether the state is Done.
func (s State) Terminal() bool {
	return s == StateDone
}

var transitions = map[State][]State{
	StateQueued:     {StateInProgress},
	StateInProgress: {StateRendered, StateFailed},
	StateRendered:   {StateUploading},
	StateUploading:  {StateDone},
	StateFailed:     {StateDone},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
