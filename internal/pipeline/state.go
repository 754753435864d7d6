package pipeline

import "fmt"

// State is a job's position in the pipeline.
type State string

// Job states.
const (
	StateQueued       State = "queued"
	StateAcquiring    State = "acquiring"
	StateStaged       State = "staged"
	StateTransforming State = "transforming"
	StateEncoding     State = "encoding"
	StateFinalized    State = "finalized"
	StateFailed       State = "failed"
)

var transitions = map[State][]State{
	StateQueued:       {StateAcquiring, StateFailed},
	StateAcquiring:    {StateStaged, StateFailed},
	StateStaged:       {StateTransforming, StateFailed},
	StateTransforming: {StateEncoding, StateFailed},
	StateEncoding:     {StateFinalized, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for an illegal state change.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal job transition %s -> %s", e.From, e.To)
}
