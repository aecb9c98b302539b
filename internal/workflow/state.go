package workflow

import (
	"fmt"

	appErrors "github.com/frahmantamala/fleet-expense/internal"
)

type State string

const (
	StateDriverSelect State = "DRIVER_SELECT"
	StateDetailEntry  State = "DETAIL_ENTRY"
	StateClosed       State = "CLOSED"
)

var ErrIllegalTransition = appErrors.ErrIllegalTransition

// transitions lists the states reachable from each state. Closed is terminal.
var transitions = map[State][]State{
	StateDriverSelect: {StateDetailEntry, StateClosed},
	StateDetailEntry:  {StateDriverSelect, StateClosed},
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) IsClosed() bool {
	return s == StateClosed
}

// illegal reports an operation attempted in the wrong step.
func illegal(op string, current State) error {
	return ErrIllegalTransition.WithCause(fmt.Errorf("%s is not allowed in %s", op, current))
}
