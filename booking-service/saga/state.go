package saga

import (
	"github.com/pkg/errors"
)

// State identifies one node of the booking saga. The chain is a DAG
// converging on Succeeded or Failed; ValidateTransitions checks that
// statically at startup.
type State int

const (
	StateReserveInventory State = iota
	StateReserveBooking
	StateCollectPayment
	StateConfirmBooking
	StateNotifyConfirmed
	StateRefundPayment
	StateCancelBooking
	StateReleaseInventory
	StateNotifyFailure
	StateSucceeded
	StateFailed
)

var stateNames = map[State]string{
	StateReserveInventory: "ReserveInventory",
	StateReserveBooking:   "ReserveBooking",
	StateCollectPayment:   "CollectPayment",
	StateConfirmBooking:   "ConfirmBooking",
	StateNotifyConfirmed:  "NotifyConfirmed",
	StateRefundPayment:    "RefundPayment",
	StateCancelBooking:    "CancelBooking",
	StateReleaseInventory: "ReleaseInventory",
	StateNotifyFailure:    "NotifyFailure",
	StateSucceeded:        "Succeeded",
	StateFailed:           "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether the state ends the execution
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Compensating reports whether the state belongs to the rollback chain.
// Compensation states advance on failure as well as success so the chain
// always converges to Failed.
func (s State) Compensating() bool {
	switch s {
	case StateRefundPayment, StateCancelBooking, StateReleaseInventory, StateNotifyFailure:
		return true
	}
	return false
}

// Transition is one row of the saga transition table
type Transition struct {
	Activity  Activity
	OnSuccess State
	OnFailure State
}

// transitions is the static saga definition. Forward steps jump to their
// compensation entry point on unrecoverable failure; compensation steps and
// notifications proceed regardless of their own outcome.
var transitions = map[State]Transition{
	StateReserveInventory: {
		Activity:  ActivityReserveInventory,
		OnSuccess: StateReserveBooking,
		// Nothing reserved yet, nothing to release.
		OnFailure: StateNotifyFailure,
	},
	StateReserveBooking: {
		Activity:  ActivityReserveBooking,
		OnSuccess: StateCollectPayment,
		OnFailure: StateCancelBooking,
	},
	StateCollectPayment: {
		Activity:  ActivityCollectPayment,
		OnSuccess: StateConfirmBooking,
		OnFailure: StateCancelBooking,
	},
	StateConfirmBooking: {
		Activity:  ActivityConfirmBooking,
		OnSuccess: StateNotifyConfirmed,
		OnFailure: StateRefundPayment,
	},
	StateNotifyConfirmed: {
		Activity:  ActivityNotify,
		OnSuccess: StateSucceeded,
		// Best-effort: a lost notification never blocks the outcome.
		OnFailure: StateSucceeded,
	},
	StateRefundPayment: {
		Activity:  ActivityRefundPayment,
		OnSuccess: StateCancelBooking,
		OnFailure: StateCancelBooking,
	},
	StateCancelBooking: {
		Activity:  ActivityCancelBooking,
		OnSuccess: StateReleaseInventory,
		OnFailure: StateReleaseInventory,
	},
	StateReleaseInventory: {
		Activity:  ActivityReleaseInventory,
		OnSuccess: StateNotifyFailure,
		OnFailure: StateNotifyFailure,
	},
	StateNotifyFailure: {
		Activity:  ActivityNotify,
		OnSuccess: StateFailed,
		OnFailure: StateFailed,
	},
}

// TransitionFor returns the transition table row for a state
func TransitionFor(state State) (Transition, bool) {
	tr, ok := transitions[state]
	return tr, ok
}

// ValidateTransitions verifies the saga definition: every non-terminal state
// has a transition, and both edges of every state reach a terminal state
// without revisiting any state.
func ValidateTransitions() error {
	for state := range stateNames {
		if state.Terminal() {
			continue
		}
		if _, ok := transitions[state]; !ok {
			return errors.Errorf("state %s has no transition", state)
		}
		if err := walk(state, map[State]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func walk(state State, visited map[State]bool) error {
	if state.Terminal() {
		return nil
	}
	if visited[state] {
		return errors.Errorf("compensation cycle through state %s", state)
	}
	visited[state] = true
	defer delete(visited, state)

	tr, ok := transitions[state]
	if !ok {
		return errors.Errorf("state %s has no transition", state)
	}

	if err := walk(tr.OnSuccess, visited); err != nil {
		return err
	}
	return walk(tr.OnFailure, visited)
}
