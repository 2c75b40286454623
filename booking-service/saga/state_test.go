package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransitions(t *testing.T) {
	assert.NoError(t, ValidateTransitions())
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		activity  Activity
		onSuccess State
		onFailure State
	}{
		{
			name:      "reserve inventory failure skips compensation",
			state:     StateReserveInventory,
			activity:  ActivityReserveInventory,
			onSuccess: StateReserveBooking,
			onFailure: StateNotifyFailure,
		},
		{
			name:      "reserve booking failure cancels before releasing",
			state:     StateReserveBooking,
			activity:  ActivityReserveBooking,
			onSuccess: StateCollectPayment,
			onFailure: StateCancelBooking,
		},
		{
			name:      "payment failure needs no refund",
			state:     StateCollectPayment,
			activity:  ActivityCollectPayment,
			onSuccess: StateConfirmBooking,
			onFailure: StateCancelBooking,
		},
		{
			name:      "confirmation failure refunds first",
			state:     StateConfirmBooking,
			activity:  ActivityConfirmBooking,
			onSuccess: StateNotifyConfirmed,
			onFailure: StateRefundPayment,
		},
		{
			name:      "confirmation notification is best effort",
			state:     StateNotifyConfirmed,
			activity:  ActivityNotify,
			onSuccess: StateSucceeded,
			onFailure: StateSucceeded,
		},
		{
			name:      "refund proceeds to cancel either way",
			state:     StateRefundPayment,
			activity:  ActivityRefundPayment,
			onSuccess: StateCancelBooking,
			onFailure: StateCancelBooking,
		},
		{
			name:      "cancel proceeds to release either way",
			state:     StateCancelBooking,
			activity:  ActivityCancelBooking,
			onSuccess: StateReleaseInventory,
			onFailure: StateReleaseInventory,
		},
		{
			name:      "release proceeds to failure notification either way",
			state:     StateReleaseInventory,
			activity:  ActivityReleaseInventory,
			onSuccess: StateNotifyFailure,
			onFailure: StateNotifyFailure,
		},
		{
			name:      "failure notification always terminates",
			state:     StateNotifyFailure,
			activity:  ActivityNotify,
			onSuccess: StateFailed,
			onFailure: StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := TransitionFor(tt.state)
			require.True(t, ok)
			assert.Equal(t, tt.activity, tr.Activity)
			assert.Equal(t, tt.onSuccess, tr.OnSuccess)
			assert.Equal(t, tt.onFailure, tr.OnFailure)
		})
	}
}

func TestTerminalStatesHaveNoTransition(t *testing.T) {
	for _, state := range []State{StateSucceeded, StateFailed} {
		assert.True(t, state.Terminal())
		_, ok := TransitionFor(state)
		assert.False(t, ok)
	}
}

func TestCompensatingStates(t *testing.T) {
	compensating := []State{StateRefundPayment, StateCancelBooking, StateReleaseInventory, StateNotifyFailure}
	for _, state := range compensating {
		assert.True(t, state.Compensating(), state.String())
	}

	forward := []State{StateReserveInventory, StateReserveBooking, StateCollectPayment, StateConfirmBooking, StateNotifyConfirmed}
	for _, state := range forward {
		assert.False(t, state.Compensating(), state.String())
	}
}

func TestEveryPathReachesATerminalState(t *testing.T) {
	for state := range stateNames {
		if state.Terminal() {
			continue
		}

		// Follow the failure edge from each state to its end.
		visited := map[State]bool{}
		current := state
		for !current.Terminal() {
			require.False(t, visited[current], "revisited state %s", current)
			visited[current] = true

			tr, ok := TransitionFor(current)
			require.True(t, ok, "state %s has no transition", current)
			current = tr.OnFailure
		}
	}
}
