package saga

import (
	"context"
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
)

const defaultGlobalTimeout = 30 * time.Second

// Machine drives one execution through the transition table until it reaches
// a terminal state. Retries are bounded per activity; the whole run is
// bounded by a global deadline. Once the deadline fires no further retries
// happen, but remaining compensations are still attempted best-effort.
type Machine struct {
	invoker       Invoker
	globalTimeout time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

type MachineOption func(*Machine)

// WithGlobalTimeout overrides the per-execution deadline
func WithGlobalTimeout(timeout time.Duration) MachineOption {
	return func(m *Machine) {
		m.globalTimeout = timeout
	}
}

// WithSleepFunc overrides the backoff sleeper
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) MachineOption {
	return func(m *Machine) {
		m.sleep = sleep
	}
}

// NewMachine creates a saga machine over the given activity invoker
func NewMachine(invoker Invoker, opts ...MachineOption) *Machine {
	m := &Machine{
		invoker:       invoker,
		globalTimeout: defaultGlobalTimeout,
		sleep:         sleepContext,
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes the saga for one execution context and returns its terminal
// outcome. Steps within the run are strictly ordered; no state is re-entered.
func (m *Machine) Run(ctx context.Context, ec *ExecutionContext) *Outcome {
	runCtx, cancel := context.WithTimeout(ctx, m.globalTimeout)
	defer cancel()

	state := StateReserveInventory
	for !state.Terminal() {
		tr, ok := TransitionFor(state)
		if !ok {
			// Unreachable for a validated table.
			state = StateFailed
			break
		}

		err := m.runStep(ctx, runCtx, state, tr.Activity, ec)
		if err == nil {
			state = tr.OnSuccess
			continue
		}

		// Notification failures on the success path and compensation
		// failures never become the execution's recorded failure.
		if !state.Compensating() && tr.OnFailure != StateSucceeded {
			kind := domain.KindOf(err)
			if runCtx.Err() != nil {
				kind = domain.ErrorKindDeadlineExceeded
			}
			ec.RecordFailure(state, kind, err)
		}
		state = tr.OnFailure
	}

	return m.buildOutcome(state, ec)
}

func (m *Machine) runStep(parent, runCtx context.Context, state State, activity Activity, ec *ExecutionContext) error {
	attempts := 0
	for {
		attempts++

		base := runCtx
		if state.Compensating() && runCtx.Err() != nil {
			// Global deadline fired mid-compensation: remaining
			// compensations still run, bounded only by the activity timeout.
			base = context.WithoutCancel(parent)
		}

		stepCtx, cancel := context.WithTimeout(base, TimeoutFor(activity))
		err := m.invoker.Invoke(stepCtx, activity, ec)
		cancel()

		if err == nil {
			ec.RecordStep(StepResult{
				Activity:  activity,
				State:     state.String(),
				Attempts:  attempts,
				Succeeded: true,
			})
			return nil
		}

		kind := domain.KindOf(err)

		// No retries once the global deadline has fired.
		if runCtx.Err() == nil && ShouldRetry(activity, kind, attempts) {
			if serr := m.sleep(runCtx, NextDelay(activity, attempts)); serr == nil {
				continue
			}
		}

		ec.RecordStep(StepResult{
			Activity:  activity,
			State:     state.String(),
			Attempts:  attempts,
			Succeeded: false,
			ErrorKind: kind,
			Error:     err.Error(),
		})
		return err
	}
}

func (m *Machine) buildOutcome(state State, ec *ExecutionContext) *Outcome {
	outcome := &Outcome{
		ExecutionID: ec.ExecutionID,
		CompletedAt: time.Now(),
	}

	if state == StateSucceeded {
		outcome.Status = OutcomeConfirmed
		outcome.BookingReference = ec.BookingReference
		return outcome
	}

	outcome.Status = OutcomeFailed
	outcome.FailedStep = ec.FailureState().String()
	outcome.ErrorKind = ec.FailureKind()
	outcome.ErrorMessage = ec.FailureMessage()
	return outcome
}
