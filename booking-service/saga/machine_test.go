package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInvoker plays back a per-activity script of errors. Each invocation
// pops the next scripted result; an exhausted or absent script succeeds.
type scriptedInvoker struct {
	mu      sync.Mutex
	scripts map[Activity][]error
	blocked map[Activity]bool
	calls   []Activity
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{
		scripts: make(map[Activity][]error),
		blocked: make(map[Activity]bool),
	}
}

func (s *scriptedInvoker) failWith(activity Activity, errs ...error) {
	s.scripts[activity] = append(s.scripts[activity], errs...)
}

func (s *scriptedInvoker) blockUntilCancelled(activity Activity) {
	s.blocked[activity] = true
}

func (s *scriptedInvoker) Invoke(ctx context.Context, activity Activity, ec *ExecutionContext) error {
	s.mu.Lock()
	s.calls = append(s.calls, activity)
	blocked := s.blocked[activity]

	var err error
	if script := s.scripts[activity]; len(script) > 0 {
		err = script[0]
		s.scripts[activity] = script[1:]
	}
	s.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}

	if err != nil {
		return err
	}

	if activity == ActivityConfirmBooking {
		ec.BookingReference = "SKY-TEST1234"
	}
	return nil
}

func (s *scriptedInvoker) invocations() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Activity, len(s.calls))
	copy(out, s.calls)
	return out
}

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}

func newTestExecution() *ExecutionContext {
	return NewExecutionContext(BookingRequest{
		OutboundFlightID: "550e8400-e29b-41d4-a716-446655440001",
		CustomerID:       "550e8400-e29b-41d4-a716-446655440002",
		ChargeToken:      "tok_visa",
	}, "bookings", "flights")
}

func TestMachineRun_SuccessPath(t *testing.T) {
	invoker := newScriptedInvoker()
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeConfirmed, outcome.Status)
	assert.Equal(t, "SKY-TEST1234", outcome.BookingReference)
	assert.Empty(t, outcome.FailedStep)
	assert.False(t, outcome.CompletedAt.IsZero())

	assert.Equal(t, []Activity{
		ActivityReserveInventory,
		ActivityReserveBooking,
		ActivityCollectPayment,
		ActivityConfirmBooking,
		ActivityNotify,
	}, invoker.invocations())
	assert.False(t, ec.Compensated())
}

func TestMachineRun_PaymentDeclinedCompensates(t *testing.T) {
	invoker := newScriptedInvoker()
	invoker.failWith(ActivityCollectPayment, domain.NewActivityError(domain.ErrorKindPayment, "card declined"))
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "CollectPayment", outcome.FailedStep)
	assert.Equal(t, domain.ErrorKindPayment, outcome.ErrorKind)
	assert.Contains(t, outcome.ErrorMessage, "card declined")

	// No charge succeeded, so no refund; cancellation and release still run.
	assert.Equal(t, []Activity{
		ActivityReserveInventory,
		ActivityReserveBooking,
		ActivityCollectPayment,
		ActivityCancelBooking,
		ActivityReleaseInventory,
		ActivityNotify,
	}, invoker.invocations())
	assert.True(t, ec.Compensated())
}

func TestMachineRun_ConfirmationFailureRefundsFirst(t *testing.T) {
	invoker := newScriptedInvoker()
	confirmErr := domain.NewActivityError(domain.ErrorKindBookingConfirmation, "confirmation rejected")
	// Exhaust the confirmation retries.
	invoker.failWith(ActivityConfirmBooking, confirmErr, confirmErr, confirmErr)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "ConfirmBooking", outcome.FailedStep)
	assert.Equal(t, domain.ErrorKindBookingConfirmation, outcome.ErrorKind)

	calls := invoker.invocations()
	assert.Equal(t, []Activity{
		ActivityReserveInventory,
		ActivityReserveBooking,
		ActivityCollectPayment,
		ActivityConfirmBooking,
		ActivityConfirmBooking,
		ActivityConfirmBooking,
		ActivityRefundPayment,
		ActivityCancelBooking,
		ActivityReleaseInventory,
		ActivityNotify,
	}, calls)
}

func TestMachineRun_PreconditionSkipsCompensation(t *testing.T) {
	invoker := newScriptedInvoker()
	invoker.failWith(ActivityReserveInventory, domain.ErrNoSeatsAvailable)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "ReserveInventory", outcome.FailedStep)
	assert.Equal(t, domain.ErrorKindPreconditionFailed, outcome.ErrorKind)

	// Nothing was reserved: only the failure notification runs.
	assert.Equal(t, []Activity{
		ActivityReserveInventory,
		ActivityNotify,
	}, invoker.invocations())
	assert.False(t, ec.Compensated())

	// Precondition rejections never retry.
	step, ok := ec.StepFor(ActivityReserveInventory)
	require.True(t, ok)
	assert.Equal(t, 1, step.Attempts)
}

func TestMachineRun_TransientFailureRetriesThenSucceeds(t *testing.T) {
	invoker := newScriptedInvoker()
	transient := domain.NewActivityError(domain.ErrorKindTransient, "connection reset")
	invoker.failWith(ActivityReserveInventory, transient, transient)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeConfirmed, outcome.Status)

	step, ok := ec.StepFor(ActivityReserveInventory)
	require.True(t, ok)
	assert.True(t, step.Succeeded)
	assert.Equal(t, 3, step.Attempts)
}

func TestMachineRun_RetriesAreBounded(t *testing.T) {
	invoker := newScriptedInvoker()
	transient := domain.NewActivityError(domain.ErrorKindTransient, "connection reset")
	invoker.failWith(ActivityReserveInventory, transient, transient, transient, transient)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ErrorKindTransient, outcome.ErrorKind)

	step, ok := ec.StepFor(ActivityReserveInventory)
	require.True(t, ok)
	assert.False(t, step.Succeeded)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, step.Attempts)
}

func TestMachineRun_PaymentIsNeverRetried(t *testing.T) {
	invoker := newScriptedInvoker()
	invoker.failWith(ActivityCollectPayment, domain.NewActivityError(domain.ErrorKindTransient, "gateway unavailable"))
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)

	step, ok := ec.StepFor(ActivityCollectPayment)
	require.True(t, ok)
	assert.Equal(t, 1, step.Attempts)
}

func TestMachineRun_NotificationFailureStillSucceeds(t *testing.T) {
	invoker := newScriptedInvoker()
	notifyErr := domain.NewActivityError(domain.ErrorKindBookingNotification, "channel down")
	invoker.failWith(ActivityNotify, notifyErr, notifyErr, notifyErr)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	// The booking is confirmed; a lost notification cannot undo it.
	assert.Equal(t, OutcomeConfirmed, outcome.Status)
	assert.Equal(t, "SKY-TEST1234", outcome.BookingReference)
	assert.False(t, ec.Failed())
}

func TestMachineRun_GlobalDeadlineFails(t *testing.T) {
	invoker := newScriptedInvoker()
	invoker.blockUntilCancelled(ActivityCollectPayment)
	machine := NewMachine(invoker,
		WithSleepFunc(noSleep),
		WithGlobalTimeout(50*time.Millisecond),
	)

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "CollectPayment", outcome.FailedStep)
	assert.Equal(t, domain.ErrorKindDeadlineExceeded, outcome.ErrorKind)

	// Compensation still runs best-effort after the deadline.
	calls := invoker.invocations()
	assert.Contains(t, calls, ActivityCancelBooking)
	assert.Contains(t, calls, ActivityReleaseInventory)
	assert.Contains(t, calls, ActivityNotify)
}

func TestMachineRun_DeadlineStopsRetries(t *testing.T) {
	invoker := newScriptedInvoker()
	transient := domain.NewActivityError(domain.ErrorKindTransient, "connection reset")
	invoker.failWith(ActivityReserveInventory, transient, transient, transient)

	// The first backoff outlives the global deadline.
	machine := NewMachine(invoker, WithGlobalTimeout(20*time.Millisecond))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ErrorKindDeadlineExceeded, outcome.ErrorKind)

	step, ok := ec.StepFor(ActivityReserveInventory)
	require.True(t, ok)
	assert.Less(t, step.Attempts, 3)
}

func TestMachineRun_CompensationFailuresDoNotMaskTheOriginal(t *testing.T) {
	invoker := newScriptedInvoker()
	invoker.failWith(ActivityCollectPayment, domain.NewActivityError(domain.ErrorKindPayment, "card declined"))
	cancelErr := domain.NewActivityError(domain.ErrorKindBookingCancellation, "store unavailable")
	invoker.failWith(ActivityCancelBooking, cancelErr, cancelErr, cancelErr)
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	outcome := machine.Run(context.Background(), ec)

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "CollectPayment", outcome.FailedStep)
	assert.Equal(t, domain.ErrorKindPayment, outcome.ErrorKind)

	// The failed cancellation never stops the rest of the chain.
	calls := invoker.invocations()
	assert.Contains(t, calls, ActivityReleaseInventory)
	assert.Contains(t, calls, ActivityNotify)
}

func TestMachineRun_StepsAreRecordedInOrder(t *testing.T) {
	invoker := newScriptedInvoker()
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	ec := newTestExecution()
	machine.Run(context.Background(), ec)

	steps := ec.Steps()
	require.Len(t, steps, 5)
	for _, step := range steps {
		assert.True(t, step.Succeeded)
		assert.Equal(t, 1, step.Attempts)
		assert.False(t, step.CompletedAt.IsZero())
	}
	assert.Equal(t, ActivityReserveInventory, steps[0].Activity)
	assert.Equal(t, ActivityNotify, steps[4].Activity)
}
