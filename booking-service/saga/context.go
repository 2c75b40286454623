package saga

import (
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/models"
)

// BookingRequest is the input of one saga execution
type BookingRequest struct {
	OutboundFlightID models.ID
	CustomerID       models.ID
	ChargeToken      string
}

// StepResult records the terminal result of one step within an execution
type StepResult struct {
	Activity    Activity          `json:"activity"`
	State       string            `json:"state"`
	Attempts    int               `json:"attempts"`
	Succeeded   bool              `json:"succeeded"`
	ErrorKind   domain.ErrorKind  `json:"error_kind,omitempty"`
	Error       string            `json:"error,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// stepFailure is the first unrecoverable forward failure of an execution
type stepFailure struct {
	State State
	Kind  domain.ErrorKind
	Err   string
}

// ExecutionContext is the run-scoped record of one saga execution. It is
// owned by exactly one in-flight run and mutated only by the step currently
// executing; completed step results are append-only.
type ExecutionContext struct {
	ExecutionID      models.ID
	CustomerID       models.ID
	OutboundFlightID models.ID
	ChargeToken      string
	BookingTable     string
	FlightTable      string
	CreatedAt        time.Time

	// Outputs accumulated as steps complete
	BookingID        models.ID
	Fare             models.Money
	PaymentReceipt   string
	BookingReference string
	NotificationID   models.ID

	steps   []StepResult
	failure *stepFailure

	// Next version of the execution's lifecycle event stream
	streamVersion int
}

// NewExecutionContext builds the context for a fresh execution
func NewExecutionContext(req BookingRequest, bookingTable, flightTable string) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID:      models.GenerateUUID(),
		CustomerID:       req.CustomerID,
		OutboundFlightID: req.OutboundFlightID,
		ChargeToken:      req.ChargeToken,
		BookingTable:     bookingTable,
		FlightTable:      flightTable,
		CreatedAt:        time.Now(),
	}
}

// RecordStep appends a completed step result
func (ec *ExecutionContext) RecordStep(result StepResult) {
	result.CompletedAt = time.Now()
	ec.steps = append(ec.steps, result)
}

// Steps returns the step results accumulated so far, in completion order
func (ec *ExecutionContext) Steps() []StepResult {
	out := make([]StepResult, len(ec.steps))
	copy(out, ec.steps)
	return out
}

// StepFor returns the recorded result for an activity, if any
func (ec *ExecutionContext) StepFor(activity Activity) (StepResult, bool) {
	for _, step := range ec.steps {
		if step.Activity == activity {
			return step, true
		}
	}
	return StepResult{}, false
}

// RecordFailure keeps the first unrecoverable forward failure; later
// compensation failures never overwrite the originating error.
func (ec *ExecutionContext) RecordFailure(state State, kind domain.ErrorKind, err error) {
	if ec.failure != nil {
		return
	}
	ec.failure = &stepFailure{
		State: state,
		Kind:  kind,
		Err:   err.Error(),
	}
}

// Failed reports whether an unrecoverable forward failure has been recorded
func (ec *ExecutionContext) Failed() bool {
	return ec.failure != nil
}

// FailureState returns the furthest forward state reached before failure
func (ec *ExecutionContext) FailureState() State {
	if ec.failure == nil {
		return StateSucceeded
	}
	return ec.failure.State
}

// FailureKind returns the originating error kind
func (ec *ExecutionContext) FailureKind() domain.ErrorKind {
	if ec.failure == nil {
		return domain.ErrorKindNone
	}
	return ec.failure.Kind
}

// FailureMessage returns the originating error text
func (ec *ExecutionContext) FailureMessage() string {
	if ec.failure == nil {
		return ""
	}
	return ec.failure.Err
}

// Compensated reports whether any compensation step has run
func (ec *ExecutionContext) Compensated() bool {
	for _, step := range ec.steps {
		switch step.Activity {
		case ActivityReleaseInventory, ActivityCancelBooking, ActivityRefundPayment:
			return true
		}
	}
	return false
}
