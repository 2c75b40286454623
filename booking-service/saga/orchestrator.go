package saga

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
	"github.com/skytrail/booking-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentExecutions = 256

// Orchestrator accepts booking requests, runs each as an independent saga
// execution, and records exactly one terminal outcome per request.
// Acceptance is synchronous; completion is asynchronous.
type Orchestrator struct {
	machine    *Machine
	executions ExecutionRepository
	publisher  events.Publisher
	store      events.EventStore

	bookingTable string
	flightTable  string

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrentExecutions bounds the number of in-flight sagas
func WithMaxConcurrentExecutions(n int64) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sem = semaphore.NewWeighted(n)
	}
}

// WithEventStore appends each execution's lifecycle events to an event
// stream keyed by execution ID
func WithEventStore(store events.EventStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithTableRefs sets the booking and flight table references carried in
// each execution context
func WithTableRefs(bookingTable, flightTable string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.bookingTable = bookingTable
		o.flightTable = flightTable
	}
}

// NewOrchestrator creates the orchestrator runtime. The transition table is
// validated once here; a broken saga definition refuses to start.
func NewOrchestrator(
	machine *Machine,
	executions ExecutionRepository,
	publisher events.Publisher,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if err := ValidateTransitions(); err != nil {
		return nil, errors.Wrap(err, "invalid saga definition")
	}

	o := &Orchestrator{
		machine:      machine,
		executions:   executions,
		publisher:    publisher,
		bookingTable: "bookings",
		flightTable:  "flights",
		sem:          semaphore.NewWeighted(defaultMaxConcurrentExecutions),
	}

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start accepts a booking request and launches its execution. It returns the
// execution ID as soon as the pending execution is recorded.
func (o *Orchestrator) Start(ctx context.Context, req BookingRequest) (models.ID, error) {
	if req.OutboundFlightID.IsZero() {
		return "", errors.New("outbound flight ID is required")
	}
	if req.CustomerID.IsZero() {
		return "", errors.New("customer ID is required")
	}
	if req.ChargeToken == "" {
		return "", errors.New("charge token is required")
	}

	ec := NewExecutionContext(req, o.bookingTable, o.flightTable)

	if err := o.executions.SavePending(ctx, ec); err != nil {
		return "", errors.Wrap(err, "failed to record pending execution")
	}

	o.publishLifecycle(ctx, ec, events.SagaStartedEvent, nil)

	o.wg.Add(1)
	go o.run(ec)

	return ec.ExecutionID, nil
}

// GetOutcome looks up the outcome of an execution. Unfinished executions
// report Pending; unknown IDs surface domain.ErrExecutionNotFound.
func (o *Orchestrator) GetOutcome(ctx context.Context, executionID models.ID) (*Outcome, error) {
	return o.executions.FindOutcome(ctx, executionID)
}

// Wait blocks until all in-flight executions have completed
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ec *ExecutionContext) {
	defer o.wg.Done()

	// Executions outlive the accepting request; they stop only via the
	// machine's own global deadline.
	ctx := context.Background()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer o.sem.Release(1)

	start := time.Now()
	outcome := o.machine.Run(ctx, ec)

	if err := o.executions.SaveOutcome(ctx, outcome); err != nil {
		// The execution stays Pending; the outcome event below still fires
		// so downstream consumers learn the terminal state.
		_ = err
	}

	telemetry.RecordCounter(ctx, "saga_executions_total", "Total saga executions", 1,
		attribute.String("status", string(outcome.Status)),
	)
	telemetry.RecordHistogram(ctx, "saga_execution_duration_seconds", "Saga execution duration",
		time.Since(start).Seconds(),
		attribute.String("status", string(outcome.Status)),
	)

	switch outcome.Status {
	case OutcomeConfirmed:
		o.publishLifecycle(ctx, ec, events.SagaCompletedEvent, outcome)
	default:
		if ec.Compensated() {
			o.publishLifecycle(ctx, ec, events.SagaCompensatedEvent, outcome)
		}
		o.publishLifecycle(ctx, ec, events.SagaFailedEvent, outcome)
	}
}

// SagaLifecycleData is the payload for saga lifecycle events
type SagaLifecycleData struct {
	ExecutionID      models.ID     `json:"execution_id"`
	FlightID         models.ID     `json:"flight_id"`
	CustomerID       models.ID     `json:"customer_id"`
	Status           OutcomeStatus `json:"status,omitempty"`
	BookingReference string        `json:"booking_reference,omitempty"`
	FailedStep       string        `json:"failed_step,omitempty"`
}

func (o *Orchestrator) publishLifecycle(ctx context.Context, ec *ExecutionContext, eventType string, outcome *Outcome) {
	if o.publisher == nil && o.store == nil {
		return
	}

	data := SagaLifecycleData{
		ExecutionID: ec.ExecutionID,
		FlightID:    ec.OutboundFlightID,
		CustomerID:  ec.CustomerID,
	}
	if outcome != nil {
		data.Status = outcome.Status
		data.BookingReference = outcome.BookingReference
		data.FailedStep = outcome.FailedStep
	}

	event := events.NewEvent(ec.ExecutionID, eventType, data).WithCorrelationID(ec.ExecutionID)

	// Lifecycle events are observability, not control flow.
	if o.publisher != nil {
		_ = o.publisher.Publish(ctx, event)
	}

	// Lifecycle appends for one execution are sequential (Start, then the run
	// goroutine), so the context's counter is the stream version.
	if o.store != nil {
		if err := o.store.SaveEvents(ctx, ec.ExecutionID, []*events.Event{event}, ec.streamVersion); err == nil {
			ec.streamVersion++
		}
	}
}
