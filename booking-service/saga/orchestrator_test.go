package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutionRepo struct {
	mu       sync.Mutex
	outcomes map[models.ID]*Outcome
}

func newFakeExecutionRepo() *fakeExecutionRepo {
	return &fakeExecutionRepo{outcomes: make(map[models.ID]*Outcome)}
}

func (r *fakeExecutionRepo) SavePending(ctx context.Context, ec *ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[ec.ExecutionID] = &Outcome{ExecutionID: ec.ExecutionID, Status: OutcomePending}
	return nil
}

func (r *fakeExecutionRepo) SaveOutcome(ctx context.Context, outcome *Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *outcome
	r.outcomes[outcome.ExecutionID] = &copied
	return nil
}

func (r *fakeExecutionRepo) FindOutcome(ctx context.Context, executionID models.ID) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome, ok := r.outcomes[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	copied := *outcome
	return &copied, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

type fakeEventStore struct {
	mu      sync.Mutex
	streams map[models.ID][]*events.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{streams: make(map[models.ID][]*events.Event)}
}

func (s *fakeEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams[aggregateID]) != expectedVersion {
		return errors.Errorf("concurrency conflict: stream at %d, expected %d", len(s.streams[aggregateID]), expectedVersion)
	}
	s.streams[aggregateID] = append(s.streams[aggregateID], evts...)
	return nil
}

func (s *fakeEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := make([]*events.Event, len(s.streams[aggregateID]))
	copy(stream, s.streams[aggregateID])
	return stream, nil
}

func (s *fakeEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	return nil, nil
}

func validRequest() BookingRequest {
	return BookingRequest{
		OutboundFlightID: "550e8400-e29b-41d4-a716-446655440001",
		CustomerID:       "550e8400-e29b-41d4-a716-446655440002",
		ChargeToken:      "tok_visa",
	}
}

func TestOrchestratorStart_ReturnsImmediatelyAndCompletes(t *testing.T) {
	repo := newFakeExecutionRepo()
	publisher := &capturingPublisher{}
	machine := NewMachine(newScriptedInvoker(), WithSleepFunc(noSleep))

	orchestrator, err := NewOrchestrator(machine, repo, publisher)
	require.NoError(t, err)

	executionID, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, executionID.IsZero())

	orchestrator.Wait()

	outcome, err := orchestrator.GetOutcome(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome.Status)
	assert.Equal(t, "SKY-TEST1234", outcome.BookingReference)

	types := publisher.eventTypes()
	assert.Contains(t, types, events.SagaStartedEvent)
	assert.Contains(t, types, events.SagaCompletedEvent)
}

func TestOrchestratorStart_AppendsLifecycleEventsToStream(t *testing.T) {
	repo := newFakeExecutionRepo()
	store := newFakeEventStore()
	machine := NewMachine(newScriptedInvoker(), WithSleepFunc(noSleep))

	orchestrator, err := NewOrchestrator(machine, repo, &capturingPublisher{}, WithEventStore(store))
	require.NoError(t, err)

	executionID, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)

	orchestrator.Wait()

	// The stream holds the whole lifecycle in order; the fake rejects any
	// append whose expected version does not match the stream head.
	stream, err := store.GetEvents(context.Background(), executionID)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, events.SagaStartedEvent, stream[0].EventType)
	assert.Equal(t, events.SagaCompletedEvent, stream[1].EventType)
	assert.Equal(t, executionID, stream[0].CorrelationID)
}

func TestOrchestratorStart_FailedExecutionStreamsCompensationAndFailure(t *testing.T) {
	repo := newFakeExecutionRepo()
	store := newFakeEventStore()

	invoker := newScriptedInvoker()
	invoker.failWith(ActivityCollectPayment, domain.NewActivityError(domain.ErrorKindPayment, "card declined"))
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	orchestrator, err := NewOrchestrator(machine, repo, nil, WithEventStore(store))
	require.NoError(t, err)

	executionID, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)

	orchestrator.Wait()

	stream, err := store.GetEvents(context.Background(), executionID)
	require.NoError(t, err)
	require.Len(t, stream, 3)
	assert.Equal(t, events.SagaStartedEvent, stream[0].EventType)
	assert.Equal(t, events.SagaCompensatedEvent, stream[1].EventType)
	assert.Equal(t, events.SagaFailedEvent, stream[2].EventType)
}

func TestOrchestratorStart_FailedExecutionPublishesFailureEvents(t *testing.T) {
	repo := newFakeExecutionRepo()
	publisher := &capturingPublisher{}

	invoker := newScriptedInvoker()
	invoker.failWith(ActivityCollectPayment, domain.NewActivityError(domain.ErrorKindPayment, "card declined"))
	machine := NewMachine(invoker, WithSleepFunc(noSleep))

	orchestrator, err := NewOrchestrator(machine, repo, publisher)
	require.NoError(t, err)

	executionID, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)

	orchestrator.Wait()

	outcome, err := orchestrator.GetOutcome(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ErrorKindPayment, outcome.ErrorKind)

	types := publisher.eventTypes()
	assert.Contains(t, types, events.SagaCompensatedEvent)
	assert.Contains(t, types, events.SagaFailedEvent)
	assert.NotContains(t, types, events.SagaCompletedEvent)
}

func TestOrchestratorStart_Validation(t *testing.T) {
	tests := []struct {
		name          string
		request       BookingRequest
		expectedError string
	}{
		{
			name: "missing flight ID",
			request: BookingRequest{
				CustomerID:  "550e8400-e29b-41d4-a716-446655440002",
				ChargeToken: "tok_visa",
			},
			expectedError: "outbound flight ID is required",
		},
		{
			name: "missing customer ID",
			request: BookingRequest{
				OutboundFlightID: "550e8400-e29b-41d4-a716-446655440001",
				ChargeToken:      "tok_visa",
			},
			expectedError: "customer ID is required",
		},
		{
			name: "missing charge token",
			request: BookingRequest{
				OutboundFlightID: "550e8400-e29b-41d4-a716-446655440001",
				CustomerID:       "550e8400-e29b-41d4-a716-446655440002",
			},
			expectedError: "charge token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeExecutionRepo()
			machine := NewMachine(newScriptedInvoker(), WithSleepFunc(noSleep))
			orchestrator, err := NewOrchestrator(machine, repo, nil)
			require.NoError(t, err)

			_, err = orchestrator.Start(context.Background(), tt.request)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestOrchestratorGetOutcome_PendingWhileRunning(t *testing.T) {
	repo := newFakeExecutionRepo()

	invoker := newScriptedInvoker()
	invoker.blockUntilCancelled(ActivityCollectPayment)
	machine := NewMachine(invoker,
		WithSleepFunc(noSleep),
		WithGlobalTimeout(200*time.Millisecond),
	)

	orchestrator, err := NewOrchestrator(machine, repo, nil)
	require.NoError(t, err)

	executionID, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)

	outcome, err := orchestrator.GetOutcome(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome.Status)

	orchestrator.Wait()

	outcome, err = orchestrator.GetOutcome(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome.Status)
}

func TestOrchestratorGetOutcome_UnknownExecution(t *testing.T) {
	repo := newFakeExecutionRepo()
	machine := NewMachine(newScriptedInvoker(), WithSleepFunc(noSleep))
	orchestrator, err := NewOrchestrator(machine, repo, nil)
	require.NoError(t, err)

	_, err = orchestrator.GetOutcome(context.Background(), models.GenerateUUID())
	assert.True(t, errors.Is(err, domain.ErrExecutionNotFound))
}

func TestOrchestratorStart_IndependentExecutions(t *testing.T) {
	repo := newFakeExecutionRepo()
	machine := NewMachine(newScriptedInvoker(), WithSleepFunc(noSleep))
	orchestrator, err := NewOrchestrator(machine, repo, nil)
	require.NoError(t, err)

	first, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := orchestrator.Start(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	orchestrator.Wait()

	for _, id := range []models.ID{first, second} {
		outcome, err := orchestrator.GetOutcome(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, outcome.Status)
	}
}
