package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// okInvoker succeeds on every activity and stamps a booking reference on
// confirmation.
type okInvoker struct{}

func (okInvoker) Invoke(ctx context.Context, activity saga.Activity, ec *saga.ExecutionContext) error {
	if activity == saga.ActivityConfirmBooking {
		ec.BookingReference = "SKY-TEST1234"
	}
	return nil
}

type stubExecutionRepo struct {
	mu       sync.Mutex
	outcomes map[models.ID]*saga.Outcome
}

func newStubExecutionRepo() *stubExecutionRepo {
	return &stubExecutionRepo{outcomes: make(map[models.ID]*saga.Outcome)}
}

func (r *stubExecutionRepo) SavePending(ctx context.Context, ec *saga.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[ec.ExecutionID] = &saga.Outcome{ExecutionID: ec.ExecutionID, Status: saga.OutcomePending}
	return nil
}

func (r *stubExecutionRepo) SaveOutcome(ctx context.Context, outcome *saga.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *outcome
	r.outcomes[outcome.ExecutionID] = &copied
	return nil
}

func (r *stubExecutionRepo) FindOutcome(ctx context.Context, executionID models.ID) (*saga.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome, ok := r.outcomes[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	copied := *outcome
	return &copied, nil
}

func newTestOrchestrator(t *testing.T) *saga.Orchestrator {
	t.Helper()

	machine := saga.NewMachine(okInvoker{}, saga.WithSleepFunc(func(ctx context.Context, d time.Duration) error {
		return nil
	}))
	orchestrator, err := saga.NewOrchestrator(machine, newStubExecutionRepo(), nil)
	require.NoError(t, err)
	return orchestrator
}

func TestStartBooking_Execute(t *testing.T) {
	validFlightID := "550e8400-e29b-41d4-a716-446655440001"
	validCustomerID := "550e8400-e29b-41d4-a716-446655440002"

	tests := []struct {
		name          string
		cmd           *StartBookingCommand
		expectedError string
	}{
		{
			name: "successful booking acceptance",
			cmd: &StartBookingCommand{
				FlightID:    validFlightID,
				CustomerID:  validCustomerID,
				ChargeToken: "tok_visa",
			},
		},
		{
			name: "missing flight ID",
			cmd: &StartBookingCommand{
				CustomerID:  validCustomerID,
				ChargeToken: "tok_visa",
			},
			expectedError: "flight ID is required",
		},
		{
			name: "missing customer ID",
			cmd: &StartBookingCommand{
				FlightID:    validFlightID,
				ChargeToken: "tok_visa",
			},
			expectedError: "customer ID is required",
		},
		{
			name: "missing charge token",
			cmd: &StartBookingCommand{
				FlightID:   validFlightID,
				CustomerID: validCustomerID,
			},
			expectedError: "charge token is required",
		},
		{
			name: "invalid flight ID format",
			cmd: &StartBookingCommand{
				FlightID:    "not-a-uuid",
				CustomerID:  validCustomerID,
				ChargeToken: "tok_visa",
			},
			expectedError: "invalid flight ID",
		},
		{
			name: "invalid customer ID format",
			cmd: &StartBookingCommand{
				FlightID:    validFlightID,
				CustomerID:  "not-a-uuid",
				ChargeToken: "tok_visa",
			},
			expectedError: "invalid customer ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orchestrator := newTestOrchestrator(t)
			useCase := NewStartBooking(orchestrator)

			result, err := useCase.Execute(context.Background(), tt.cmd)
			orchestrator.Wait()

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotEmpty(t, result.ExecutionID)
			assert.Equal(t, "PENDING", result.Status)
		})
	}
}
