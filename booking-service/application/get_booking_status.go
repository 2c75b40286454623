package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/models"
)

// GetBookingStatusQuery represents the query to check a booking execution
type GetBookingStatusQuery struct {
	ExecutionID string `json:"execution_id"`
}

// GetBookingStatusResponse represents the booking execution status
type GetBookingStatusResponse struct {
	ExecutionID      string     `json:"execution_id"`
	Status           string     `json:"status"`
	BookingReference string     `json:"booking_reference,omitempty"`
	FailedStep       string     `json:"failed_step,omitempty"`
	ErrorKind        string     `json:"error_kind,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// GetBookingStatus use case: look up the outcome of a booking execution
type GetBookingStatus struct {
	orchestrator *saga.Orchestrator
}

// NewGetBookingStatus creates a new GetBookingStatus use case
func NewGetBookingStatus(orchestrator *saga.Orchestrator) *GetBookingStatus {
	return &GetBookingStatus{orchestrator: orchestrator}
}

// Execute executes the get booking status use case
func (uc *GetBookingStatus) Execute(ctx context.Context, query *GetBookingStatusQuery) (*GetBookingStatusResponse, error) {
	if query.ExecutionID == "" {
		return nil, errors.New("execution ID is required")
	}

	executionID, err := models.NewID(query.ExecutionID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid execution ID")
	}

	outcome, err := uc.orchestrator.GetOutcome(ctx, executionID)
	if err != nil {
		return nil, err
	}

	response := &GetBookingStatusResponse{
		ExecutionID:      outcome.ExecutionID.String(),
		Status:           string(outcome.Status),
		BookingReference: outcome.BookingReference,
		FailedStep:       outcome.FailedStep,
		ErrorKind:        string(outcome.ErrorKind),
		ErrorMessage:     outcome.ErrorMessage,
	}
	if !outcome.CompletedAt.IsZero() {
		completedAt := outcome.CompletedAt
		response.CompletedAt = &completedAt
	}

	return response, nil
}
