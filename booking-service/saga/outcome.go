package saga

import (
	"context"
	"time"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/models"
)

// OutcomeStatus is the externally visible status of an execution
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "PENDING"
	OutcomeConfirmed OutcomeStatus = "CONFIRMED"
	OutcomeFailed    OutcomeStatus = "FAILED"
)

// Outcome is the terminal result of one execution, created once at saga
// completion and immutable thereafter. Failed outcomes carry the furthest
// forward step reached and the originating error kind; retry counts are
// internal and not exposed.
type Outcome struct {
	ExecutionID      models.ID        `json:"execution_id"`
	Status           OutcomeStatus    `json:"status"`
	BookingReference string           `json:"booking_reference,omitempty"`
	FailedStep       string           `json:"failed_step,omitempty"`
	ErrorKind        domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CompletedAt      time.Time        `json:"completed_at,omitempty"`
}

// ExecutionRepository persists execution acceptance and terminal outcomes.
// FindOutcome returns a Pending outcome for accepted-but-unfinished
// executions and domain.ErrExecutionNotFound for unknown IDs.
type ExecutionRepository interface {
	SavePending(ctx context.Context, ec *ExecutionContext) error
	SaveOutcome(ctx context.Context, outcome *Outcome) error
	FindOutcome(ctx context.Context, executionID models.ID) (*Outcome, error)
}
