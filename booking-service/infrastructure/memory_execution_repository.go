package infrastructure

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/models"
)

// MemoryExecutionRepository implements saga.ExecutionRepository in memory
// for testing and local environments
type MemoryExecutionRepository struct {
	mu       sync.Mutex
	outcomes map[models.ID]*saga.Outcome
}

// NewMemoryExecutionRepository creates a new MemoryExecutionRepository
func NewMemoryExecutionRepository() *MemoryExecutionRepository {
	return &MemoryExecutionRepository{
		outcomes: make(map[models.ID]*saga.Outcome),
	}
}

// SavePending records an accepted execution before it starts running
func (r *MemoryExecutionRepository) SavePending(ctx context.Context, ec *saga.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.outcomes[ec.ExecutionID]; ok {
		return errors.New("execution already recorded")
	}

	r.outcomes[ec.ExecutionID] = &saga.Outcome{
		ExecutionID: ec.ExecutionID,
		Status:      saga.OutcomePending,
	}
	return nil
}

// SaveOutcome finalizes an execution with its terminal outcome
func (r *MemoryExecutionRepository) SaveOutcome(ctx context.Context, outcome *saga.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.outcomes[outcome.ExecutionID]
	if !ok {
		return errors.New("unknown execution")
	}
	if existing.Status != saga.OutcomePending {
		return errors.New("execution already finalized")
	}

	copied := *outcome
	r.outcomes[outcome.ExecutionID] = &copied
	return nil
}

// FindOutcome looks up an execution's outcome by ID
func (r *MemoryExecutionRepository) FindOutcome(ctx context.Context, executionID models.ID) (*saga.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, ok := r.outcomes[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}

	copied := *outcome
	return &copied, nil
}
