package infrastructure

import (
	"context"
	"sync"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/models"
)

// MemoryFlightRepository implements domain.FlightRepository in memory for
// testing and local environments. The mutex gives ReserveSeat the same
// check-and-decrement atomicity the conditional UPDATE gives in PostgreSQL.
type MemoryFlightRepository struct {
	mu      sync.Mutex
	flights map[models.ID]*domain.Flight
}

// NewMemoryFlightRepository creates a new MemoryFlightRepository
func NewMemoryFlightRepository() *MemoryFlightRepository {
	return &MemoryFlightRepository{
		flights: make(map[models.ID]*domain.Flight),
	}
}

// Save stores a flight
func (r *MemoryFlightRepository) Save(ctx context.Context, flight *domain.Flight) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *flight
	r.flights[flight.ID] = &stored
	return nil
}

// FindByID finds a flight by ID
func (r *MemoryFlightRepository) FindByID(ctx context.Context, id models.ID) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flight, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}

	copied := *flight
	return &copied, nil
}

// ReserveSeat atomically decrements the seat allocation if any seat remains.
// The returned copy carries the seat event the aggregate recorded; the stored
// aggregate keeps no events.
func (r *MemoryFlightRepository) ReserveSeat(ctx context.Context, id models.ID) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flight, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}

	if err := flight.ReserveSeat(); err != nil {
		return nil, err
	}

	copied := *flight
	flight.ClearEvents()
	return &copied, nil
}

// ReleaseSeat returns a seat to the allocation
func (r *MemoryFlightRepository) ReleaseSeat(ctx context.Context, id models.ID) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flight, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}

	flight.ReleaseSeat()

	copied := *flight
	flight.ClearEvents()
	return &copied, nil
}
