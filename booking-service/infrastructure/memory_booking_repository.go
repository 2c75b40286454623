package infrastructure

import (
	"context"
	"sync"

	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/models"
)

// MemoryBookingRepository implements domain.BookingRepository in memory for
// testing and local environments
type MemoryBookingRepository struct {
	mu          sync.Mutex
	bookings    map[models.ID]*domain.Booking
	byExecution map[models.ID]models.ID
}

// NewMemoryBookingRepository creates a new MemoryBookingRepository
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings:    make(map[models.ID]*domain.Booking),
		byExecution: make(map[models.ID]models.ID),
	}
}

// Save stores a booking record. A second pending reservation for a known
// execution leaves the existing record untouched. The caller keeps the
// aggregate's recorded events to publish after the save.
func (r *MemoryBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.Status == domain.BookingStatusPending {
		if _, ok := r.byExecution[booking.ExecutionID]; ok {
			return nil
		}
		r.byExecution[booking.ExecutionID] = booking.ID
	}

	stored := *booking
	stored.ClearEvents()
	r.bookings[booking.ID] = &stored
	return nil
}

// FindByID finds a booking by ID
func (r *MemoryBookingRepository) FindByID(ctx context.Context, id models.ID) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	copied := *booking
	return &copied, nil
}

// FindByExecutionID finds the booking reserved by a saga execution
func (r *MemoryBookingRepository) FindByExecutionID(ctx context.Context, executionID models.ID) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookingID, ok := r.byExecution[executionID]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	booking, ok := r.bookings[bookingID]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	copied := *booking
	return &copied, nil
}
