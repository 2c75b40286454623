package domain

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/shared/events"
	"github.com/skytrail/booking-system/shared/models"
)

// BookingStatus represents the status of a booking record
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking aggregate root
type Booking struct {
	ID          models.ID     `json:"id"`
	ExecutionID models.ID     `json:"execution_id"`
	FlightID    models.ID     `json:"flight_id"`
	CustomerID  models.ID     `json:"customer_id"`
	Fare        models.Money  `json:"fare"`
	Reference   string        `json:"reference,omitempty"`
	Status      BookingStatus `json:"status"`
	Timestamps  models.Timestamps
	Version     models.Version

	events []*events.Event
}

// ReserveBooking creates a pending booking record for one saga execution.
// The execution ID is the idempotency key: retried reservations for the same
// execution must resolve to the same record.
func ReserveBooking(executionID, flightID, customerID models.ID, fare models.Money) (*Booking, error) {
	if executionID.IsZero() {
		return nil, errors.New("execution ID is required")
	}
	if flightID.IsZero() {
		return nil, errors.New("flight ID is required")
	}
	if customerID.IsZero() {
		return nil, errors.New("customer ID is required")
	}

	booking := &Booking{
		ID:          models.GenerateUUID(),
		ExecutionID: executionID,
		FlightID:    flightID,
		CustomerID:  customerID,
		Fare:        fare,
		Status:      BookingStatusPending,
		Timestamps:  models.NewTimestamps(),
		Version:     models.NewVersion(),
	}

	event := events.NewEvent(booking.ID, events.BookingReservedEvent, BookingReservedData{
		BookingID:   booking.ID,
		ExecutionID: executionID,
		FlightID:    flightID,
		CustomerID:  customerID,
	}).WithCorrelationID(executionID)

	booking.recordEvent(event)
	return booking, nil
}

// Confirm marks the booking confirmed and assigns a booking reference
func (b *Booking) Confirm() error {
	if b.Status != BookingStatusPending {
		return errors.New("booking can only be confirmed from pending status")
	}

	b.Status = BookingStatusConfirmed
	b.Reference = newBookingReference(b.ID)
	b.Timestamps = b.Timestamps.Update()
	b.Version = b.Version.Update()

	event := events.NewEvent(b.ID, events.BookingConfirmedEvent, BookingConfirmedData{
		BookingID:        b.ID,
		ExecutionID:      b.ExecutionID,
		BookingReference: b.Reference,
		ConfirmedAt:      time.Now(),
	}).WithCorrelationID(b.ExecutionID)

	b.recordEvent(event)
	return nil
}

// Cancel marks the booking cancelled. Cancelling an already cancelled booking
// is a no-op so the compensation stays idempotent.
func (b *Booking) Cancel() error {
	if b.Status == BookingStatusCancelled {
		return nil
	}
	if b.Status == BookingStatusConfirmed {
		return errors.New("cannot cancel a confirmed booking")
	}

	b.Status = BookingStatusCancelled
	b.Timestamps = b.Timestamps.Update()
	b.Version = b.Version.Update()

	event := events.NewEvent(b.ID, events.BookingCancelledEvent, BookingCancelledData{
		BookingID:   b.ID,
		ExecutionID: b.ExecutionID,
	}).WithCorrelationID(b.ExecutionID)

	b.recordEvent(event)
	return nil
}

// Events returns recorded domain events
func (b *Booking) Events() []*events.Event {
	return b.events
}

// ClearEvents clears recorded events
func (b *Booking) ClearEvents() {
	b.events = nil
}

func (b *Booking) recordEvent(event *events.Event) {
	b.events = append(b.events, event)
}

func newBookingReference(id models.ID) string {
	compact := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "SKY-" + compact
}

// BookingReservedData is the payload for booking reservation events
type BookingReservedData struct {
	BookingID   models.ID `json:"booking_id"`
	ExecutionID models.ID `json:"execution_id"`
	FlightID    models.ID `json:"flight_id"`
	CustomerID  models.ID `json:"customer_id"`
}

// BookingConfirmedData is the payload for booking confirmation events
type BookingConfirmedData struct {
	BookingID        models.ID `json:"booking_id"`
	ExecutionID      models.ID `json:"execution_id"`
	BookingReference string    `json:"booking_reference"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// BookingCancelledData is the payload for booking cancellation events
type BookingCancelledData struct {
	BookingID   models.ID `json:"booking_id"`
	ExecutionID models.ID `json:"execution_id"`
}

// BookingRepository provides access to the booking record store.
// Save must treat the execution ID as an idempotency key for pending
// bookings: re-saving a reservation for a known execution returns the
// existing record untouched.
type BookingRepository interface {
	Save(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, id models.ID) (*Booking, error)
	FindByExecutionID(ctx context.Context, executionID models.ID) (*Booking, error)
}
